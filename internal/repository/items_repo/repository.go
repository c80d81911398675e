package items_repo

import (
	"context"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
)

type ItemRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, item *domain.Item) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Item, error)
	GetByIDAndPriceTx(ctx context.Context, querier domain.Querier, id string, price decimal.Decimal) (*domain.Item, error)
}
