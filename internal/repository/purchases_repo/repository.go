package purchases_repo

import (
	"context"
	"time"

	"checkout/internal/domain"
)

type PurchaseRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, purchase *domain.PurchasedItem) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.PurchasedItem, error)
	// GetByIDForUpdateTx locks the row until the surrounding transaction ends.
	GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id string) (*domain.PurchasedItem, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.PurchaseStatus) error
	ListPendingCreatedBeforeTx(ctx context.Context, querier domain.Querier, method domain.PaymentMethod, before time.Time, limit int) ([]*domain.PurchasedItem, error)
}
