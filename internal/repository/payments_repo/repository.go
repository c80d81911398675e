package payments_repo

import (
	"context"

	"checkout/internal/domain"
)

type PaymentRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	GetByProductIDTx(ctx context.Context, querier domain.Querier, productID string) (*domain.Payment, error)
}
