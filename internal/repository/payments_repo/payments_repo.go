package payments_repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"checkout/internal/domain"
)

const uniqueViolation = "23505"

type paymentRepository struct{}

func NewPaymentRepository() *paymentRepository {
	return &paymentRepository{}
}

// CreateTx returns domain.ErrPaymentRecordExists when the purchase already
// has a payment.
func (r *paymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, pidx, transaction_id, product_id, amount,
			data_from_verification_req, api_query_from_user,
			payment_gateway, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := querier.ExecContext(ctx, query,
		payment.ID,
		payment.Pidx,
		payment.TransactionID,
		payment.ProductID,
		payment.Amount,
		jsonArg(payment.DataFromVerificationReq),
		jsonArg(payment.APIQueryFromUser),
		payment.PaymentGateway,
		string(payment.Status),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrPaymentRecordExists
		}
		return fmt.Errorf("failed to create payment for purchase %s: %w", payment.ProductID, err)
	}
	return nil
}

func (r *paymentRepository) GetByProductIDTx(ctx context.Context, querier domain.Querier, productID string) (*domain.Payment, error) {
	query := `
		SELECT id, pidx, transaction_id, product_id, amount,
			data_from_verification_req, api_query_from_user,
			payment_gateway, status, created_at, updated_at
		FROM payments
		WHERE product_id = $1
	`
	payment := &domain.Payment{}
	var pidx sql.NullString
	var verification, apiQuery []byte
	var status string
	err := querier.QueryRowContext(ctx, query, productID).Scan(
		&payment.ID,
		&pidx,
		&payment.TransactionID,
		&payment.ProductID,
		&payment.Amount,
		&verification,
		&apiQuery,
		&payment.PaymentGateway,
		&status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by product id %s: %w", productID, err)
	}
	payment.Pidx = pidx.String
	payment.DataFromVerificationReq = json.RawMessage(verification)
	payment.APIQueryFromUser = json.RawMessage(apiQuery)
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

// lib/pq sends []byte as bytea, which JSONB columns reject.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
