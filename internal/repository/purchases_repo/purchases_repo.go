package purchases_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout/internal/domain"
)

const purchaseColumns = `id, item_id, total_price, purchase_date, payment_method, status, created_at, updated_at`

type purchaseRepository struct{}

func NewPurchaseRepository() *purchaseRepository {
	return &purchaseRepository{}
}

func (r *purchaseRepository) CreateTx(ctx context.Context, querier domain.Querier, p *domain.PurchasedItem) error {
	query := `
		INSERT INTO purchased_items (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		p.ID,
		p.ItemID,
		p.TotalPrice,
		p.PurchaseDate,
		string(p.PaymentMethod),
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase for item %s: %w", p.ItemID, err)
	}
	return nil
}

func (r *purchaseRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.PurchasedItem, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchased_items WHERE id = $1`
	return r.getOne(ctx, querier, query, id)
}

func (r *purchaseRepository) GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id string) (*domain.PurchasedItem, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchased_items WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, querier, query, id)
}

func (r *purchaseRepository) getOne(ctx context.Context, querier domain.Querier, query, id string) (*domain.PurchasedItem, error) {
	p, err := scanPurchase(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to get purchase %s: %w", id, err)
	}
	return p, nil
}

func (r *purchaseRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.PurchaseStatus) error {
	query := `
		UPDATE purchased_items
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update purchase status %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for purchase status update: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

func (r *purchaseRepository) ListPendingCreatedBeforeTx(ctx context.Context, querier domain.Querier, method domain.PaymentMethod, before time.Time, limit int) ([]*domain.PurchasedItem, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchased_items
		WHERE status = $1 AND payment_method = $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4
	`
	rows, err := querier.QueryContext(ctx, query, string(domain.PurchaseStatusPending), string(method), before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*domain.PurchasedItem
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending purchases: %w", err)
	}
	return purchases, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*domain.PurchasedItem, error) {
	p := &domain.PurchasedItem{}
	var method, status string
	err := row.Scan(
		&p.ID,
		&p.ItemID,
		&p.TotalPrice,
		&p.PurchaseDate,
		&method,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PaymentMethod = domain.PaymentMethod(method)
	p.Status = domain.PurchaseStatus(status)
	return p, nil
}
