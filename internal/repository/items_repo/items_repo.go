package items_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
)

type itemRepository struct{}

func NewItemRepository() *itemRepository {
	return &itemRepository{}
}

func (r *itemRepository) CreateTx(ctx context.Context, querier domain.Querier, item *domain.Item) error {
	query := `
		INSERT INTO items (id, name, price, in_stock, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := querier.ExecContext(ctx, query,
		item.ID, item.Name, item.Price, item.InStock, item.Category, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create item %s: %w", item.ID, err)
	}
	return nil
}

func (r *itemRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Item, error) {
	query := `
		SELECT id, name, price, in_stock, category, created_at, updated_at
		FROM items
		WHERE id = $1
	`
	item, err := scanItem(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// GetByIDAndPriceTx only matches when the stored price equals price exactly.
func (r *itemRepository) GetByIDAndPriceTx(ctx context.Context, querier domain.Querier, id string, price decimal.Decimal) (*domain.Item, error) {
	query := `
		SELECT id, name, price, in_stock, category, created_at, updated_at
		FROM items
		WHERE id = $1 AND price = $2
	`
	item, err := scanItem(querier.QueryRowContext(ctx, query, id, price))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrItemNotFoundOrPriceMismatch
		}
		return nil, fmt.Errorf("failed to get item %s by price: %w", id, err)
	}
	return item, nil
}

func scanItem(row *sql.Row) (*domain.Item, error) {
	item := &domain.Item{}
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Price,
		&item.InStock,
		&item.Category,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
