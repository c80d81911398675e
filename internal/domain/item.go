package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	InStock   bool
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewItem(id, name string, price decimal.Decimal, inStock bool, category string) (*Item, error) {
	if id == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: item id and name are required", ErrValidation)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: item price must be positive", ErrValidation)
	}
	now := time.Now().UTC()
	return &Item{
		ID:        id,
		Name:      name,
		Price:     price,
		InStock:   inStock,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
