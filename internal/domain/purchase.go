package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodEsewa  PaymentMethod = "esewa"
	PaymentMethodKhalti PaymentMethod = "khalti"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodEsewa || m == PaymentMethodKhalti
}

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// PurchasedItem is one purchase attempt. It holds a weak reference to the
// item and a copy of the price at creation time.
type PurchasedItem struct {
	ID            string
	ItemID        string
	TotalPrice    decimal.Decimal
	PurchaseDate  time.Time
	PaymentMethod PaymentMethod
	Status        PurchaseStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPurchasedItem(id, itemID string, totalPrice decimal.Decimal, method PaymentMethod) (*PurchasedItem, error) {
	if id == "" || itemID == "" {
		return nil, fmt.Errorf("%w: purchase id and item id are required", ErrValidation)
	}
	if !totalPrice.IsPositive() {
		return nil, fmt.Errorf("%w: total price must be positive", ErrValidation)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrValidation, method)
	}
	now := time.Now().UTC()
	return &PurchasedItem{
		ID:            id,
		ItemID:        itemID,
		TotalPrice:    totalPrice,
		PurchaseDate:  now,
		PaymentMethod: method,
		Status:        PurchaseStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *PurchasedItem) MarkAsCompleted() error {
	if p.Status != PurchaseStatusPending {
		return fmt.Errorf("%w: cannot complete purchase in status %s", ErrInvalidTransition, p.Status)
	}
	p.Status = PurchaseStatusCompleted
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *PurchasedItem) MarkAsRefunded() error {
	if p.Status != PurchaseStatusPending {
		return fmt.Errorf("%w: cannot refund purchase in status %s", ErrInvalidTransition, p.Status)
	}
	p.Status = PurchaseStatusRefunded
	p.UpdatedAt = time.Now().UTC()
	return nil
}
