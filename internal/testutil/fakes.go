// Package testutil holds in-memory repositories for service and handler
// tests. They ignore the querier they are handed, so transactional behaviour
// is asserted separately through sqlmock expectations.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
)

type ItemRepo struct {
	mu    sync.Mutex
	Items map[string]*domain.Item
}

func NewItemRepo(items ...*domain.Item) *ItemRepo {
	r := &ItemRepo{Items: map[string]*domain.Item{}}
	for _, it := range items {
		r.Items[it.ID] = it
	}
	return r
}

func (r *ItemRepo) CreateTx(_ context.Context, _ domain.Querier, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.Items[item.ID] = &cp
	return nil
}

func (r *ItemRepo) GetByIDTx(_ context.Context, _ domain.Querier, id string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.Items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *ItemRepo) GetByIDAndPriceTx(_ context.Context, _ domain.Querier, id string, price decimal.Decimal) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.Items[id]
	if !ok || !it.Price.Equal(price) {
		return nil, domain.ErrItemNotFoundOrPriceMismatch
	}
	cp := *it
	return &cp, nil
}

type PurchaseRepo struct {
	mu        sync.Mutex
	Purchases map[string]*domain.PurchasedItem
}

func NewPurchaseRepo(purchases ...*domain.PurchasedItem) *PurchaseRepo {
	r := &PurchaseRepo{Purchases: map[string]*domain.PurchasedItem{}}
	for _, p := range purchases {
		r.Purchases[p.ID] = p
	}
	return r
}

func (r *PurchaseRepo) CreateTx(_ context.Context, _ domain.Querier, p *domain.PurchasedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.Purchases[p.ID] = &cp
	return nil
}

func (r *PurchaseRepo) GetByIDTx(_ context.Context, _ domain.Querier, id string) (*domain.PurchasedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Purchases[id]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PurchaseRepo) GetByIDForUpdateTx(ctx context.Context, q domain.Querier, id string) (*domain.PurchasedItem, error) {
	return r.GetByIDTx(ctx, q, id)
}

func (r *PurchaseRepo) UpdateStatusTx(_ context.Context, _ domain.Querier, id string, status domain.PurchaseStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Purchases[id]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *PurchaseRepo) ListPendingCreatedBeforeTx(_ context.Context, _ domain.Querier, method domain.PaymentMethod, before time.Time, limit int) ([]*domain.PurchasedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PurchasedItem
	for _, p := range r.Purchases {
		if p.Status == domain.PurchaseStatusPending && p.PaymentMethod == method && p.CreatedAt.Before(before) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored purchases.
func (r *PurchaseRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Purchases)
}

type PaymentRepo struct {
	mu       sync.Mutex
	Payments map[string]*domain.Payment
}

func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{Payments: map[string]*domain.Payment{}}
}

// CreateTx enforces the same one-payment-per-purchase rule as the unique
// index on payments.product_id.
func (r *PaymentRepo) CreateTx(_ context.Context, _ domain.Querier, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.Payments[payment.ProductID]; exists {
		return domain.ErrPaymentRecordExists
	}
	cp := *payment
	r.Payments[payment.ProductID] = &cp
	return nil
}

func (r *PaymentRepo) GetByProductIDTx(_ context.Context, _ domain.Querier, productID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[productID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PaymentRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Payments)
}

type OutboxRepo struct {
	mu       sync.Mutex
	Messages []domain.OutboxMessage
}

func NewOutboxRepo() *OutboxRepo {
	return &OutboxRepo{}
}

func (r *OutboxRepo) CreateMessageTx(_ context.Context, _ domain.Querier, msg *domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, *msg)
	return nil
}

func (r *OutboxRepo) GetPendingMessages(_ context.Context, _ domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OutboxMessage
	for _, m := range r.Messages {
		if m.Status == domain.OutboxStatusPending {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) UpdateMessageStatusTx(_ context.Context, _ domain.Querier, id string, status domain.OutboxMessageStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Messages {
		if r.Messages[i].ID == id {
			r.Messages[i].Status = status
			return nil
		}
	}
	return domain.ErrValidation
}

func (r *OutboxRepo) Snapshot() []domain.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OutboxMessage, len(r.Messages))
	copy(out, r.Messages)
	return out
}
