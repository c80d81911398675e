package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/domain/event"
	"checkout/internal/gateway/esewa"
	"checkout/internal/repository/items_repo"
	"checkout/internal/repository/outbox_repo"
	"checkout/internal/repository/payments_repo"
	"checkout/internal/repository/purchases_repo"
	"checkout/internal/util"
)

const (
	fixtureItemName     = "Headphone"
	fixtureItemCategory = "vayo pardaina"
)

var fixtureItemPrice = decimal.NewFromInt(500)

type DB interface {
	domain.Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type PaymentGateway interface {
	Sign(amount decimal.Decimal, transactionUUID string) (*esewa.PaymentRequest, error)
	Verify(encoded string) (*esewa.VerifiedPayment, error)
}

type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*esewa.StatusResponse, error)
}

type CheckoutService interface {
	InitiatePurchase(ctx context.Context, itemID string, totalPrice decimal.Decimal) (*InitiateResult, error)
	CompletePayment(ctx context.Context, encoded string, query url.Values) (*domain.Payment, error)
	CreateFixtureItem(ctx context.Context) (*domain.Item, error)
	GetPurchase(ctx context.Context, id string) (*domain.PurchasedItem, error)
	ListStalePending(ctx context.Context, minAge time.Duration, limit int) ([]*domain.PurchasedItem, error)
	// ResolvePending asks the gateway about a pending purchase and completes it
	// when the gateway reports it paid. It returns false if the purchase stays
	// pending.
	ResolvePending(ctx context.Context, purchase *domain.PurchasedItem) (bool, error)
}

type InitiateResult struct {
	Payment  *esewa.PaymentRequest
	Purchase *domain.PurchasedItem
}

type Options struct {
	EventsTopic string
	// VerifyStatus makes every callback wait for the status API to confirm
	// the transaction before anything is written.
	VerifyStatus bool
}

type checkoutService struct {
	db           DB
	itemRepo     items_repo.ItemRepository
	purchaseRepo purchases_repo.PurchaseRepository
	paymentRepo  payments_repo.PaymentRepository
	outboxRepo   outbox_repo.OutboxRepository
	gateway      PaymentGateway
	status       StatusChecker
	opts         Options
	logger       *zap.Logger
}

func NewCheckoutService(
	db DB,
	itemRepo items_repo.ItemRepository,
	purchaseRepo purchases_repo.PurchaseRepository,
	paymentRepo payments_repo.PaymentRepository,
	outboxRepo outbox_repo.OutboxRepository,
	gateway PaymentGateway,
	status StatusChecker,
	opts Options,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		db:           db,
		itemRepo:     itemRepo,
		purchaseRepo: purchaseRepo,
		paymentRepo:  paymentRepo,
		outboxRepo:   outboxRepo,
		gateway:      gateway,
		status:       status,
		opts:         opts,
		logger:       logger,
	}
}

func (s *checkoutService) InitiatePurchase(ctx context.Context, itemID string, totalPrice decimal.Decimal) (*InitiateResult, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: itemId is required", domain.ErrValidation)
	}
	if !totalPrice.IsPositive() {
		return nil, fmt.Errorf("%w: totalPrice must be positive", domain.ErrValidation)
	}
	if !util.IsUUID(itemID) {
		return nil, domain.ErrItemNotFoundOrPriceMismatch
	}

	item, err := s.itemRepo.GetByIDAndPriceTx(ctx, s.db, itemID, totalPrice)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFoundOrPriceMismatch) {
			s.logger.Warn("Item not found or price mismatch",
				zap.String("item_id", itemID),
				zap.String("total_price", totalPrice.String()))
		}
		return nil, err
	}

	result := &InitiateResult{}
	err = s.withTx(ctx, "initiate purchase", func(tx *sql.Tx) error {
		purchase, err := domain.NewPurchasedItem(util.GenerateUUID(), item.ID, totalPrice, domain.PaymentMethodEsewa)
		if err != nil {
			return err
		}
		if err := s.purchaseRepo.CreateTx(ctx, tx, purchase); err != nil {
			return err
		}
		payment, err := s.gateway.Sign(totalPrice, purchase.ID)
		if err != nil {
			return fmt.Errorf("failed to sign payment request: %w", err)
		}
		result.Purchase = purchase
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Purchase initiated",
		zap.String("purchase_id", result.Purchase.ID),
		zap.String("item_id", item.ID),
		zap.String("total_price", totalPrice.String()))
	return result, nil
}

func (s *checkoutService) CompletePayment(ctx context.Context, encoded string, query url.Values) (*domain.Payment, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: missing data parameter", domain.ErrMalformedResponse)
	}

	verified, err := s.gateway.Verify(encoded)
	if err != nil {
		s.logger.Warn("Gateway callback rejected", zap.Error(err))
		return nil, err
	}
	purchaseID := verified.Data.TransactionUUID

	var statusResp *esewa.StatusResponse
	if s.opts.VerifyStatus && s.status != nil {
		statusResp, err = s.status.CheckStatus(ctx, purchaseID, verified.Amount)
		if err != nil {
			return nil, err
		}
		if !statusResp.Matches(purchaseID, verified.Amount) {
			s.logger.Warn("Gateway status does not confirm callback",
				zap.String("purchase_id", purchaseID),
				zap.String("status", statusResp.Status))
			return nil, fmt.Errorf("%w: status %s", domain.ErrPaymentNotVerified, statusResp.Status)
		}
	}

	verification, err := json.Marshal(map[string]any{
		"decodedData": verified.Decoded,
		"response":    statusResp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification data: %w", err)
	}
	apiQuery, err := json.Marshal(flattenQuery(query))
	if err != nil {
		return nil, fmt.Errorf("failed to encode callback query: %w", err)
	}

	return s.complete(ctx, completion{
		purchaseID:      purchaseID,
		transactionCode: verified.Data.TransactionCode,
		amount:          verified.Amount,
		verification:    verification,
		apiQuery:        apiQuery,
	})
}

func (s *checkoutService) CreateFixtureItem(ctx context.Context) (*domain.Item, error) {
	item, err := domain.NewItem(util.GenerateUUID(), fixtureItemName, fixtureItemPrice, true, fixtureItemCategory)
	if err != nil {
		return nil, err
	}
	if err := s.itemRepo.CreateTx(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.logger.Info("Fixture item created", zap.String("item_id", item.ID))
	return item, nil
}

func (s *checkoutService) GetPurchase(ctx context.Context, id string) (*domain.PurchasedItem, error) {
	if !util.IsUUID(id) {
		return nil, domain.ErrPurchaseNotFound
	}
	return s.purchaseRepo.GetByIDTx(ctx, s.db, id)
}

func (s *checkoutService) ListStalePending(ctx context.Context, minAge time.Duration, limit int) ([]*domain.PurchasedItem, error) {
	before := time.Now().UTC().Add(-minAge)
	return s.purchaseRepo.ListPendingCreatedBeforeTx(ctx, s.db, domain.PaymentMethodEsewa, before, limit)
}

func (s *checkoutService) ResolvePending(ctx context.Context, purchase *domain.PurchasedItem) (bool, error) {
	if s.status == nil {
		return false, errors.New("gateway status client not configured")
	}

	resp, err := s.status.CheckStatus(ctx, purchase.ID, purchase.TotalPrice)
	if err != nil {
		return false, err
	}
	if resp.Status != esewa.StatusComplete {
		s.logger.Info("Pending purchase not yet complete at gateway",
			zap.String("purchase_id", purchase.ID),
			zap.String("status", resp.Status))
		return false, nil
	}
	if !resp.Matches(purchase.ID, purchase.TotalPrice) {
		return false, fmt.Errorf("%w: gateway reported %s for %s", domain.ErrPaymentNotVerified, resp.TotalAmount, resp.TransactionUUID)
	}

	verification, err := json.Marshal(map[string]any{"response": resp})
	if err != nil {
		return false, fmt.Errorf("failed to encode verification data: %w", err)
	}
	var transactionCode string
	if resp.RefID != nil {
		transactionCode = *resp.RefID
	}

	if _, err := s.complete(ctx, completion{
		purchaseID:      purchase.ID,
		transactionCode: transactionCode,
		amount:          purchase.TotalPrice,
		verification:    verification,
	}); err != nil {
		return false, err
	}
	return true, nil
}

type completion struct {
	purchaseID      string
	transactionCode string
	amount          decimal.Decimal
	verification    json.RawMessage
	apiQuery        json.RawMessage
}

// complete records the payment and completes the purchase in one
// transaction. A purchase already completed yields its existing payment.
func (s *checkoutService) complete(ctx context.Context, c completion) (*domain.Payment, error) {
	if !util.IsUUID(c.purchaseID) {
		return nil, domain.ErrPurchaseNotFound
	}

	var payment *domain.Payment
	replayed := false
	err := s.withTx(ctx, "complete payment", func(tx *sql.Tx) error {
		purchase, err := s.purchaseRepo.GetByIDForUpdateTx(ctx, tx, c.purchaseID)
		if err != nil {
			return err
		}
		if !purchase.TotalPrice.Equal(c.amount) {
			return fmt.Errorf("%w: gateway reported %s, purchase is %s",
				domain.ErrAmountMismatch, c.amount.String(), purchase.TotalPrice.String())
		}

		if purchase.Status == domain.PurchaseStatusCompleted {
			payment, err = s.paymentRepo.GetByProductIDTx(ctx, tx, purchase.ID)
			replayed = err == nil
			return err
		}
		if err := purchase.MarkAsCompleted(); err != nil {
			return err
		}

		now := time.Now().UTC()
		payment = &domain.Payment{
			ID:                      util.GenerateUUID(),
			Pidx:                    c.transactionCode,
			TransactionID:           c.transactionCode,
			ProductID:               purchase.ID,
			Amount:                  purchase.TotalPrice,
			DataFromVerificationReq: c.verification,
			APIQueryFromUser:        c.apiQuery,
			PaymentGateway:          domain.PaymentGatewayEsewa,
			Status:                  domain.PaymentStatusSuccess,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if err := s.paymentRepo.CreateTx(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.purchaseRepo.UpdateStatusTx(ctx, tx, purchase.ID, purchase.Status); err != nil {
			return err
		}
		return s.enqueueCompleted(ctx, tx, purchase, payment, now)
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		s.logger.Info("Purchase already completed, returning existing payment",
			zap.String("purchase_id", c.purchaseID),
			zap.String("payment_id", payment.ID))
	} else {
		s.logger.Info("Payment recorded and purchase completed",
			zap.String("purchase_id", c.purchaseID),
			zap.String("payment_id", payment.ID),
			zap.String("transaction_code", c.transactionCode))
	}
	return payment, nil
}

func (s *checkoutService) enqueueCompleted(ctx context.Context, tx *sql.Tx, purchase *domain.PurchasedItem, payment *domain.Payment, at time.Time) error {
	payload, err := json.Marshal(event.PurchaseCompletedEvent{
		PurchaseID:      purchase.ID,
		PaymentID:       payment.ID,
		ItemID:          purchase.ItemID,
		Amount:          payment.Amount.StringFixed(2),
		TransactionCode: payment.TransactionID,
		Gateway:         payment.PaymentGateway,
		Timestamp:       at,
	})
	if err != nil {
		return fmt.Errorf("failed to encode purchase completed event: %w", err)
	}

	msg := &domain.OutboxMessage{
		ID:          util.GenerateUUID(),
		AggregateID: purchase.ID,
		MessageType: domain.MessageTypePurchaseCompleted,
		Topic:       s.opts.EventsTopic,
		Key:         purchase.ID,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   at,
	}
	if err := s.outboxRepo.CreateMessageTx(ctx, tx, msg); err != nil {
		return fmt.Errorf("failed to create outbox message for purchase %s: %w", purchase.ID, err)
	}
	return nil
}

func (s *checkoutService) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic inside transaction, rolling back", zap.String("operation", op), zap.Any("panic", r))
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.String("operation", op), zap.Error(rbErr))
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func flattenQuery(query url.Values) map[string]any {
	out := make(map[string]any, len(query))
	for k, v := range query {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		out[k] = v
	}
	return out
}
