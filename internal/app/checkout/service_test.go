package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/domain/event"
	"checkout/internal/gateway/esewa"
	"checkout/internal/testutil"
	"checkout/internal/util"
)

const itemID = "6b1f2c1e-3a4d-4e5f-8a9b-0c1d2e3f4a5b"

type fixture struct {
	db        *sql.DB
	mock      sqlmock.Sqlmock
	items     *testutil.ItemRepo
	purchases *testutil.PurchaseRepo
	payments  *testutil.PaymentRepo
	outbox    *testutil.OutboxRepo
	status    *testutil.StatusChecker
	gateway   PaymentGateway
	svc       CheckoutService
}

type fixtureOption func(*fixture, *Options)

func withoutStatusCheck() fixtureOption {
	return func(_ *fixture, o *Options) { o.VerifyStatus = false }
}

func withGateway(g PaymentGateway) fixtureOption {
	return func(f *fixture, _ *Options) { f.gateway = g }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:        db,
		mock:      mock,
		items:     testutil.NewItemRepo(testutil.Item(itemID, 500)),
		purchases: testutil.NewPurchaseRepo(),
		payments:  testutil.NewPaymentRepo(),
		outbox:    testutil.NewOutboxRepo(),
		status:    testutil.NewStatusChecker(),
		gateway:   testutil.NewGateway(),
	}
	o := Options{EventsTopic: "purchase_events", VerifyStatus: true}
	for _, opt := range opts {
		opt(f, &o)
	}
	f.svc = NewCheckoutService(db, f.items, f.purchases, f.payments, f.outbox, f.gateway, f.status, o, zap.NewNop())
	return f
}

func (f *fixture) seedPending(t *testing.T, price int64) *domain.PurchasedItem {
	t.Helper()
	p, err := domain.NewPurchasedItem(util.GenerateUUID(), itemID, decimal.NewFromInt(price), domain.PaymentMethodEsewa)
	require.NoError(t, err)
	require.NoError(t, f.purchases.CreateTx(context.Background(), nil, p))
	return p
}

func callbackQuery(data string) url.Values {
	return url.Values{"data": []string{data}}
}

type failingSigner struct {
	PaymentGateway
}

func (failingSigner) Sign(decimal.Decimal, string) (*esewa.PaymentRequest, error) {
	return nil, errors.New("signing key unavailable")
}

func TestInitiatePurchase_CreatesPendingPurchase(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.InitiatePurchase(context.Background(), itemID, decimal.NewFromInt(500))
	require.NoError(t, err)

	assert.Equal(t, 1, f.purchases.Count())
	stored, err := f.purchases.GetByIDTx(context.Background(), nil, res.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPending, stored.Status)
	assert.Equal(t, domain.PaymentMethodEsewa, stored.PaymentMethod)
	assert.Equal(t, itemID, stored.ItemID)

	assert.Equal(t, res.Purchase.ID, res.Payment.TransactionUUID)
	assert.Equal(t, "500", res.Payment.TotalAmount)
	assert.NotEmpty(t, res.Payment.Signature)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestInitiatePurchase_PriceMismatchCreatesNothing(t *testing.T) {
	tests := []struct {
		name   string
		itemID string
		price  decimal.Decimal
	}{
		{name: "price lower than item", itemID: itemID, price: decimal.NewFromInt(499)},
		{name: "price with extra cents", itemID: itemID, price: decimal.RequireFromString("500.01")},
		{name: "unknown item", itemID: util.GenerateUUID(), price: decimal.NewFromInt(500)},
		{name: "unparseable id", itemID: "665f1c2e9b1e8a0012345678", price: decimal.NewFromInt(500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.InitiatePurchase(context.Background(), tt.itemID, tt.price)
			assert.ErrorIs(t, err, domain.ErrItemNotFoundOrPriceMismatch)
			assert.Equal(t, 0, f.purchases.Count())
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestInitiatePurchase_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.InitiatePurchase(context.Background(), "", decimal.NewFromInt(500))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.InitiatePurchase(context.Background(), itemID, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.InitiatePurchase(context.Background(), itemID, decimal.NewFromInt(-500))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInitiatePurchase_SigningFailureRollsBack(t *testing.T) {
	f := newFixture(t, withGateway(failingSigner{PaymentGateway: testutil.NewGateway()}))
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.InitiatePurchase(context.Background(), itemID, decimal.NewFromInt(500))
	assert.ErrorContains(t, err, "signing key unavailable")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_HappyPath(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)
	f.status.Complete(purchase.ID, decimal.NewFromInt(500))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	data := testutil.Callback(testutil.SecretKey, purchase.ID, "500.0", esewa.StatusComplete)
	payment, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	require.NoError(t, err)

	assert.Equal(t, purchase.ID, payment.ProductID)
	assert.Equal(t, "000AWEO", payment.TransactionID)
	assert.Equal(t, "000AWEO", payment.Pidx)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, domain.PaymentGatewayEsewa, payment.PaymentGateway)

	var audit map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payment.DataFromVerificationReq, &audit))
	assert.Contains(t, audit, "decodedData")
	assert.Contains(t, audit, "response")
	assert.JSONEq(t, `{"data":"`+data+`"}`, string(payment.APIQueryFromUser))

	stored, err := f.purchases.GetByIDTx(context.Background(), nil, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusCompleted, stored.Status)
	assert.Equal(t, 1, f.payments.Count())

	msgs := f.outbox.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "purchase_events", msgs[0].Topic)
	assert.Equal(t, purchase.ID, msgs[0].Key)
	assert.Equal(t, domain.MessageTypePurchaseCompleted, msgs[0].MessageType)

	var evt event.PurchaseCompletedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &evt))
	assert.Equal(t, payment.ID, evt.PaymentID)
	assert.Equal(t, "500.00", evt.Amount)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_TamperedPayloadLeavesPurchasePending(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)

	data := testutil.Callback("not-the-merchant-secret", purchase.ID, "500.0", esewa.StatusComplete)
	_, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)

	stored, err := f.purchases.GetByIDTx(context.Background(), nil, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPending, stored.Status)
	assert.Equal(t, 0, f.payments.Count())
	assert.Empty(t, f.outbox.Snapshot())
	assert.Equal(t, 0, f.status.Calls)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_MissingOrMalformedData(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompletePayment(context.Background(), "", url.Values{})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	_, err = f.svc.CompletePayment(context.Background(), "%%%not-base64%%%", url.Values{})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_UnknownPurchase(t *testing.T) {
	f := newFixture(t, withoutStatusCheck())
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	data := testutil.Callback(testutil.SecretKey, util.GenerateUUID(), "500", esewa.StatusComplete)
	_, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
	assert.Equal(t, 0, f.payments.Count())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_NonUUIDReferenceIsNotFound(t *testing.T) {
	f := newFixture(t, withoutStatusCheck())

	data := testutil.Callback(testutil.SecretKey, "11-201-13", "500", esewa.StatusComplete)
	_, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_RepeatedCallbackReturnsSamePayment(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)
	f.status.Complete(purchase.ID, decimal.NewFromInt(500))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	data := testutil.Callback(testutil.SecretKey, purchase.ID, "500", esewa.StatusComplete)
	first, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	require.NoError(t, err)
	second, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.payments.Count())
	assert.Len(t, f.outbox.Snapshot(), 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_AmountMismatch(t *testing.T) {
	f := newFixture(t, withoutStatusCheck())
	purchase := f.seedPending(t, 500)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	data := testutil.Callback(testutil.SecretKey, purchase.ID, "5", esewa.StatusComplete)
	_, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)

	stored, err := f.purchases.GetByIDTx(context.Background(), nil, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPending, stored.Status)
	assert.Equal(t, 0, f.payments.Count())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_StatusNotConfirmed(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)
	f.status.Set(purchase.ID, decimal.NewFromInt(500), "PENDING")

	data := testutil.Callback(testutil.SecretKey, purchase.ID, "500", esewa.StatusComplete)
	_, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	assert.ErrorIs(t, err, domain.ErrPaymentNotVerified)
	assert.Equal(t, 0, f.payments.Count())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCompletePayment_StatusAPIUnavailable(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)
	f.status.Err = domain.ErrGatewayUnavailable

	data := testutil.Callback(testutil.SecretKey, purchase.ID, "500", esewa.StatusComplete)
	_, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Equal(t, 0, f.payments.Count())
}

func TestCompletePayment_IncompleteStatusRejected(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)

	data := testutil.Callback(testutil.SecretKey, purchase.ID, "500", "PENDING")
	_, err := f.svc.CompletePayment(context.Background(), data, callbackQuery(data))
	assert.ErrorIs(t, err, domain.ErrPaymentNotComplete)
	assert.Equal(t, 0, f.status.Calls)
}

func TestCreateFixtureItem(t *testing.T) {
	f := newFixture(t)

	item, err := f.svc.CreateFixtureItem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Headphone", item.Name)
	assert.Equal(t, "500", item.Price.String())
	assert.True(t, item.InStock)
	assert.Equal(t, "vayo pardaina", item.Category)
	assert.True(t, util.IsUUID(item.ID))

	_, err = f.items.GetByIDAndPriceTx(context.Background(), nil, item.ID, decimal.NewFromInt(500))
	assert.NoError(t, err)
}

func TestGetPurchase(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)

	got, err := f.svc.GetPurchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.ID, got.ID)

	_, err = f.svc.GetPurchase(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
	_, err = f.svc.GetPurchase(context.Background(), util.GenerateUUID())
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
}

func TestListStalePending(t *testing.T) {
	f := newFixture(t)
	old := f.seedPending(t, 500)
	f.purchases.Purchases[old.ID].CreatedAt = time.Now().UTC().Add(-time.Hour)
	f.seedPending(t, 500)

	stale, err := f.svc.ListStalePending(context.Background(), 5*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestResolvePending(t *testing.T) {
	f := newFixture(t)
	paid := f.seedPending(t, 500)
	waiting := f.seedPending(t, 500)
	f.status.Complete(paid.ID, decimal.NewFromInt(500))
	f.status.Set(waiting.ID, decimal.NewFromInt(500), "PENDING")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resolved, err := f.svc.ResolvePending(context.Background(), paid)
	require.NoError(t, err)
	assert.True(t, resolved)

	payment, err := f.payments.GetByProductIDTx(context.Background(), nil, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, "0007ZQ3", payment.TransactionID)
	assert.Nil(t, payment.APIQueryFromUser)

	resolved, err = f.svc.ResolvePending(context.Background(), waiting)
	require.NoError(t, err)
	assert.False(t, resolved)

	stored, err := f.purchases.GetByIDTx(context.Background(), nil, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPending, stored.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolvePending_AmountDisagreement(t *testing.T) {
	f := newFixture(t)
	purchase := f.seedPending(t, 500)
	f.status.Complete(purchase.ID, decimal.NewFromInt(50))

	resolved, err := f.svc.ResolvePending(context.Background(), purchase)
	assert.ErrorIs(t, err, domain.ErrPaymentNotVerified)
	assert.False(t, resolved)
	assert.Equal(t, 0, f.payments.Count())
}
