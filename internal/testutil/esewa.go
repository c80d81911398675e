package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
	"checkout/internal/gateway/esewa"
)

const (
	ProductCode = "EPAYTEST"
	SecretKey   = "8gBm/:&EnhH.1/q"
)

func NewGateway() *esewa.Gateway {
	return esewa.NewGateway(esewa.Config{
		ProductCode: ProductCode,
		SecretKey:   SecretKey,
		PaymentURL:  "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		SuccessURL:  "http://localhost:3001/complete-payment",
		FailureURL:  "http://localhost:3001/",
	})
}

// Callback returns the base64 payload eSewa would redirect with after a
// payment, signed with secret.
func Callback(secret, transactionUUID, totalAmount, status string) string {
	const signed = "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"
	fields := map[string]string{
		esewa.FieldTransactionCode:  "000AWEO",
		esewa.FieldStatus:           status,
		esewa.FieldTotalAmount:      totalAmount,
		esewa.FieldTransactionUUID:  transactionUUID,
		esewa.FieldProductCode:      ProductCode,
		esewa.FieldSignedFieldNames: signed,
	}
	msg := "transaction_code=" + fields[esewa.FieldTransactionCode] +
		",status=" + status +
		",total_amount=" + totalAmount +
		",transaction_uuid=" + transactionUUID +
		",product_code=" + ProductCode +
		",signed_field_names=" + signed

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	fields[esewa.FieldSignature] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	raw, _ := json.Marshal(fields)
	return base64.StdEncoding.EncodeToString(raw)
}

// StatusChecker answers status lookups from a fixed table. Unknown
// transactions are reported as NOT_FOUND.
type StatusChecker struct {
	mu        sync.Mutex
	Responses map[string]*esewa.StatusResponse
	Err       error
	Calls     int
}

func NewStatusChecker() *StatusChecker {
	return &StatusChecker{Responses: map[string]*esewa.StatusResponse{}}
}

// Complete registers a COMPLETE status for the transaction.
func (c *StatusChecker) Complete(transactionUUID string, amount decimal.Decimal) {
	c.Set(transactionUUID, amount, esewa.StatusComplete)
}

func (c *StatusChecker) Set(transactionUUID string, amount decimal.Decimal, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref := "0007ZQ3"
	c.Responses[transactionUUID] = &esewa.StatusResponse{
		ProductCode:     ProductCode,
		TransactionUUID: transactionUUID,
		TotalAmount:     json.Number(amount.String()),
		Status:          status,
		RefID:           &ref,
	}
}

func (c *StatusChecker) CheckStatus(_ context.Context, transactionUUID string, totalAmount decimal.Decimal) (*esewa.StatusResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	if resp, ok := c.Responses[transactionUUID]; ok {
		cp := *resp
		return &cp, nil
	}
	return &esewa.StatusResponse{
		ProductCode:     ProductCode,
		TransactionUUID: transactionUUID,
		TotalAmount:     json.Number(totalAmount.String()),
		Status:          "NOT_FOUND",
	}, nil
}

// Item returns a stored-shape item with a fixed id.
func Item(id string, price int64) *domain.Item {
	it, _ := domain.NewItem(id, "Headphone", decimal.NewFromInt(price), true, "vayo pardaina")
	return it
}
