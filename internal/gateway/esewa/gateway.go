// Package esewa implements the eSewa ePay v2 signing contract: HMAC-SHA256
// over an ordered "name=value" message, base64 encoded.
package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"checkout/internal/domain"
)

const (
	FieldTotalAmount      = "total_amount"
	FieldTransactionUUID  = "transaction_uuid"
	FieldProductCode      = "product_code"
	FieldTransactionCode  = "transaction_code"
	FieldStatus           = "status"
	FieldSignedFieldNames = "signed_field_names"
	FieldSignature        = "signature"
)

// StatusComplete is the only status eSewa reports for a settled payment.
const StatusComplete = "COMPLETE"

var requestSignedFields = []string{FieldTotalAmount, FieldTransactionUUID, FieldProductCode}

type Config struct {
	ProductCode string
	SecretKey   string
	PaymentURL  string
	SuccessURL  string
	FailureURL  string
}

// Gateway signs payment requests and verifies encoded callbacks with the
// merchant secret.
type Gateway struct {
	productCode string
	secretKey   []byte
	paymentURL  string
	successURL  string
	failureURL  string
}

func NewGateway(cfg Config) *Gateway {
	return &Gateway{
		productCode: cfg.ProductCode,
		secretKey:   []byte(cfg.SecretKey),
		paymentURL:  cfg.PaymentURL,
		successURL:  cfg.SuccessURL,
		failureURL:  cfg.FailureURL,
	}
}

func (g *Gateway) ProductCode() string {
	return g.productCode
}

func (g *Gateway) sign(message string) string {
	mac := hmac.New(sha256.New, g.secretKey)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// canonicalMessage joins the named values in order as name=value pairs.
func canonicalMessage(fields []string, values map[string]string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: no signed fields", domain.ErrMalformedResponse)
	}
	parts := make([]string, 0, len(fields))
	for _, name := range fields {
		value, ok := values[name]
		if !ok || name == FieldSignature {
			return "", fmt.Errorf("%w: unknown signed field %q", domain.ErrMalformedResponse, name)
		}
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, ","), nil
}
