package esewa

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
)

// PaymentRequest holds every field of the eSewa form post.
type PaymentRequest struct {
	FormURL               string `json:"form_url"`
	Amount                string `json:"amount"`
	TaxAmount             string `json:"tax_amount"`
	TotalAmount           string `json:"total_amount"`
	TransactionUUID       string `json:"transaction_uuid"`
	ProductCode           string `json:"product_code"`
	ProductServiceCharge  string `json:"product_service_charge"`
	ProductDeliveryCharge string `json:"product_delivery_charge"`
	SuccessURL            string `json:"success_url"`
	FailureURL            string `json:"failure_url"`
	SignedFieldNames      string `json:"signed_field_names"`
	Signature             string `json:"signature"`
}

func (g *Gateway) Sign(amount decimal.Decimal, transactionUUID string) (*PaymentRequest, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if strings.TrimSpace(transactionUUID) == "" {
		return nil, fmt.Errorf("%w: transaction uuid is required", domain.ErrValidation)
	}

	total := amount.String()
	message, err := canonicalMessage(requestSignedFields, map[string]string{
		FieldTotalAmount:     total,
		FieldTransactionUUID: transactionUUID,
		FieldProductCode:     g.productCode,
	})
	if err != nil {
		return nil, err
	}

	return &PaymentRequest{
		FormURL:               g.paymentURL,
		Amount:                total,
		TaxAmount:             "0",
		TotalAmount:           total,
		TransactionUUID:       transactionUUID,
		ProductCode:           g.productCode,
		ProductServiceCharge:  "0",
		ProductDeliveryCharge: "0",
		SuccessURL:            g.successURL,
		FailureURL:            g.failureURL,
		SignedFieldNames:      strings.Join(requestSignedFields, ","),
		Signature:             g.sign(message),
	}, nil
}
