package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
)

const PaymentGatewayEsewa = "esewa"

// Payment is the audit record of a verified gateway payment.
type Payment struct {
	ID                      string
	Pidx                    string
	TransactionID           string
	ProductID               string
	Amount                  decimal.Decimal
	DataFromVerificationReq json.RawMessage
	APIQueryFromUser        json.RawMessage
	PaymentGateway          string
	Status                  PaymentStatus
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
