package event

import "time"

type PurchaseCompletedEvent struct {
	PurchaseID      string    `json:"purchase_id"`
	PaymentID       string    `json:"payment_id"`
	ItemID          string    `json:"item_id"`
	Amount          string    `json:"amount"`
	TransactionCode string    `json:"transaction_code"`
	Gateway         string    `json:"gateway"`
	Timestamp       time.Time `json:"timestamp"`
}
