package checkout_http

import (
	"encoding/json"
	"time"

	"checkout/internal/domain"
	"checkout/internal/gateway/esewa"
)

type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type initiateResponse struct {
	Success           bool                  `json:"success"`
	Payment           *esewa.PaymentRequest `json:"payment"`
	PurchasedItemData purchaseResponse      `json:"purchasedItemData"`
}

type completeResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	PaymentData paymentResponse `json:"paymentData"`
}

type itemEnvelope struct {
	Success bool         `json:"success"`
	Item    itemResponse `json:"item"`
}

type purchaseEnvelope struct {
	Success           bool             `json:"success"`
	PurchasedItemData purchaseResponse `json:"purchasedItemData"`
}

type itemResponse struct {
	ID        string      `json:"_id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	InStock   bool        `json:"inStock"`
	Category  string      `json:"category"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type purchaseResponse struct {
	ID            string      `json:"_id"`
	Item          string      `json:"item"`
	TotalPrice    json.Number `json:"totalPrice"`
	PurchaseDate  time.Time   `json:"purchaseDate"`
	PaymentMethod string      `json:"paymentMethod"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type paymentResponse struct {
	ID                      string          `json:"_id"`
	Pidx                    string          `json:"pidx,omitempty"`
	TransactionID           string          `json:"transactionId"`
	ProductID               string          `json:"productId"`
	Amount                  json.Number     `json:"amount"`
	DataFromVerificationReq json.RawMessage `json:"dataFromVerificationReq,omitempty"`
	APIQueryFromUser        json.RawMessage `json:"apiQueryFromUser,omitempty"`
	PaymentGateway          string          `json:"paymentGateway"`
	Status                  string          `json:"status"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

func toItemResponse(it *domain.Item) itemResponse {
	return itemResponse{
		ID:        it.ID,
		Name:      it.Name,
		Price:     json.Number(it.Price.String()),
		InStock:   it.InStock,
		Category:  it.Category,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

func toPurchaseResponse(p *domain.PurchasedItem) purchaseResponse {
	return purchaseResponse{
		ID:            p.ID,
		Item:          p.ItemID,
		TotalPrice:    json.Number(p.TotalPrice.String()),
		PurchaseDate:  p.PurchaseDate,
		PaymentMethod: string(p.PaymentMethod),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:                      p.ID,
		Pidx:                    p.Pidx,
		TransactionID:           p.TransactionID,
		ProductID:               p.ProductID,
		Amount:                  json.Number(p.Amount.String()),
		DataFromVerificationReq: p.DataFromVerificationReq,
		APIQueryFromUser:        p.APIQueryFromUser,
		PaymentGateway:          p.PaymentGateway,
		Status:                  string(p.Status),
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}
