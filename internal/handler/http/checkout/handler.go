package checkout_http

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"checkout/internal/app/checkout"
	"checkout/internal/domain"
)

//go:embed static/index.html
var indexPage []byte

const (
	messageVerificationFailed = "An error occurred during payment verification"
	messagePaymentSuccessful  = "Payment successful"
)

type CheckoutHandler struct {
	service checkout.CheckoutService
	logger  *zap.Logger
}

func NewCheckoutHandler(s checkout.CheckoutService, l *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: s, logger: l}
}

// InitializeEsewaRequest accepts totalPrice as a JSON number or a numeric
// string.
type InitializeEsewaRequest struct {
	ItemID     string          `json:"itemId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func (h *CheckoutHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexPage)
}

func (h *CheckoutHandler) InitializeEsewaHandler(w http.ResponseWriter, r *http.Request) {
	var req InitializeEsewaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for initialize-esewa", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, failureResponse{Message: "Invalid request body"})
		return
	}

	result, err := h.service.InitiatePurchase(r.Context(), req.ItemID, req.TotalPrice)
	if err != nil {
		status, resp := resolveError(err, "")
		if status >= http.StatusInternalServerError {
			h.logger.Error("Failed to initiate purchase", zap.String("item_id", req.ItemID), zap.Error(err))
		}
		h.writeJSON(w, status, resp)
		return
	}

	h.writeJSON(w, http.StatusOK, initiateResponse{
		Success:           true,
		Payment:           result.Payment,
		PurchasedItemData: toPurchaseResponse(result.Purchase),
	})
}

func (h *CheckoutHandler) CompletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	payment, err := h.service.CompletePayment(r.Context(), query.Get("data"), query)
	if err != nil {
		status, resp := resolveError(err, messageVerificationFailed)
		h.logger.Error("Payment completion failed", zap.Int("status", status), zap.Error(err))
		h.writeJSON(w, status, resp)
		return
	}

	h.writeJSON(w, http.StatusOK, completeResponse{
		Success:     true,
		Message:     messagePaymentSuccessful,
		PaymentData: toPaymentResponse(payment),
	})
}

func (h *CheckoutHandler) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.CreateFixtureItem(r.Context())
	if err != nil {
		h.logger.Error("Failed to create fixture item", zap.Error(err))
		status, resp := resolveError(err, "")
		h.writeJSON(w, status, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, itemEnvelope{Success: true, Item: toItemResponse(item)})
}

func (h *CheckoutHandler) GetPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	purchase, err := h.service.GetPurchase(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPurchaseNotFound) {
			h.writeJSON(w, http.StatusNotFound, failureResponse{Message: "Purchase not found"})
			return
		}
		h.logger.Error("Failed to get purchase", zap.String("purchase_id", id), zap.Error(err))
		status, resp := resolveError(err, "")
		h.writeJSON(w, status, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, purchaseEnvelope{Success: true, PurchasedItemData: toPurchaseResponse(purchase)})
}

func (h *CheckoutHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
