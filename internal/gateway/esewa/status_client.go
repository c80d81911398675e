package esewa

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"checkout/internal/domain"
)

// StatusResponse is the body of the eSewa transaction status API.
type StatusResponse struct {
	ProductCode     string      `json:"product_code"`
	TransactionUUID string      `json:"transaction_uuid"`
	TotalAmount     json.Number `json:"total_amount"`
	Status          string      `json:"status"`
	RefID           *string     `json:"ref_id"`
}

// Matches reports whether the gateway confirms a completed payment for the
// given transaction and amount.
func (r *StatusResponse) Matches(transactionUUID string, amount decimal.Decimal) bool {
	if r.Status != StatusComplete || r.TransactionUUID != transactionUUID {
		return false
	}
	reported, err := ParseAmount(r.TotalAmount.String())
	if err != nil {
		return false
	}
	return reported.Equal(amount)
}

type StatusClient struct {
	client      *resty.Client
	statusURL   string
	productCode string
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewStatusClient builds a client for the status API. rps <= 0 disables
// throttling.
func NewStatusClient(statusURL, productCode string, timeout time.Duration, rps float64, logger *zap.Logger) *StatusClient {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(math.Max(1, math.Ceil(rps)))
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &StatusClient{
		client:      client,
		statusURL:   statusURL,
		productCode: productCode,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
	}
}

func (c *StatusClient) CheckStatus(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*StatusResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	var out StatusResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			FieldProductCode:     c.productCode,
			FieldTotalAmount:     totalAmount.String(),
			FieldTransactionUUID: transactionUUID,
		}).
		SetResult(&out).
		Get(c.statusURL)
	if err != nil {
		c.logger.Error("eSewa status request failed", zap.String("transaction_uuid", transactionUUID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Warn("eSewa status API returned error",
			zap.String("transaction_uuid", transactionUUID),
			zap.Int("http_status", resp.StatusCode()))
		return nil, fmt.Errorf("%w: status API returned %d", domain.ErrGatewayUnavailable, resp.StatusCode())
	}

	c.logger.Debug("eSewa status received",
		zap.String("transaction_uuid", transactionUUID),
		zap.String("status", out.Status))
	return &out, nil
}
