package checkout_http

import (
	"errors"
	"net/http"

	"checkout/internal/domain"
)

type errorRule struct {
	target  error
	status  int
	message string
	// detail exposes the full error text. Only errors whose text is built
	// from request fields set it.
	detail bool
}

var errorRules = []errorRule{
	{target: domain.ErrValidation, status: http.StatusBadRequest, message: "Invalid request.", detail: true},
	{target: domain.ErrItemNotFoundOrPriceMismatch, status: http.StatusBadRequest, message: "Item not found or price mismatch."},
	{target: domain.ErrMalformedResponse, status: http.StatusBadRequest},
	{target: domain.ErrPurchaseNotFound, status: http.StatusInternalServerError, message: "Purchase not found"},
	{target: domain.ErrSignatureMismatch, status: http.StatusInternalServerError},
	{target: domain.ErrPaymentNotComplete, status: http.StatusInternalServerError},
	{target: domain.ErrPaymentNotVerified, status: http.StatusInternalServerError},
	{target: domain.ErrAmountMismatch, status: http.StatusInternalServerError},
	{target: domain.ErrInvalidTransition, status: http.StatusInternalServerError},
	{target: domain.ErrGatewayUnavailable, status: http.StatusBadGateway},
}

const internalErrorText = "internal server error"

// resolveError maps err to a status and a response body that never carries
// wrapped internal detail. fallbackMessage fills in rules without their own
// message.
func resolveError(err error, fallbackMessage string) (int, failureResponse) {
	for _, rule := range errorRules {
		if !errors.Is(err, rule.target) {
			continue
		}
		resp := failureResponse{Message: rule.message, Error: rule.target.Error()}
		if resp.Message == "" {
			resp.Message = fallbackMessage
		}
		if rule.detail {
			resp.Error = err.Error()
		}
		return rule.status, resp
	}
	return http.StatusInternalServerError, failureResponse{Message: fallbackMessage, Error: internalErrorText}
}
