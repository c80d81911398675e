package domain

import "errors"

var (
	ErrValidation                  = errors.New("validation failed")
	ErrItemNotFound                = errors.New("item not found")
	ErrItemNotFoundOrPriceMismatch = errors.New("item not found or price mismatch")
	ErrPurchaseNotFound            = errors.New("purchase not found")
	ErrPaymentNotFound             = errors.New("payment not found")
	ErrPaymentRecordExists         = errors.New("payment record already exists for purchase")
	ErrInvalidTransition           = errors.New("invalid purchase status transition")
	ErrAmountMismatch              = errors.New("payment amount does not match purchase")
)

// Gateway verification failures.
var (
	ErrMalformedResponse  = errors.New("malformed gateway response")
	ErrSignatureMismatch  = errors.New("gateway signature mismatch")
	ErrPaymentNotComplete = errors.New("gateway reported payment not complete")
	ErrPaymentNotVerified = errors.New("payment could not be confirmed with gateway")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
