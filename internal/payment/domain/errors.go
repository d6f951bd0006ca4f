package domain

import "errors"

var (
	ErrMissingReference = errors.New("missing_reference")
	ErrMissingItemID    = errors.New("missing_item_id")
	ErrInvalidItemID    = errors.New("invalid_item_id")
	ErrPaymentNotFound  = errors.New("payment_not_found")
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_payment_config")
	ErrInitializeFailed = errors.New("payment_initialize_failed")
)

// GatewayError means the provider could not confirm the payment. Nothing was
// written.
type GatewayError struct {
	Reason FailureReason
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return "gateway_error: " + string(e.Reason) + ": " + e.Err.Error()
	}
	return "gateway_error: " + string(e.Reason)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure while recording a payment.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence_error: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
