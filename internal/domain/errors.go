package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrInvalidPhone marks phone input that matches no recognized shape.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrTooSoon is returned when a new code is requested inside the resend cooldown.
	ErrTooSoon = errors.New("please wait before requesting another code")
	// ErrDeliveryFailed means no permitted channel accepted the code.
	ErrDeliveryFailed = errors.New("code delivery failed")
	// ErrDeliveryConfigurationMissing is only logged and counted; the router falls back instead of returning it.
	ErrDeliveryConfigurationMissing = errors.New("delivery channel not configured")
	// ErrStorePersistence wraps every backend failure of a verification or user store.
	ErrStorePersistence = errors.New("store persistence failure")
)
