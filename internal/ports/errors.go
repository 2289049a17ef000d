package ports

import "errors"

// Standard application-level errors.
// Adapters and the ledger wrap underlying causes with these so callers can use errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Ledger Errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrNoActiveTrade      = errors.New("no active buy trade")
	ErrInsufficientVolume = errors.New("insufficient volume")
	ErrBalanceViolation   = errors.New("ordered index balance invariant violated")

	// Exchange Specific Errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrInvalidRequest       = errors.New("invalid request parameters or format")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")

	// Journal Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
