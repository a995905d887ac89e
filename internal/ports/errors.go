package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these so the engine can
// classify failures without knowing which backend produced them.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Ledger Errors (structural: checked before any state is mutated)
	ErrInsufficientCash = errors.New("insufficient cash for operation")
	ErrNoSuchPosition   = errors.New("no position held in instrument")
	ErrOverClose        = errors.New("close quantity exceeds held quantity")

	// Risk Policy Errors (policy: a valid trade the policy refuses)
	ErrTradingPaused      = errors.New("trading paused by circuit breaker")
	ErrPositionTooLarge   = errors.New("position size exceeds configured limit")
	ErrConcentrationLimit = errors.New("instrument exposure exceeds concentration cap")
	ErrMissingStopLoss    = errors.New("recommendation carries no usable stop-loss")
	ErrInvalidStopLoss    = errors.New("stop-loss distance must be positive")
	ErrLowConfidence      = errors.New("recommendation confidence below threshold")

	// Decision Source Errors
	ErrMalformedRecommendation = errors.New("recommendation failed schema validation")
	ErrAdvisorUnavailable      = errors.New("decision source is unavailable")

	// Broker Errors
	ErrBrokerUnavailable    = errors.New("broker API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("broker authentication failed (check API keys)")
	ErrOrderRejected        = errors.New("order rejected by broker")
	ErrOrderPlacementFailed = errors.New("failed to place order")

	// Persistence Errors (fatal for the run loop)
	ErrPersistenceFailed = errors.New("failed to persist ledger state")
	ErrQueryFailed       = errors.New("journal query failed")
)
