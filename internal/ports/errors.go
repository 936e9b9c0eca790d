package ports

import "errors"

// Standard application-level errors for the trading core.
// Every failure surfaced by a core component wraps exactly one of these so
// callers can branch on cause with errors.Is.
var (
	// Validation errors - checked before any state mutation.
	ErrInvalidAmount       = errors.New("payment amount must be positive")
	ErrInvalidLeverage     = errors.New("leverage outside the allowed range")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrInvalidTriggerPrice = errors.New("trigger price must be positive")
	ErrInvalidPosition     = errors.New("invalid position id")

	// Authorization errors - checked before other validation.
	ErrUnauthorized = errors.New("caller is not authorized for this operation")

	// State errors - operating on a missing or terminal entity.
	ErrPositionNotFound = errors.New("no open position found")
	ErrTooManyPositions = errors.New("trader reached the open positions limit")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotPending  = errors.New("order is not pending")
	ErrOrderExpired     = errors.New("order expired")
	ErrTriggerNotMet    = errors.New("trigger price condition not met")
	ErrNotLiquidatable  = errors.New("position margin is above the liquidation threshold")
	ErrNoRewards        = errors.New("no accrued liquidator rewards to claim")

	// Wiring and call-chain errors.
	ErrComponentNotConfigured = errors.New("required component is not configured")
	ErrReentrantCall          = errors.New("reentrant call within the same call chain")

	// External-call failure - the settlement transfer itself failed.
	// Fatal to the operation; staged state is rolled back.
	ErrTransferFailed = errors.New("settlement transfer failed")
)
