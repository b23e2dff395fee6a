package admission

import "cosmossdk.io/errors"

// Codespace for admission sentinel errors.
const Codespace = "admission"

var (
	ErrFlashLoanProtection    = errors.Register(Codespace, 1, "deposit in same block as previous interaction")
	ErrDepositTooFrequent     = errors.Register(Codespace, 2, "minimum deposit interval not elapsed")
	ErrBlockVolumeExceeded    = errors.Register(Codespace, 3, "per-block volume cap exceeded")
	ErrDailyLimitExceeded     = errors.Register(Codespace, 4, "daily deposit limit exceeded")
	ErrCircuitBreakerActive   = errors.Register(Codespace, 5, "circuit breaker active, cooldown not elapsed")
	ErrCircuitBreakerTriggered = errors.Register(Codespace, 6, "volume threshold exceeded, circuit breaker triggered")
	ErrCircuitBreakerUpdating = errors.Register(Codespace, 7, "admission state update in progress")
	ErrInvalidConfig          = errors.Register(Codespace, 8, "invalid admission configuration")
)
