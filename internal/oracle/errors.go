package oracle

import "cosmossdk.io/errors"

// Codespace for oracle sentinel errors.
const Codespace = "oracle"

var (
	ErrInsufficientLiquidity     = errors.Register(Codespace, 1, "insufficient liquidity in pool")
	ErrNonMonotonicTimestamp     = errors.Register(Codespace, 2, "observation timestamp not strictly increasing")
	ErrInsufficientObservations  = errors.Register(Codespace, 3, "insufficient observations for TWAP")
	ErrStaleObservations         = errors.Register(Codespace, 4, "all observations stale")
	ErrManualPriceStale          = errors.Register(Codespace, 5, "manual price override is stale")
	ErrAllOraclesDown            = errors.Register(Codespace, 6, "no reliable price source available")
	ErrPriceDeviationTooHigh     = errors.Register(Codespace, 7, "oracle price deviation exceeds threshold")
	ErrOracleNotHealthy          = errors.Register(Codespace, 8, "oracle not healthy")
	ErrMarketCapOutOfBounds      = errors.Register(Codespace, 9, "market cap outside configured bounds")
	ErrInvalidObservationConfig  = errors.Register(Codespace, 10, "invalid observation buffer configuration")
	ErrInvalidPrice              = errors.Register(Codespace, 11, "price must be positive")
)
