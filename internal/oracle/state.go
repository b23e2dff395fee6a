package oracle

import (
	"time"

	"cosmossdk.io/math"
)

// State is the mutable oracle bookkeeping shared by the resolver and the
// read surface. All access goes through the Resolver, which owns the lock.
type State struct {
	TwapPrice       math.LegacyDec
	CachedMarketCap math.Int
	LastUpdate      time.Time

	ManualPrice     math.LegacyDec
	ManualPriceTime time.Time
	ManualActive    bool

	EmergencyMode bool
	FallbackPrice math.LegacyDec
}

// NewState returns a zeroed state. The first successful resolution fills
// the cached fields.
func NewState() *State {
	return &State{
		TwapPrice:       math.LegacyZeroDec(),
		CachedMarketCap: math.ZeroInt(),
		ManualPrice:     math.LegacyZeroDec(),
		FallbackPrice:   math.LegacyZeroDec(),
	}
}

// Status is the read-only oracle snapshot served by the API. Building it
// never mutates resolver or oracle state.
type Status struct {
	TwapPrice        math.LegacyDec `json:"twap_price"`
	LastUpdate       time.Time      `json:"last_update"`
	ManualActive     bool           `json:"manual_active"`
	ManualPrice      math.LegacyDec `json:"manual_price"`
	ManualPriceTime  time.Time      `json:"manual_price_time"`
	EmergencyMode    bool           `json:"emergency_mode"`
	FallbackPrice    math.LegacyDec `json:"fallback_price"`
	PrimaryHealthy   bool           `json:"primary_healthy"`
	SecondaryActive  bool           `json:"secondary_active"`
	CachedMarketCap  math.Int       `json:"cached_market_cap"`
	ObservationCount int            `json:"observation_count"`
}
