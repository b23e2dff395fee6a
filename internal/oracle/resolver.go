package oracle

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/pkg/logger"
)

// PrimaryOracle is the first-tier price source. A source that errors or
// reports unhealthy is treated as unavailable, never as fatal.
type PrimaryOracle interface {
	Healthy(ctx context.Context) bool
	CurrentPrice(ctx context.Context) (math.LegacyDec, error)
	CachedMarketCap(ctx context.Context) (math.Int, error)
	CheckMarketCapLimits(ctx context.Context) error
}

// SecondaryOracle is the fallback price source.
type SecondaryOracle interface {
	Active(ctx context.Context) bool
	Price(ctx context.Context) (math.LegacyDec, error)
}

// ResolverConfig bounds cross-validation and manual override freshness.
type ResolverConfig struct {
	// MaxDeviationBps aborts resolution when primary and secondary disagree
	// by more than this many basis points.
	MaxDeviationBps int64
	// ManualMaxAge is how long a manual override stays usable.
	ManualMaxAge time.Duration
}

// DefaultResolverConfig allows 10% cross-source deviation and hour-fresh
// manual overrides.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		MaxDeviationBps: 1_000,
		ManualMaxAge:    time.Hour,
	}
}

// Resolution is one authoritative price pick.
type Resolution struct {
	Price        math.LegacyDec
	Source       string // "manual", "primary", "secondary", "fallback"
	MarketCap    math.Int
	HasMarketCap bool
	ResolvedAt   time.Time
}

// Resolver picks one authoritative price per operation with the precedence
// manual override → primary oracle → secondary oracle, cross-validating the
// two automated sources against each other when both respond.
type Resolver struct {
	mu        sync.RWMutex
	cfg       ResolverConfig
	state     *State
	primary   PrimaryOracle
	secondary SecondaryOracle
	clock     func() time.Time
	log       *logger.Logger
}

// NewResolver builds a resolver. Either oracle may be nil; resolution then
// falls through that tier.
func NewResolver(cfg ResolverConfig, primary PrimaryOracle, secondary SecondaryOracle, log *logger.Logger, clock func() time.Time) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Resolver{
		cfg:       cfg,
		state:     NewState(),
		primary:   primary,
		secondary: secondary,
		clock:     clock,
		log:       log,
	}
}

// Resolve returns the authoritative price for one operation. The resolved
// price is always positive or the call fails.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()

	// Tier 0: manual override.
	if r.state.ManualActive {
		if now.Sub(r.state.ManualPriceTime) > r.cfg.ManualMaxAge {
			return Resolution{}, ErrManualPriceStale.Wrapf("set at %s, max age %s", r.state.ManualPriceTime, r.cfg.ManualMaxAge)
		}
		return r.finish(Resolution{Price: r.state.ManualPrice, Source: "manual", ResolvedAt: now})
	}

	// Emergency mode pins resolution to the configured fallback price.
	if r.state.EmergencyMode {
		if !r.state.FallbackPrice.IsPositive() {
			return Resolution{}, ErrAllOraclesDown.Wrap("emergency mode active without a fallback price")
		}
		return r.finish(Resolution{Price: r.state.FallbackPrice, Source: "fallback", ResolvedAt: now})
	}

	primaryPrice, primaryOK := r.probePrimary(ctx)
	secondaryPrice, secondaryOK := r.probeSecondary(ctx)

	// Cross-validation is unconditional: a healthy primary is still rejected
	// when it disagrees too hard with the secondary.
	if primaryOK && secondaryOK {
		dev := deviationBps(primaryPrice, secondaryPrice)
		if dev.GT(math.LegacyNewDec(r.cfg.MaxDeviationBps)) {
			return Resolution{}, ErrPriceDeviationTooHigh.Wrapf(
				"primary %s vs secondary %s is %s bps, max %d bps",
				primaryPrice, secondaryPrice, dev.TruncateInt(), r.cfg.MaxDeviationBps,
			)
		}
	}

	if primaryOK {
		res := Resolution{Price: primaryPrice, Source: "primary", ResolvedAt: now}
		if mcap, err := r.primary.CachedMarketCap(ctx); err == nil {
			res.MarketCap = mcap
			res.HasMarketCap = true
		}
		return r.finish(res)
	}
	if secondaryOK {
		return r.finish(Resolution{Price: secondaryPrice, Source: "secondary", ResolvedAt: now})
	}
	return Resolution{}, ErrAllOraclesDown
}

// probePrimary treats any failure as unavailability.
func (r *Resolver) probePrimary(ctx context.Context) (math.LegacyDec, bool) {
	if r.primary == nil || !r.primary.Healthy(ctx) {
		return math.LegacyZeroDec(), false
	}
	price, err := r.primary.CurrentPrice(ctx)
	if err != nil {
		r.log.Warn("primary oracle probe failed", "error", err.Error())
		return math.LegacyZeroDec(), false
	}
	if !price.IsPositive() {
		return math.LegacyZeroDec(), false
	}
	return price, true
}

// probeSecondary treats any failure as unavailability.
func (r *Resolver) probeSecondary(ctx context.Context) (math.LegacyDec, bool) {
	if r.secondary == nil || !r.secondary.Active(ctx) {
		return math.LegacyZeroDec(), false
	}
	price, err := r.secondary.Price(ctx)
	if err != nil {
		r.log.Warn("secondary oracle probe failed", "error", err.Error())
		return math.LegacyZeroDec(), false
	}
	if !price.IsPositive() {
		return math.LegacyZeroDec(), false
	}
	return price, true
}

// finish caches the resolution into state. Lock held.
func (r *Resolver) finish(res Resolution) (Resolution, error) {
	if res.Source == "primary" {
		r.state.TwapPrice = res.Price
	}
	r.state.LastUpdate = res.ResolvedAt
	if res.HasMarketCap {
		r.state.CachedMarketCap = res.MarketCap
	}
	return res, nil
}

// CheckMarketCapLimits delegates to the primary oracle when one is
// configured. Used by the orchestrator before committing a deposit.
func (r *Resolver) CheckMarketCapLimits(ctx context.Context) error {
	r.mu.RLock()
	primary := r.primary
	r.mu.RUnlock()
	if primary == nil {
		return nil
	}
	if err := primary.CheckMarketCapLimits(ctx); err != nil {
		return ErrOracleNotHealthy.Wrap(err.Error())
	}
	return nil
}

// Status builds the read-only oracle snapshot. Never mutates state.
func (r *Resolver) Status(ctx context.Context) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{
		TwapPrice:       r.state.TwapPrice,
		LastUpdate:      r.state.LastUpdate,
		ManualActive:    r.state.ManualActive,
		ManualPrice:     r.state.ManualPrice,
		ManualPriceTime: r.state.ManualPriceTime,
		EmergencyMode:   r.state.EmergencyMode,
		FallbackPrice:   r.state.FallbackPrice,
		CachedMarketCap: r.state.CachedMarketCap,
	}
	if r.primary != nil {
		st.PrimaryHealthy = r.primary.Healthy(ctx)
		if buffered, ok := r.primary.(interface{ Buffer() *Buffer }); ok {
			st.ObservationCount = buffered.Buffer().Len()
		}
	}
	if r.secondary != nil {
		st.SecondaryActive = r.secondary.Active(ctx)
	}
	return st
}

// SetManualPrice activates the manual override.
func (r *Resolver) SetManualPrice(price math.LegacyDec) error {
	if price.IsNil() || !price.IsPositive() {
		return ErrInvalidPrice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.ManualPrice = price
	r.state.ManualPriceTime = r.clock()
	r.state.ManualActive = true
	return nil
}

// ClearManualPrice deactivates the manual override.
func (r *Resolver) ClearManualPrice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.ManualActive = false
}

// SetEmergencyMode toggles the fallback-only mode.
func (r *Resolver) SetEmergencyMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.EmergencyMode = on
}

// SetFallbackPrice configures the emergency fallback price.
func (r *Resolver) SetFallbackPrice(price math.LegacyDec) error {
	if price.IsNil() || !price.IsPositive() {
		return ErrInvalidPrice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.FallbackPrice = price
	return nil
}

// SetPrimary swaps the primary oracle.
func (r *Resolver) SetPrimary(p PrimaryOracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = p
}

// SetSecondary swaps the secondary oracle.
func (r *Resolver) SetSecondary(s SecondaryOracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secondary = s
}

// HasPrimary reports whether a primary oracle is configured.
func (r *Resolver) HasPrimary() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary != nil
}

// deviationBps computes |hi-lo| * 10000 / lo in basis points.
func deviationBps(a, b math.LegacyDec) math.LegacyDec {
	hi, lo := a, b
	if lo.GT(hi) {
		hi, lo = lo, hi
	}
	return hi.Sub(lo).MulInt64(10_000).Quo(lo)
}
