// Package admission gates deposits with two independent checks evaluated
// before any external call: a per-caller rate limiter (same-block guard,
// minimum spacing, per-height aggregate cap, rolling daily cap) and a
// global volume circuit breaker. Counters are committed only after the
// guarded operation fully succeeds, so a failed deposit never consumes
// rate-limit or breaker budget.
package admission

import (
	"time"

	"cosmossdk.io/math"
)

// dayWindow is the rolling daily-cap period.
const dayWindow = 24 * time.Hour

// RateLimitConfig bounds per-caller and per-height deposit flow.
type RateLimitConfig struct {
	// MinInterval is the minimum number of heights between two deposits by
	// the same caller.
	MinInterval int64
	// MaxPerHeight caps the aggregate volume admitted at one height.
	MaxPerHeight math.Int
	// MaxPerUserDaily caps one caller's volume per rolling day.
	MaxPerUserDaily math.Int
	// HeightRetention is how many heights of aggregate counters to keep.
	HeightRetention int64
}

// DefaultRateLimitConfig mirrors the production defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MinInterval:     3,
		MaxPerHeight:    math.NewInt(10_000_000),
		MaxPerUserDaily: math.NewInt(1_000_000),
		HeightRetention: 10_000,
	}
}

// Validate rejects unusable configurations.
func (c RateLimitConfig) Validate() error {
	if c.MinInterval < 1 {
		return ErrInvalidConfig.Wrap("min interval must be at least 1")
	}
	if c.MaxPerHeight.IsNil() || !c.MaxPerHeight.IsPositive() {
		return ErrInvalidConfig.Wrap("per-height cap must be positive")
	}
	if c.MaxPerUserDaily.IsNil() || !c.MaxPerUserDaily.IsPositive() {
		return ErrInvalidConfig.Wrap("per-user daily cap must be positive")
	}
	if c.HeightRetention < 1 {
		return ErrInvalidConfig.Wrap("height retention must be at least 1")
	}
	return nil
}

// CallerState tracks one caller's deposit cadence. Entries are created
// lazily and persist for the lifetime of the limiter.
type CallerState struct {
	LastDepositHeight int64
	DailyVolume       math.Int
	DayStart          time.Time
}

// RateLimiter enforces the per-caller gate. Not self-locking: the
// Controller serializes access.
type RateLimiter struct {
	cfg          RateLimitConfig
	callers      map[string]*CallerState
	heightVolume map[int64]math.Int
	maxSeen      int64 // highest committed height, drives pruning
}

// NewRateLimiter builds an empty limiter.
func NewRateLimiter(cfg RateLimitConfig) (*RateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RateLimiter{
		cfg:          cfg,
		callers:      make(map[string]*CallerState),
		heightVolume: make(map[int64]math.Int),
	}, nil
}

// Check evaluates all four gates without mutating any counter.
func (l *RateLimiter) Check(caller string, amount math.Int, height int64, now time.Time) error {
	if st, ok := l.callers[caller]; ok && st.LastDepositHeight > 0 {
		if st.LastDepositHeight == height {
			return ErrFlashLoanProtection.Wrapf("caller %s already interacted at height %d", caller, height)
		}
		if height-st.LastDepositHeight < l.cfg.MinInterval {
			return ErrDepositTooFrequent.Wrapf(
				"last deposit at height %d, need %d heights between deposits", st.LastDepositHeight, l.cfg.MinInterval,
			)
		}
		if daily := l.effectiveDailyVolume(st, now); daily.Add(amount).GT(l.cfg.MaxPerUserDaily) {
			return ErrDailyLimitExceeded.Wrapf(
				"daily volume %s plus %s exceeds cap %s", daily, amount, l.cfg.MaxPerUserDaily,
			)
		}
	} else if amount.GT(l.cfg.MaxPerUserDaily) {
		return ErrDailyLimitExceeded.Wrapf("amount %s exceeds daily cap %s", amount, l.cfg.MaxPerUserDaily)
	}

	blockVol := l.heightVolumeAt(height)
	if blockVol.Add(amount).GT(l.cfg.MaxPerHeight) {
		return ErrBlockVolumeExceeded.Wrapf(
			"height %d volume %s plus %s exceeds cap %s", height, blockVol, amount, l.cfg.MaxPerHeight,
		)
	}
	return nil
}

// Commit records a fully settled deposit and prunes stale height counters.
func (l *RateLimiter) Commit(caller string, amount math.Int, height int64, now time.Time) {
	st, ok := l.callers[caller]
	if !ok {
		st = &CallerState{DailyVolume: math.ZeroInt()}
		l.callers[caller] = st
	}
	if st.DayStart.IsZero() || now.Sub(st.DayStart) >= dayWindow {
		st.DayStart = now
		st.DailyVolume = math.ZeroInt()
	}
	st.DailyVolume = st.DailyVolume.Add(amount)
	st.LastDepositHeight = height

	l.heightVolume[height] = l.heightVolumeAt(height).Add(amount)
	if height > l.maxSeen {
		l.maxSeen = height
	}
	l.prune()
}

// SetConfig swaps the limits. Existing counters are preserved.
func (l *RateLimiter) SetConfig(cfg RateLimitConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.cfg = cfg
	return nil
}

// Config returns the active limits.
func (l *RateLimiter) Config() RateLimitConfig { return l.cfg }

// Caller returns a copy of a caller's state.
func (l *RateLimiter) Caller(caller string) (CallerState, bool) {
	st, ok := l.callers[caller]
	if !ok {
		return CallerState{}, false
	}
	return *st, true
}

// effectiveDailyVolume applies the lazy day-window reset without mutating.
func (l *RateLimiter) effectiveDailyVolume(st *CallerState, now time.Time) math.Int {
	if st.DayStart.IsZero() || now.Sub(st.DayStart) >= dayWindow {
		return math.ZeroInt()
	}
	return st.DailyVolume
}

func (l *RateLimiter) heightVolumeAt(height int64) math.Int {
	if v, ok := l.heightVolume[height]; ok {
		return v
	}
	return math.ZeroInt()
}

// prune drops height counters older than the retention window.
func (l *RateLimiter) prune() {
	cutoff := l.maxSeen - l.cfg.HeightRetention
	if cutoff <= 0 {
		return
	}
	for h := range l.heightVolume {
		if h < cutoff {
			delete(l.heightVolume, h)
		}
	}
}
