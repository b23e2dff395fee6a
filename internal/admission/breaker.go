package admission

import (
	"time"

	"cosmossdk.io/math"
)

// BreakerConfig bounds aggregate volume inside a rolling window.
type BreakerConfig struct {
	// VolumeThreshold trips the breaker when window volume plus the incoming
	// amount would exceed it.
	VolumeThreshold math.Int
	// WindowDuration is the rolling volume window.
	WindowDuration time.Duration
	// CooldownPeriod is how long the breaker stays tripped.
	CooldownPeriod time.Duration
}

// DefaultBreakerConfig mirrors the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		VolumeThreshold: math.NewInt(500_000),
		WindowDuration:  time.Hour,
		CooldownPeriod:  4 * time.Hour,
	}
}

// Validate rejects unusable configurations.
func (c BreakerConfig) Validate() error {
	if c.VolumeThreshold.IsNil() || !c.VolumeThreshold.IsPositive() {
		return ErrInvalidConfig.Wrap("volume threshold must be positive")
	}
	if c.WindowDuration <= 0 {
		return ErrInvalidConfig.Wrap("window duration must be positive")
	}
	if c.CooldownPeriod <= 0 {
		return ErrInvalidConfig.Wrap("cooldown period must be positive")
	}
	return nil
}

// BreakerStatus is the read-only breaker snapshot. Building it never
// mutates breaker state: expired windows and cooldowns are reflected as
// local adjustments only.
type BreakerStatus struct {
	Triggered       bool          `json:"triggered"`
	TriggeredAt     time.Time     `json:"triggered_at,omitempty"`
	CooldownLeft    time.Duration `json:"cooldown_left"`
	WindowVolume    math.Int      `json:"window_volume"`
	WindowStart     time.Time     `json:"window_start"`
	TriggerCount    uint64        `json:"trigger_count"`
	VolumeThreshold math.Int      `json:"volume_threshold"`
}

// CircuitBreaker trips when window volume would exceed the threshold and
// auto-clears after the cooldown. Not self-locking: the Controller
// serializes access.
//
// Evaluate and Commit are split so a rejected or failed deposit never
// counts toward window volume: Evaluate may trip the breaker, Commit adds
// the amount only after the deposit fully settles.
type CircuitBreaker struct {
	cfg BreakerConfig

	triggered    bool
	triggeredAt  time.Time
	triggerCount uint64

	windowVolume math.Int
	windowStart  time.Time
}

// NewCircuitBreaker builds an untripped breaker.
func NewCircuitBreaker(cfg BreakerConfig) (*CircuitBreaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CircuitBreaker{
		cfg:          cfg,
		windowVolume: math.ZeroInt(),
	}, nil
}

// Evaluate rolls the window, auto-clears an expired cooldown, and decides
// whether amount is admissible. A trip rejects the very deposit that would
// have crossed the threshold, and that amount is not added to the window.
func (b *CircuitBreaker) Evaluate(amount math.Int, now time.Time) error {
	b.roll(now)

	if b.triggered {
		if now.Sub(b.triggeredAt) < b.cfg.CooldownPeriod {
			return ErrCircuitBreakerActive.Wrapf(
				"triggered at %s, cooldown %s", b.triggeredAt.Format(time.RFC3339), b.cfg.CooldownPeriod,
			)
		}
		// Cooldown elapsed: clear and start a fresh window.
		b.triggered = false
		b.windowVolume = math.ZeroInt()
		b.windowStart = now
	}

	if b.windowVolume.Add(amount).GT(b.cfg.VolumeThreshold) {
		b.triggered = true
		b.triggeredAt = now
		b.triggerCount++
		return ErrCircuitBreakerTriggered.Wrapf(
			"window volume %s plus %s exceeds threshold %s", b.windowVolume, amount, b.cfg.VolumeThreshold,
		)
	}
	return nil
}

// Commit adds a settled deposit's amount to the current window.
func (b *CircuitBreaker) Commit(amount math.Int, now time.Time) {
	b.roll(now)
	b.windowVolume = b.windowVolume.Add(amount)
}

// roll starts a fresh window when the current one has expired. The window
// is rolled lazily on access, never by a timer.
func (b *CircuitBreaker) roll(now time.Time) {
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= b.cfg.WindowDuration {
		b.windowStart = now
		b.windowVolume = math.ZeroInt()
	}
}

// Status reports the breaker as of now without mutating it.
func (b *CircuitBreaker) Status(now time.Time) BreakerStatus {
	st := BreakerStatus{
		Triggered:       b.triggered,
		TriggeredAt:     b.triggeredAt,
		WindowVolume:    b.windowVolume,
		WindowStart:     b.windowStart,
		TriggerCount:    b.triggerCount,
		VolumeThreshold: b.cfg.VolumeThreshold,
	}
	if b.triggered {
		left := b.cfg.CooldownPeriod - now.Sub(b.triggeredAt)
		if left <= 0 {
			// Cooldown already elapsed; the next Evaluate will clear it.
			st.Triggered = false
			st.CooldownLeft = 0
		} else {
			st.CooldownLeft = left
		}
	}
	if !b.windowStart.IsZero() && now.Sub(b.windowStart) >= b.cfg.WindowDuration {
		st.WindowVolume = math.ZeroInt()
		st.WindowStart = now
	}
	return st
}

// Reset clears the tripped state immediately. Trigger count is preserved
// for auditability.
func (b *CircuitBreaker) Reset(now time.Time) {
	b.triggered = false
	b.windowVolume = math.ZeroInt()
	b.windowStart = now
}

// SetConfig swaps the breaker limits. Window and trip state are preserved.
func (b *CircuitBreaker) SetConfig(cfg BreakerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.cfg = cfg
	return nil
}

// Config returns the active limits.
func (b *CircuitBreaker) Config() BreakerConfig { return b.cfg }
