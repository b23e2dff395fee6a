package admission

import (
	"sync"
	"time"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/pkg/logger"
)

// Controller is the dual-gate admission front: every deposit must pass the
// rate limiter and the circuit breaker before any funds move. Authorize may
// trip the breaker; Commit records volume only after the deposit settles.
type Controller struct {
	mu      sync.Mutex
	limiter *RateLimiter
	breaker *CircuitBreaker
	log     *logger.Logger
}

// NewController wires the two gates behind one lock.
func NewController(rlCfg RateLimitConfig, brCfg BreakerConfig, log *logger.Logger) (*Controller, error) {
	limiter, err := NewRateLimiter(rlCfg)
	if err != nil {
		return nil, err
	}
	breaker, err := NewCircuitBreaker(brCfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Controller{limiter: limiter, breaker: breaker, log: log}, nil
}

// Authorize runs both gates in order: rate limits first, breaker second.
// The only state it may mutate is the breaker's trip state; no volume or
// caller counter moves until Commit.
func (c *Controller) Authorize(caller string, amount math.Int, height int64, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.Check(caller, amount, height, now); err != nil {
		c.log.Info("deposit rejected by rate limiter",
			"caller", caller, "amount", amount.String(), "height", height, "reason", err.Error())
		return err
	}
	if err := c.breaker.Evaluate(amount, now); err != nil {
		c.log.Warn("deposit rejected by circuit breaker",
			"caller", caller, "amount", amount.String(), "reason", err.Error())
		return err
	}
	return nil
}

// Commit records a fully settled deposit against both gates.
func (c *Controller) Commit(caller string, amount math.Int, height int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiter.Commit(caller, amount, height, now)
	c.breaker.Commit(amount, now)
}

// CanDeposit is the read-only preview used by the API. It never mutates
// any gate state, including the breaker's trip state: a would-trip amount
// reports inadmissible without tripping.
func (c *Controller) CanDeposit(caller string, amount math.Int, height int64, now time.Time) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.Check(caller, amount, height, now); err != nil {
		return false, err.Error()
	}
	st := c.breaker.Status(now)
	if st.Triggered {
		return false, ErrCircuitBreakerActive.Error()
	}
	if st.WindowVolume.Add(amount).GT(st.VolumeThreshold) {
		return false, ErrCircuitBreakerTriggered.Error()
	}
	return true, ""
}

// BreakerStatus reports the breaker as of now.
func (c *Controller) BreakerStatus(now time.Time) BreakerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.breaker.Status(now)
}

// CallerState returns a copy of a caller's rate-limit state.
func (c *Controller) CallerState(caller string) (CallerState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter.Caller(caller)
}

// ResetBreaker clears a tripped breaker. Governance-gated by the caller.
func (c *Controller) ResetBreaker(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breaker.Reset(now)
	c.log.Warn("circuit breaker manually reset")
}

// SetBreakerConfig swaps the breaker limits.
func (c *Controller) SetBreakerConfig(cfg BreakerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.breaker.SetConfig(cfg)
}

// SetRateLimitConfig swaps the rate-limit bounds.
func (c *Controller) SetRateLimitConfig(cfg RateLimitConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter.SetConfig(cfg)
}

// RateLimitConfig returns the active rate-limit bounds.
func (c *Controller) RateLimitConfig() RateLimitConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter.Config()
}

// BreakerConfig returns the active breaker limits.
func (c *Controller) BreakerConfig() BreakerConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.breaker.Config()
}
