// Package oracle derives a manipulation-resistant price for the deposit
// gateway: a ring buffer of cumulative-price samples pulled from the pool,
// a time-weighted average over those samples, and a resolver that picks one
// authoritative price per operation from the configured sources.
package oracle

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"

	"github.com/palisade-fi/zapgate/internal/amm"
)

// Observation is one sample of the pool's Q112 cumulative price
// accumulators at a point in time.
type Observation struct {
	PriceCumulative0 *uint256.Int
	PriceCumulative1 *uint256.Int
	Timestamp        time.Time
	Valid            bool
}

// BufferConfig sizes the observation ring.
type BufferConfig struct {
	// Capacity is the ring size; the oldest sample is overwritten once full.
	Capacity int
	// MinObservations is the minimum buffer length before a TWAP is computable.
	MinObservations int
	// MaxAge is how old a sample may be and still contribute to the TWAP.
	MaxAge time.Duration
	// MinReserve rejects samples taken against a drained pool.
	MinReserve math.Int
}

// DefaultBufferConfig mirrors the production defaults: 24 slots, 3 minimum,
// two hour staleness window.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		Capacity:        24,
		MinObservations: 3,
		MaxAge:          2 * time.Hour,
		MinReserve:      math.NewInt(1_000),
	}
}

func (c BufferConfig) validate() error {
	if c.Capacity < 3 {
		return ErrInvalidObservationConfig.Wrapf("capacity %d below minimum 3", c.Capacity)
	}
	if c.MinObservations < 3 || c.MinObservations > c.Capacity {
		return ErrInvalidObservationConfig.Wrapf("min observations %d outside [3, %d]", c.MinObservations, c.Capacity)
	}
	if c.MaxAge <= 0 {
		return ErrInvalidObservationConfig.Wrap("max age must be positive")
	}
	if c.MinReserve.IsNil() || c.MinReserve.IsNegative() {
		return ErrInvalidObservationConfig.Wrap("min reserve must be non-negative")
	}
	return nil
}

// Buffer is a fixed-capacity ring of pool observations. Sync pulls a fresh
// sample; the TWAP calculator walks the chronological snapshot.
type Buffer struct {
	mu    sync.Mutex
	cfg   BufferConfig
	pool  amm.Pool
	obs   []Observation
	next  int // overwrite cursor once the ring is full
	clock func() time.Time
}

// NewBuffer builds an empty ring over the pool. Call Sync to seed it.
func NewBuffer(pool amm.Pool, cfg BufferConfig, clock func() time.Time) (*Buffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &Buffer{
		cfg:   cfg,
		pool:  pool,
		obs:   make([]Observation, 0, cfg.Capacity),
		clock: clock,
	}, nil
}

// Sync reads the pool's reserves and accumulators, extrapolates the lazy
// accumulators for time elapsed since the pool's own last update, and
// appends the sample. The new timestamp must strictly exceed the previous
// one. Fails ErrInsufficientLiquidity when either reserve is below the
// configured minimum.
func (b *Buffer) Sync(ctx context.Context) error {
	reserve0, reserve1, lastUpdate, err := b.pool.Reserves(ctx)
	if err != nil {
		return err
	}
	if reserve0.LT(b.cfg.MinReserve) || reserve1.LT(b.cfg.MinReserve) {
		return ErrInsufficientLiquidity.Wrapf("reserves (%s, %s) below minimum %s", reserve0, reserve1, b.cfg.MinReserve)
	}

	cum0, err := b.pool.CumulativePrice0(ctx)
	if err != nil {
		return err
	}
	cum1, err := b.pool.CumulativePrice1(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	if n := len(b.obs); n > 0 {
		last := b.lastLocked()
		if !now.After(last.Timestamp) {
			return ErrNonMonotonicTimestamp.Wrapf("sample at %s, previous at %s", now, last.Timestamp)
		}
	}

	// The pair only folds elapsed time into its accumulators when it is
	// itself mutated. Replicate that fold here so idle pools still produce
	// usable samples. Wraparound mod 2^256 is intentional.
	extrapolate(cum0, reserve1, reserve0, now, lastUpdate)
	extrapolate(cum1, reserve0, reserve1, now, lastUpdate)

	sample := Observation{
		PriceCumulative0: cum0,
		PriceCumulative1: cum1,
		Timestamp:        now,
		Valid:            true,
	}
	if len(b.obs) < b.cfg.Capacity {
		b.obs = append(b.obs, sample)
	} else {
		b.obs[b.next] = sample
		b.next = (b.next + 1) % b.cfg.Capacity
	}
	return nil
}

// extrapolate folds `elapsed * (other<<112)/self` into cum, wrapping.
func extrapolate(cum *uint256.Int, other, self math.Int, now, lastUpdate time.Time) {
	elapsed := int64(now.Sub(lastUpdate).Seconds())
	if elapsed <= 0 || !self.IsPositive() {
		return
	}
	frac := new(uint256.Int).Lsh(uint256.MustFromBig(other.BigInt()), 112)
	frac.Div(frac, uint256.MustFromBig(self.BigInt()))
	cum.Add(cum, frac.Mul(frac, uint256.NewInt(uint64(elapsed))))
}

// Len reports the current number of stored observations.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.obs)
}

// Capacity reports the ring size.
func (b *Buffer) Capacity() int { return b.cfg.Capacity }

// MinObservations reports the configured minimum for TWAP computation.
func (b *Buffer) MinObservations() int { return b.cfg.MinObservations }

// MaxAge reports the staleness window.
func (b *Buffer) MaxAge() time.Duration { return b.cfg.MaxAge }

// Snapshot returns the stored observations oldest-first.
func (b *Buffer) Snapshot() []Observation {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Observation, 0, len(b.obs))
	if len(b.obs) < b.cfg.Capacity {
		out = append(out, b.obs...)
		return out
	}
	out = append(out, b.obs[b.next:]...)
	out = append(out, b.obs[:b.next]...)
	return out
}

// Last returns the most recent observation, if any.
func (b *Buffer) Last() (Observation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.obs) == 0 {
		return Observation{}, false
	}
	return b.lastLocked(), true
}

func (b *Buffer) lastLocked() Observation {
	if len(b.obs) < b.cfg.Capacity {
		return b.obs[len(b.obs)-1]
	}
	return b.obs[(b.next+b.cfg.Capacity-1)%b.cfg.Capacity]
}
