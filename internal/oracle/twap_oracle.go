package oracle

import (
	"context"
	"time"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/internal/amm"
)

// TWAPOracleConfig bounds the market-cap health check.
type TWAPOracleConfig struct {
	// CirculatingSupply of the priced token, used to derive market cap.
	CirculatingSupply math.Int
	// MinMarketCap / MaxMarketCap bound the health check; zero disables a bound.
	MinMarketCap math.Int
	MaxMarketCap math.Int
}

// TWAPOracle implements PrimaryOracle on top of the observation buffer and
// calculator. It is the gateway's own first-tier price source.
type TWAPOracle struct {
	buf   *Buffer
	calc  *Calculator
	cfg   TWAPOracleConfig
	clock func() time.Time
}

// NewTWAPOracle seeds the buffer with one observation from the pool's
// current accumulators and returns the oracle.
func NewTWAPOracle(ctx context.Context, pool amm.Pool, bufCfg BufferConfig, base Base, cfg TWAPOracleConfig, clock func() time.Time) (*TWAPOracle, error) {
	if clock == nil {
		clock = time.Now
	}
	buf, err := NewBuffer(pool, bufCfg, clock)
	if err != nil {
		return nil, err
	}
	if err := buf.Sync(ctx); err != nil {
		return nil, err
	}
	return &TWAPOracle{
		buf:   buf,
		calc:  NewCalculator(buf, base),
		cfg:   cfg,
		clock: clock,
	}, nil
}

// Buffer exposes the underlying ring for the sync loop and the status view.
func (o *TWAPOracle) Buffer() *Buffer { return o.buf }

// Sync pulls a fresh observation from the pool.
func (o *TWAPOracle) Sync(ctx context.Context) error { return o.buf.Sync(ctx) }

// Healthy reports whether a TWAP is currently computable.
func (o *TWAPOracle) Healthy(ctx context.Context) bool {
	_, err := o.calc.TWAP(o.clock())
	return err == nil
}

// CurrentPrice returns the time-weighted average price.
func (o *TWAPOracle) CurrentPrice(ctx context.Context) (math.LegacyDec, error) {
	return o.calc.TWAP(o.clock())
}

// CachedMarketCap derives market cap from the TWAP and the configured
// circulating supply.
func (o *TWAPOracle) CachedMarketCap(ctx context.Context) (math.Int, error) {
	price, err := o.calc.TWAP(o.clock())
	if err != nil {
		return math.ZeroInt(), err
	}
	if o.cfg.CirculatingSupply.IsNil() || o.cfg.CirculatingSupply.IsZero() {
		return math.ZeroInt(), nil
	}
	return price.MulInt(o.cfg.CirculatingSupply).TruncateInt(), nil
}

// CheckMarketCapLimits fails when the derived market cap leaves the
// configured bounds.
func (o *TWAPOracle) CheckMarketCapLimits(ctx context.Context) error {
	mcap, err := o.CachedMarketCap(ctx)
	if err != nil {
		return err
	}
	if !o.cfg.MinMarketCap.IsNil() && o.cfg.MinMarketCap.IsPositive() && mcap.LT(o.cfg.MinMarketCap) {
		return ErrMarketCapOutOfBounds.Wrapf("market cap %s below minimum %s", mcap, o.cfg.MinMarketCap)
	}
	if !o.cfg.MaxMarketCap.IsNil() && o.cfg.MaxMarketCap.IsPositive() && mcap.GT(o.cfg.MaxMarketCap) {
		return ErrMarketCapOutOfBounds.Wrapf("market cap %s above maximum %s", mcap, o.cfg.MaxMarketCap)
	}
	return nil
}
