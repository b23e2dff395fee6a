package oracle_test

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/palisade-fi/zapgate/internal/oracle"
)

func TestTWAPInsufficientObservations(t *testing.T) {
	clock := newFakeClock()
	pool := newTestPool(t, clock, 1_000_000, 1_000_000)
	buf := newTestBuffer(t, pool, clock, oracle.DefaultBufferConfig())
	calc := oracle.NewCalculator(buf, oracle.BaseToken0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		clock.Advance(time.Minute)
		require.NoError(t, buf.Sync(ctx))
	}

	_, err := calc.TWAP(clock.Now())
	require.ErrorIs(t, err, oracle.ErrInsufficientObservations)
}

func TestTWAPConstantPrice(t *testing.T) {
	clock := newFakeClock()
	// reserve1/reserve0 = 0.5: token0 priced in token1.
	pool := newTestPool(t, clock, 2_000_000, 1_000_000)
	buf := newTestBuffer(t, pool, clock, oracle.DefaultBufferConfig())
	calc := oracle.NewCalculator(buf, oracle.BaseToken0)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Minute)
		require.NoError(t, buf.Sync(ctx))
	}

	twap, err := calc.TWAP(clock.Now())
	require.NoError(t, err)

	want := math.LegacyNewDecWithPrec(5, 1) // 0.5
	diff := twap.Sub(want).Abs()
	require.True(t, diff.LT(math.LegacyNewDecWithPrec(1, 9)),
		"twap %s deviates from %s by %s", twap, want, diff)
}

func TestTWAPStaleObservations(t *testing.T) {
	clock := newFakeClock()
	pool := newTestPool(t, clock, 1_000_000, 1_000_000)

	cfg := oracle.DefaultBufferConfig()
	cfg.MaxAge = time.Hour
	buf := newTestBuffer(t, pool, clock, cfg)
	calc := oracle.NewCalculator(buf, oracle.BaseToken0)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		clock.Advance(time.Minute)
		require.NoError(t, buf.Sync(ctx))
	}

	// Everything in the buffer ages out of the staleness window.
	clock.Advance(2 * time.Hour)
	_, err := calc.TWAP(clock.Now())
	require.ErrorIs(t, err, oracle.ErrStaleObservations)
}

// The TWAP must lie between the minimum and maximum spot price the pool had
// at any point in the sampled window, for any trade pattern.
func TestTWAPWithinSpotPriceBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clock := newFakeClock()
		pool := newTestPool(t, clock, 50_000_000, 50_000_000)
		buf := newTestBuffer(t, pool, clock, oracle.DefaultBufferConfig())
		calc := oracle.NewCalculator(buf, oracle.BaseToken0)
		ctx := context.Background()

		trader := "trader"
		pool.Mint(ctx, "upaw", trader, math.NewInt(1_000_000_000))
		pool.Mint(ctx, "uusd", trader, math.NewInt(1_000_000_000))

		spot := func() math.LegacyDec {
			r0, r1, _, err := pool.Reserves(ctx)
			require.NoError(rt, err)
			return math.LegacyNewDecFromInt(r1).Quo(math.LegacyNewDecFromInt(r0))
		}

		minP, maxP := spot(), spot()
		observe := func() {
			p := spot()
			if p.LT(minP) {
				minP = p
			}
			if p.GT(maxP) {
				maxP = p
			}
		}

		steps := rapid.IntRange(3, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "trade") {
				amountIn := math.NewInt(rapid.Int64Range(1_000, 2_000_000).Draw(rt, "amountIn"))
				path := []string{"upaw", "uusd"}
				if rapid.Bool().Draw(rt, "reverse") {
					path = []string{"uusd", "upaw"}
				}
				require.NoError(rt, pool.Approve(ctx, path[0], trader, "router", amountIn))
				_, err := pool.SwapExactIn(ctx, amountIn, math.ZeroInt(), path, trader, clock.Now().Add(time.Minute))
				require.NoError(rt, err)
				observe()
			}
			clock.Advance(time.Duration(rapid.Int64Range(30, 3600).Draw(rt, "gap")) * time.Second)
			require.NoError(rt, buf.Sync(ctx))
		}
		if buf.Len() < buf.MinObservations() {
			rt.Skip("not enough observations")
		}

		twap, err := calc.TWAP(clock.Now())
		require.NoError(rt, err)

		eps := math.LegacyNewDecWithPrec(1, 9)
		require.True(rt, twap.GTE(minP.Sub(eps)), "twap %s below min spot %s", twap, minP)
		require.True(rt, twap.LTE(maxP.Add(eps)), "twap %s above max spot %s", twap, maxP)
	})
}
