package oracle

import (
	"math/big"
	"time"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
)

// Base selects which pool token the TWAP prices. Fixed at construction.
type Base int

const (
	// BaseToken0 prices token0 in units of token1 (cumulative0 accumulator).
	BaseToken0 Base = iota
	// BaseToken1 prices token1 in units of token0 (cumulative1 accumulator).
	BaseToken1
)

var (
	q112    = new(big.Int).Lsh(big.NewInt(1), 112)
	decUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(math.LegacyPrecision), nil)
)

// Calculator computes a time-weighted average price from consecutive
// observation pairs in a Buffer.
type Calculator struct {
	buf  *Buffer
	base Base
}

// NewCalculator binds a calculator to a buffer with a fixed pricing base.
func NewCalculator(buf *Buffer, base Base) *Calculator {
	return &Calculator{buf: buf, base: base}
}

// TWAP walks consecutive observation pairs, skipping any pair where either
// side is invalid, older than the staleness window, or zero time apart, and
// returns the elapsed-weighted average of the per-pair period prices.
//
// Cumulative differences are taken mod 2^256: accumulator wraparound is the
// pair's contract and cancels out in the subtraction.
func (c *Calculator) TWAP(now time.Time) (math.LegacyDec, error) {
	obs := c.buf.Snapshot()
	if len(obs) < c.buf.MinObservations() {
		return math.LegacyZeroDec(), ErrInsufficientObservations.Wrapf("have %d, need %d", len(obs), c.buf.MinObservations())
	}

	maxAge := c.buf.MaxAge()
	weightedSum := new(big.Int) // Σ periodPrice * elapsed, Q112
	totalWeight := int64(0)     // Σ elapsed, seconds

	for i := 1; i < len(obs); i++ {
		prev, cur := obs[i-1], obs[i]
		if !prev.Valid || !cur.Valid {
			continue
		}
		if now.Sub(prev.Timestamp) > maxAge || now.Sub(cur.Timestamp) > maxAge {
			continue
		}
		elapsed := int64(cur.Timestamp.Sub(prev.Timestamp).Seconds())
		if elapsed <= 0 {
			continue
		}

		diff := new(uint256.Int)
		switch c.base {
		case BaseToken0:
			diff.Sub(cur.PriceCumulative0, prev.PriceCumulative0)
		default:
			diff.Sub(cur.PriceCumulative1, prev.PriceCumulative1)
		}

		periodPrice := new(big.Int).Quo(diff.ToBig(), big.NewInt(elapsed))
		weightedSum.Add(weightedSum, periodPrice.Mul(periodPrice, big.NewInt(elapsed)))
		totalWeight += elapsed
	}

	if totalWeight == 0 {
		return math.LegacyZeroDec(), ErrStaleObservations.Wrap("no observation pair within the staleness window")
	}

	avg := weightedSum.Quo(weightedSum, big.NewInt(totalWeight))
	return q112ToDec(avg), nil
}

// q112ToDec converts a Q112 fixed-point value to a LegacyDec.
func q112ToDec(v *big.Int) math.LegacyDec {
	scaled := new(big.Int).Mul(v, decUnit)
	scaled.Quo(scaled, q112)
	return math.LegacyNewDecFromBigIntWithPrec(scaled, math.LegacyPrecision)
}
