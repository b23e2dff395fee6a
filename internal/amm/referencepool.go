package amm

import (
	"context"
	"math/big"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
)

const (
	// feeDenomBps is the basis-point denominator used by the swap fee math.
	feeDenomBps = 10_000

	// DefaultSwapFeeBps matches the canonical 0.3% pair fee.
	DefaultSwapFeeBps = 30
)

// ReferencePool is an in-memory constant-product pair implementing Pool,
// Router and Bank. It mirrors the on-chain pair semantics the oracle relies
// on: cumulative price accumulators in Q112 fixed point, updated lazily on
// the first mutation of each second and wrapping mod 2^256.
type ReferencePool struct {
	mu sync.Mutex

	token0, token1 string
	lpDenom        string
	reserve0       math.Int
	reserve1       math.Int
	totalSupply    math.Int
	swapFeeBps     int64

	priceCumulative0 *uint256.Int
	priceCumulative1 *uint256.Int
	lastUpdate       time.Time

	balances   map[string]map[string]math.Int // denom -> account -> balance
	allowances map[string]math.Int            // denom|owner -> allowance granted to the pool

	clock func() time.Time
}

// ReferencePoolConfig seeds a reference pool.
type ReferencePoolConfig struct {
	Token0, Token1     string
	Reserve0, Reserve1 math.Int
	SwapFeeBps         int64
	Clock              func() time.Time
}

// NewReferencePool builds a seeded pool. Initial LP supply follows the
// geometric-mean rule so first-provision share manipulation is not possible.
func NewReferencePool(cfg ReferencePoolConfig) (*ReferencePool, error) {
	if cfg.Token0 == "" || cfg.Token1 == "" || cfg.Token0 == cfg.Token1 {
		return nil, ErrSameToken.Wrap("pool needs two distinct denoms")
	}
	if cfg.Reserve0.IsNil() || cfg.Reserve1.IsNil() || !cfg.Reserve0.IsPositive() || !cfg.Reserve1.IsPositive() {
		return nil, ErrInsufficientReserves.Wrap("pool needs positive seed reserves")
	}
	if cfg.SwapFeeBps < 0 || cfg.SwapFeeBps >= feeDenomBps {
		return nil, ErrInvalidPoolState.Wrapf("swap fee %d bps out of range", cfg.SwapFeeBps)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	p := &ReferencePool{
		token0:           cfg.Token0,
		token1:           cfg.Token1,
		lpDenom:          "lp/" + cfg.Token0 + "-" + cfg.Token1,
		reserve0:         cfg.Reserve0,
		reserve1:         cfg.Reserve1,
		totalSupply:      geometricMean(cfg.Reserve0, cfg.Reserve1),
		swapFeeBps:       cfg.SwapFeeBps,
		priceCumulative0: uint256.NewInt(0),
		priceCumulative1: uint256.NewInt(0),
		lastUpdate:       clock(),
		balances:         make(map[string]map[string]math.Int),
		allowances:       make(map[string]math.Int),
		clock:            clock,
	}
	return p, nil
}

func (p *ReferencePool) Token0() string { return p.token0 }
func (p *ReferencePool) Token1() string { return p.token1 }

// LPDenom is the denom LP shares are minted in.
func (p *ReferencePool) LPDenom() string { return p.lpDenom }

// Reserves returns the current reserves and the timestamp of the last
// accumulator update.
func (p *ReferencePool) Reserves(context.Context) (math.Int, math.Int, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserve0, p.reserve1, p.lastUpdate, nil
}

// CumulativePrice0 returns the stored accumulator for token0 priced in
// token1. Deliberately not extrapolated: readers replicate the lazy
// accumulator themselves, exactly as with the on-chain pair.
func (p *ReferencePool) CumulativePrice0(context.Context) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.priceCumulative0), nil
}

// CumulativePrice1 returns the stored accumulator for token1 priced in token0.
func (p *ReferencePool) CumulativePrice1(context.Context) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.priceCumulative1), nil
}

func (p *ReferencePool) TotalSupply(context.Context) (math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalSupply, nil
}

// accumulate folds elapsed wall time into the price accumulators. Must be
// called with the lock held before any reserve mutation. Overflow wraps mod
// 2^256; that is the accumulator contract, not an error.
func (p *ReferencePool) accumulate(now time.Time) {
	elapsed := int64(now.Sub(p.lastUpdate).Seconds())
	if elapsed <= 0 {
		return
	}
	if p.reserve0.IsPositive() && p.reserve1.IsPositive() {
		r0 := uint256.MustFromBig(p.reserve0.BigInt())
		r1 := uint256.MustFromBig(p.reserve1.BigInt())
		e := uint256.NewInt(uint64(elapsed))

		frac0 := new(uint256.Int).Lsh(r1, 112)
		frac0.Div(frac0, r0)
		p.priceCumulative0.Add(p.priceCumulative0, frac0.Mul(frac0, e))

		frac1 := new(uint256.Int).Lsh(r0, 112)
		frac1.Div(frac1, r1)
		p.priceCumulative1.Add(p.priceCumulative1, frac1.Mul(frac1, e))
	}
	p.lastUpdate = now
}

// Quote returns the constant-product output for a single-hop path.
func (p *ReferencePool) Quote(_ context.Context, amountIn math.Int, path []string) (math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rIn, rOut, err := p.orient(path)
	if err != nil {
		return math.ZeroInt(), err
	}
	return p.amountOut(amountIn, rIn, rOut)
}

// SwapExactIn executes the swap, pulling the input from `to` against a
// prior allowance and crediting the output to `to`.
func (p *ReferencePool) SwapExactIn(_ context.Context, amountIn, minOut math.Int, path []string, to string, deadline time.Time) ([]math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if now.After(deadline) {
		return nil, ErrExpiredDeadline
	}
	rIn, rOut, err := p.orient(path)
	if err != nil {
		return nil, err
	}
	out, err := p.amountOut(amountIn, rIn, rOut)
	if err != nil {
		return nil, err
	}
	if out.LT(minOut) {
		return nil, ErrMinAmountOut.Wrapf("output %s below minimum %s", out, minOut)
	}

	if p.balance(path[0], to).LT(amountIn) {
		return nil, ErrInsufficientFunds.Wrapf("%s has %s %s, needs %s", to, p.balance(path[0], to), path[0], amountIn)
	}
	if err := p.spendAllowance(path[0], to, amountIn); err != nil {
		return nil, err
	}

	p.accumulate(now)
	p.debit(path[0], to, amountIn)
	p.credit(path[1], to, out)
	if path[0] == p.token0 {
		p.reserve0 = p.reserve0.Add(amountIn)
		p.reserve1 = p.reserve1.Sub(out)
	} else {
		p.reserve1 = p.reserve1.Add(amountIn)
		p.reserve0 = p.reserve0.Sub(out)
	}
	return []math.Int{amountIn, out}, nil
}

// AddLiquidity deposits the reserve-proportional optimum of the offered
// amounts and mints LP shares to `to`.
func (p *ReferencePool) AddLiquidity(_ context.Context, tokenA, tokenB string, amountA, amountB, minA, minB math.Int, to string, deadline time.Time) (math.Int, math.Int, math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	zero := math.ZeroInt()
	now := p.clock()
	if now.After(deadline) {
		return zero, zero, zero, ErrExpiredDeadline
	}
	if tokenA == tokenB {
		return zero, zero, zero, ErrSameToken
	}
	if (tokenA != p.token0 && tokenA != p.token1) || (tokenB != p.token0 && tokenB != p.token1) {
		return zero, zero, zero, ErrInvalidPath.Wrapf("%s/%s not in pool", tokenA, tokenB)
	}
	if !amountA.IsPositive() || !amountB.IsPositive() {
		return zero, zero, zero, ErrInvalidAmount.Wrap("liquidity amounts must be positive")
	}

	// Normalize to pool orientation.
	amount0, amount1, min0, min1 := amountA, amountB, minA, minB
	if tokenA != p.token0 {
		amount0, amount1 = amountB, amountA
		min0, min1 = minB, minA
	}

	if p.reserve0.IsZero() || p.reserve1.IsZero() {
		return zero, zero, zero, ErrInvalidPoolState.Wrap("pool has zero reserves")
	}

	used0, used1 := amount0, amount0.Mul(p.reserve1).Quo(p.reserve0)
	if used1.GT(amount1) {
		used0, used1 = amount1.Mul(p.reserve0).Quo(p.reserve1), amount1
	}
	if used0.LT(min0) || used1.LT(min1) {
		return zero, zero, zero, ErrSlippageExceeded.Wrapf("used (%s, %s) below minimums (%s, %s)", used0, used1, min0, min1)
	}

	minted := math.MinInt(
		used0.Mul(p.totalSupply).Quo(p.reserve0),
		used1.Mul(p.totalSupply).Quo(p.reserve1),
	)
	if !minted.IsPositive() {
		return zero, zero, zero, ErrInvalidAmount.Wrap("liquidity amounts too small")
	}

	if p.balance(p.token0, to).LT(used0) || p.balance(p.token1, to).LT(used1) {
		return zero, zero, zero, ErrInsufficientFunds.Wrapf("%s cannot cover (%s, %s)", to, used0, used1)
	}
	if err := p.spendAllowance(p.token0, to, used0); err != nil {
		return zero, zero, zero, err
	}
	if err := p.spendAllowance(p.token1, to, used1); err != nil {
		return zero, zero, zero, err
	}

	p.accumulate(now)
	p.debit(p.token0, to, used0)
	p.debit(p.token1, to, used1)
	p.reserve0 = p.reserve0.Add(used0)
	p.reserve1 = p.reserve1.Add(used1)
	p.totalSupply = p.totalSupply.Add(minted)
	p.credit(p.lpDenom, to, minted)

	usedA, usedB := used0, used1
	if tokenA != p.token0 {
		usedA, usedB = used1, used0
	}
	return usedA, usedB, minted, nil
}

// Bank implementation.

func (p *ReferencePool) BalanceOf(_ context.Context, denom, account string) (math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance(denom, account), nil
}

func (p *ReferencePool) Transfer(_ context.Context, denom, from, to string, amount math.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	if p.balance(denom, from).LT(amount) {
		return ErrInsufficientFunds.Wrapf("%s has %s %s, needs %s", from, p.balance(denom, from), denom, amount)
	}
	p.debit(denom, from, amount)
	p.credit(denom, to, amount)
	return nil
}

func (p *ReferencePool) Approve(_ context.Context, denom, owner, _ string, amount math.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	p.allowances[denom+"|"+owner] = amount
	return nil
}

func (p *ReferencePool) Allowance(_ context.Context, denom, owner, _ string) (math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.allowances[denom+"|"+owner]; ok {
		return a, nil
	}
	return math.ZeroInt(), nil
}

// Mint credits an account out of thin air. Test and local-run seeding only.
func (p *ReferencePool) Mint(_ context.Context, denom, account string, amount math.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credit(denom, account, amount)
}

// helpers, lock held

func (p *ReferencePool) orient(path []string) (rIn, rOut math.Int, err error) {
	zero := math.ZeroInt()
	if len(path) != 2 {
		return zero, zero, ErrInvalidPath.Wrapf("want 2 hops, got %d", len(path))
	}
	switch {
	case path[0] == p.token0 && path[1] == p.token1:
		return p.reserve0, p.reserve1, nil
	case path[0] == p.token1 && path[1] == p.token0:
		return p.reserve1, p.reserve0, nil
	default:
		return zero, zero, ErrInvalidPath.Wrapf("%s -> %s not in pool", path[0], path[1])
	}
}

func (p *ReferencePool) amountOut(amountIn, rIn, rOut math.Int) (math.Int, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return math.ZeroInt(), ErrInvalidAmount
	}
	if !rIn.IsPositive() || !rOut.IsPositive() {
		return math.ZeroInt(), ErrInsufficientReserves
	}
	inWithFee := amountIn.MulRaw(feeDenomBps - p.swapFeeBps)
	numerator := inWithFee.Mul(rOut)
	denominator := rIn.MulRaw(feeDenomBps).Add(inWithFee)
	out := numerator.Quo(denominator)
	if out.GTE(rOut) {
		return math.ZeroInt(), ErrInsufficientReserves.Wrap("swap would drain pool")
	}
	return out, nil
}

func (p *ReferencePool) spendAllowance(denom, owner string, amount math.Int) error {
	key := denom + "|" + owner
	granted, ok := p.allowances[key]
	if !ok {
		granted = math.ZeroInt()
	}
	if granted.LT(amount) {
		return ErrInsufficientAllowance.Wrapf("%s granted %s %s, needs %s", owner, granted, denom, amount)
	}
	p.allowances[key] = granted.Sub(amount)
	return nil
}

func (p *ReferencePool) balance(denom, account string) math.Int {
	if accounts, ok := p.balances[denom]; ok {
		if b, ok := accounts[account]; ok {
			return b
		}
	}
	return math.ZeroInt()
}

func (p *ReferencePool) credit(denom, account string, amount math.Int) {
	accounts, ok := p.balances[denom]
	if !ok {
		accounts = make(map[string]math.Int)
		p.balances[denom] = accounts
	}
	accounts[account] = p.balance(denom, account).Add(amount)
}

func (p *ReferencePool) debit(denom, account string, amount math.Int) {
	accounts, ok := p.balances[denom]
	if !ok {
		accounts = make(map[string]math.Int)
		p.balances[denom] = accounts
	}
	accounts[account] = p.balance(denom, account).Sub(amount)
}

// geometricMean computes sqrt(a*b), the first-provision share rule.
func geometricMean(a, b math.Int) math.Int {
	prod := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return math.NewIntFromBigInt(prod.Sqrt(prod))
}
