// Package amm defines the external AMM collaborators the deposit gateway
// talks to: the pool (reserves, cumulative price accumulators, LP supply),
// the router (quotes, swaps, liquidity provision) and the token bank
// (balances, transfers, allowances). Production deployments back these with
// an on-chain pair (see the evm subpackage); tests and local runs use the
// in-memory ReferencePool.
package amm

import (
	"context"
	"time"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/holiman/uint256"
)

// Codespace for AMM collaborator sentinel errors.
const Codespace = "amm"

var (
	ErrInvalidAmount         = errors.Register(Codespace, 1, "invalid amount")
	ErrInvalidPath           = errors.Register(Codespace, 2, "invalid swap path")
	ErrSameToken             = errors.Register(Codespace, 3, "cannot swap same token")
	ErrInsufficientReserves  = errors.Register(Codespace, 4, "insufficient reserves in pool")
	ErrMinAmountOut          = errors.Register(Codespace, 5, "output amount less than minimum required")
	ErrSlippageExceeded      = errors.Register(Codespace, 6, "slippage exceeded maximum")
	ErrInsufficientFunds     = errors.Register(Codespace, 7, "insufficient funds")
	ErrInsufficientAllowance = errors.Register(Codespace, 8, "insufficient allowance")
	ErrExpiredDeadline       = errors.Register(Codespace, 9, "deadline expired")
	ErrInvalidPoolState      = errors.Register(Codespace, 10, "invalid pool state")
)

// Pool exposes the pair state the oracle samples: reserves, the lazily
// updated cumulative price accumulators (Q112 fixed point, wrapping mod
// 2^256) and the LP token supply.
type Pool interface {
	Token0() string
	Token1() string
	Reserves(ctx context.Context) (reserve0, reserve1 math.Int, lastUpdate time.Time, err error)
	CumulativePrice0(ctx context.Context) (*uint256.Int, error)
	CumulativePrice1(ctx context.Context) (*uint256.Int, error)
	TotalSupply(ctx context.Context) (math.Int, error)
}

// Router executes swaps and liquidity provision. Funds are pulled from the
// `to` account, which must have granted the router an allowance beforehand.
type Router interface {
	// Quote returns the expected output for swapping amountIn along path.
	Quote(ctx context.Context, amountIn math.Int, path []string) (math.Int, error)

	// SwapExactIn swaps amountIn along path, crediting outputs to `to`.
	// Fails ErrMinAmountOut if the final output is below minOut. Returns
	// the amounts at every hop, input first.
	SwapExactIn(ctx context.Context, amountIn, minOut math.Int, path []string, to string, deadline time.Time) ([]math.Int, error)

	// AddLiquidity deposits up to (amountA, amountB), using the
	// reserve-proportional optimum, and mints LP tokens to `to`. Fails
	// ErrSlippageExceeded if either used amount falls below its minimum.
	AddLiquidity(ctx context.Context, tokenA, tokenB string, amountA, amountB, minA, minB math.Int, to string, deadline time.Time) (usedA, usedB, minted math.Int, err error)
}

// Bank moves token balances between accounts. Approvals follow the
// exact-grant, full-revoke discipline enforced by the orchestrator.
type Bank interface {
	BalanceOf(ctx context.Context, denom, account string) (math.Int, error)
	Transfer(ctx context.Context, denom, from, to string, amount math.Int) error
	Approve(ctx context.Context, denom, owner, spender string, amount math.Int) error
	Allowance(ctx context.Context, denom, owner, spender string) (math.Int, error)
}

// HeadSource reports the current chain height. Heights drive the
// same-height and minimum-spacing admission checks.
type HeadSource interface {
	Height(ctx context.Context) (int64, error)
}

// ManualHead is a HeadSource advanced by hand. Local runs and tests use it
// in place of a chain client.
type ManualHead struct {
	h int64
}

func NewManualHead(start int64) *ManualHead { return &ManualHead{h: start} }

func (m *ManualHead) Height(context.Context) (int64, error) { return m.h, nil }

func (m *ManualHead) Advance(n int64) { m.h += n }

func (m *ManualHead) Set(h int64) { m.h = h }
