package deposit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/palisade-fi/zapgate/internal/admission"
	"github.com/palisade-fi/zapgate/internal/amm"
	"github.com/palisade-fi/zapgate/internal/deposit"
	"github.com/palisade-fi/zapgate/internal/oracle"
	"github.com/palisade-fi/zapgate/internal/roles"
	"github.com/palisade-fi/zapgate/internal/stats"
)

const (
	depositDenom = "upaw"
	counterDenom = "uusd"
	gateway      = "gateway"
	alice        = "alice"
	governor     = "governor"
	operator     = "operator"
)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}
func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixedPrimary struct {
	healthy bool
	price   math.LegacyDec
}

func (f *fixedPrimary) Healthy(context.Context) bool                       { return f.healthy }
func (f *fixedPrimary) CurrentPrice(context.Context) (math.LegacyDec, error) { return f.price, nil }
func (f *fixedPrimary) CachedMarketCap(context.Context) (math.Int, error) {
	return math.NewInt(1_000_000), nil
}
func (f *fixedPrimary) CheckMarketCapLimits(context.Context) error { return nil }

type recordingLedger struct {
	calls int
	fail  bool
}

func (l *recordingLedger) NotifyDeposit(context.Context, string, math.Int) error {
	l.calls++
	if l.fail {
		return errors.New("ledger unavailable")
	}
	return nil
}

type harness struct {
	clock  *fakeClock
	pool   *amm.ReferencePool
	head   *amm.ManualHead
	store  *stats.MemoryStore
	ledger *recordingLedger
	orch   *deposit.Orchestrator
}

func newHarness(t *testing.T, mutate func(*deposit.Config, *admission.RateLimitConfig, *admission.BreakerConfig)) *harness {
	return newHarnessWith(t, mutate, nil)
}

func newHarnessWith(t *testing.T, mutate func(*deposit.Config, *admission.RateLimitConfig, *admission.BreakerConfig), wrap func(*deposit.Deps)) *harness {
	t.Helper()
	clock := newFakeClock()

	pool, err := amm.NewReferencePool(amm.ReferencePoolConfig{
		Token0:     depositDenom,
		Token1:     counterDenom,
		Reserve0:   math.NewInt(50_000_000),
		Reserve1:   math.NewInt(50_000_000),
		SwapFeeBps: amm.DefaultSwapFeeBps,
		Clock:      clock.Now,
	})
	require.NoError(t, err)
	pool.Mint(context.Background(), depositDenom, alice, math.NewInt(10_000_000))

	rlCfg := admission.DefaultRateLimitConfig()
	rlCfg.MaxPerHeight = math.NewInt(100_000_000)
	rlCfg.MaxPerUserDaily = math.NewInt(100_000_000)
	brCfg := admission.BreakerConfig{
		VolumeThreshold: math.NewInt(100_000_000),
		WindowDuration:  time.Hour,
		CooldownPeriod:  4 * time.Hour,
	}

	depCfg := deposit.DefaultConfig()
	depCfg.GatewayAccount = gateway
	depCfg.DepositDenom = depositDenom
	depCfg.CounterDenom = counterDenom
	depCfg.MaxDeposit = math.NewInt(10_000_000)
	if mutate != nil {
		mutate(&depCfg, &rlCfg, &brCfg)
	}

	ctrl, err := admission.NewController(rlCfg, brCfg, nil)
	require.NoError(t, err)

	resolver := oracle.NewResolver(oracle.DefaultResolverConfig(),
		&fixedPrimary{healthy: true, price: math.LegacyNewDec(1)}, nil, nil, clock.Now)

	head := amm.NewManualHead(100)
	store := stats.NewMemoryStore()
	ledger := &recordingLedger{}

	auth := roles.NewStaticAuthorizer(map[roles.Capability][]string{
		roles.Governance:        {governor},
		roles.EmergencyOperator: {operator},
		roles.Updater:           {operator},
	})

	deps := deposit.Deps{
		Router:    pool,
		Pool:      pool,
		Bank:      pool,
		Head:      head,
		Admission: ctrl,
		Resolver:  resolver,
		Ledger:    ledger,
		Store:     store,
		Auth:      auth,
		LPDenom:   pool.LPDenom(),
		Clock:     clock.Now,
	}
	if wrap != nil {
		wrap(&deps)
	}
	orch, err := deposit.NewOrchestrator(depCfg, deps)
	require.NoError(t, err)

	return &harness{clock: clock, pool: pool, head: head, store: store, ledger: ledger, orch: orch}
}

func (h *harness) params(amount int64) deposit.Params {
	return deposit.Params{
		Caller:   alice,
		Amount:   math.NewInt(amount),
		Deadline: h.clock.Now().Add(time.Minute),
	}
}

func (h *harness) balance(t *testing.T, denom, account string) math.Int {
	t.Helper()
	bal, err := h.pool.BalanceOf(context.Background(), denom, account)
	require.NoError(t, err)
	return bal
}

func TestDepositSettlesEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	rec, err := h.orch.Deposit(ctx, h.params(1_000_000))
	require.NoError(t, err)

	require.NotEmpty(t, rec.AttemptID)
	require.True(t, rec.SwapPortion.Equal(math.NewInt(500_000)))
	require.True(t, rec.LiquidityPortion.Equal(math.NewInt(500_000)))
	require.True(t, rec.SwapOut.IsPositive())
	require.True(t, rec.LPMinted.IsPositive())
	require.Equal(t, "primary", rec.PriceSource)
	require.Equal(t, int64(100), rec.Height)

	// The caller holds the minted LP tokens; the gateway holds nothing.
	require.True(t, h.balance(t, h.pool.LPDenom(), alice).Equal(rec.LPMinted))
	require.True(t, h.balance(t, depositDenom, gateway).IsZero())
	require.True(t, h.balance(t, counterDenom, gateway).IsZero())
	require.True(t, h.balance(t, h.pool.LPDenom(), gateway).IsZero())

	// Statistics and admission counters are committed.
	us, err := h.orch.UserStatistics(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(1), us.DepositCount)
	require.True(t, us.TotalAmount.Equal(math.NewInt(1_000_000)))

	require.Equal(t, 1, h.ledger.calls)

	_, err = h.orch.Deposit(ctx, h.params(1_000_000))
	require.ErrorIs(t, err, admission.ErrFlashLoanProtection)
}

func TestDepositValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		mut     func(*deposit.Params)
		wantErr error
	}{
		{"below minimum", func(p *deposit.Params) { p.Amount = math.NewInt(5) }, deposit.ErrDepositAmountOutOfBounds},
		{"above maximum", func(p *deposit.Params) { p.Amount = math.NewInt(20_000_000) }, deposit.ErrDepositAmountOutOfBounds},
		{"expired deadline", func(p *deposit.Params) { p.Deadline = h.clock.Now().Add(-time.Second) }, deposit.ErrDeadlineExpired},
		{"deadline too close", func(p *deposit.Params) { p.Deadline = h.clock.Now().Add(time.Second) }, deposit.ErrInvalidDeadline},
		{"deadline too far", func(p *deposit.Params) { p.Deadline = h.clock.Now().Add(48 * time.Hour) }, deposit.ErrInvalidDeadline},
		{"negative slippage", func(p *deposit.Params) { p.SlippageBps = -1 }, deposit.ErrInvalidSlippage},
		{"slippage above cap", func(p *deposit.Params) { p.SlippageBps = 9_000 }, deposit.ErrInvalidSlippage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := h.params(1_000_000)
			tc.mut(&p)
			_, err := h.orch.Deposit(ctx, p)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	// No funds moved, nothing recorded.
	require.True(t, h.balance(t, depositDenom, alice).Equal(math.NewInt(10_000_000)))
	us, err := h.orch.UserStatistics(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), us.DepositCount)
}

func TestDepositPaused(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.orch.Pause(governor))

	_, err := h.orch.Deposit(ctx, h.params(1_000_000))
	require.ErrorIs(t, err, deposit.ErrPaused)

	ok, reason := h.orch.CanDeposit(ctx, alice, math.NewInt(1_000_000))
	require.False(t, ok)
	require.Equal(t, deposit.ErrPaused.Error(), reason)

	require.NoError(t, h.orch.Unpause(governor))
	_, err = h.orch.Deposit(ctx, h.params(1_000_000))
	require.NoError(t, err)
}

func TestDepositRejectedByBreakerMovesNoFunds(t *testing.T) {
	h := newHarness(t, func(_ *deposit.Config, _ *admission.RateLimitConfig, br *admission.BreakerConfig) {
		br.VolumeThreshold = math.NewInt(500_000)
	})
	ctx := context.Background()

	_, err := h.orch.Deposit(ctx, h.params(1_000_000))
	require.ErrorIs(t, err, admission.ErrCircuitBreakerTriggered)

	require.True(t, h.balance(t, depositDenom, alice).Equal(math.NewInt(10_000_000)))
	require.Equal(t, 0, h.ledger.calls)

	us, err := h.orch.UserStatistics(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), us.DepositCount)
}

func TestDepositRollbackOnSwapFloor(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p := h.params(1_000_000)
	p.MinSwapOut = math.NewInt(10_000_000) // unreachable floor

	_, err := h.orch.Deposit(ctx, p)
	require.ErrorIs(t, err, deposit.ErrInsufficientOutput)

	// The pulled funds came straight back.
	require.True(t, h.balance(t, depositDenom, alice).Equal(math.NewInt(10_000_000)))
	require.True(t, h.balance(t, depositDenom, gateway).IsZero())
	require.True(t, h.balance(t, counterDenom, gateway).IsZero())
}

func TestDepositRollbackOnLiquidityFloor(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p := h.params(1_000_000)
	p.MinLiquidity = math.NewInt(100_000_000) // unreachable LP floor

	_, err := h.orch.Deposit(ctx, p)
	require.ErrorIs(t, err, deposit.ErrInsufficientLiquidityMinted)

	// The swap was reversed and everything refunded: the gateway holds
	// nothing and the caller lost at most the two swap fees.
	require.True(t, h.balance(t, depositDenom, gateway).IsZero())
	require.True(t, h.balance(t, counterDenom, gateway).IsZero())
	require.True(t, h.balance(t, counterDenom, alice).IsZero())

	got := h.balance(t, depositDenom, alice)
	require.True(t, got.LT(math.NewInt(10_000_000)))
	require.True(t, got.GT(math.NewInt(9_900_000)), "caller got back %s", got)

	// Admission budget was never consumed: the same height is still open.
	ok, _ := h.orch.CanDeposit(ctx, alice, math.NewInt(1_000_000))
	require.True(t, ok)

	us, err := h.orch.UserStatistics(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), us.DepositCount)
}

func TestDepositSurvivesLedgerFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.fail = true

	rec, err := h.orch.Deposit(context.Background(), h.params(1_000_000))
	require.NoError(t, err)
	require.True(t, rec.LPMinted.IsPositive())
	require.Equal(t, 1, h.ledger.calls)
}

func TestDepositMinIntervalAcrossHeights(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.orch.Deposit(ctx, h.params(100_000))
	require.NoError(t, err)

	h.head.Set(102)
	h.clock.Advance(time.Minute)
	_, err = h.orch.Deposit(ctx, h.params(100_000))
	require.ErrorIs(t, err, admission.ErrDepositTooFrequent)

	h.head.Set(103)
	h.clock.Advance(time.Minute)
	_, err = h.orch.Deposit(ctx, h.params(100_000))
	require.NoError(t, err)
}

func TestConfigurationSurfaceIsRoleGated(t *testing.T) {
	h := newHarness(t, nil)

	require.ErrorIs(t, h.orch.SetLiquidityRatio(alice, 4_000), roles.ErrUnauthorized)
	require.ErrorIs(t, h.orch.Pause(alice), roles.ErrUnauthorized)
	require.ErrorIs(t, h.orch.SetManualPrice(alice, math.LegacyNewDec(2)), roles.ErrUnauthorized)
	require.ErrorIs(t, h.orch.SetManualPrice(governor, math.LegacyNewDec(2)), roles.ErrUnauthorized)

	require.NoError(t, h.orch.SetLiquidityRatio(governor, 4_000))
	require.Equal(t, int64(4_000), h.orch.Config().LiquidityRatioBps)

	require.ErrorIs(t, h.orch.SetLiquidityRatio(governor, 9_500), deposit.ErrInvalidRatio)
	require.ErrorIs(t, h.orch.SetMaxSlippage(governor, 0), deposit.ErrInvalidSlippage)

	require.NoError(t, h.orch.SetManualPrice(operator, math.LegacyNewDec(2)))
	st := h.orch.OracleStatus(context.Background())
	require.True(t, st.ManualActive)
	require.True(t, st.ManualPrice.Equal(math.LegacyNewDec(2)))
}

func TestDepositSplitFollowsRatio(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.orch.SetLiquidityRatio(governor, 3_000))

	rec, err := h.orch.Deposit(ctx, h.params(1_000_000))
	require.NoError(t, err)
	require.True(t, rec.LiquidityPortion.Equal(math.NewInt(300_000)))
	require.True(t, rec.SwapPortion.Equal(math.NewInt(700_000)))
}

func TestDepositSplitAtMaximumRatio(t *testing.T) {
	h := newHarness(t, func(cfg *deposit.Config, _ *admission.RateLimitConfig, _ *admission.BreakerConfig) {
		cfg.LiquidityRatioBps = 9_000
	})
	ctx := context.Background()

	rec, err := h.orch.Deposit(ctx, h.params(1_000_000))
	require.NoError(t, err)
	require.True(t, rec.LiquidityPortion.Equal(math.NewInt(900_000)))
	require.True(t, rec.SwapPortion.Equal(math.NewInt(100_000)))
}

// At the 90% ratio cap a minimum-size deposit still splits into two
// positive portions: 10 -> 9 + 1. The attempt may fail economically (a
// one-unit swap rounds to nothing), but never on the split itself, and
// the caller keeps their funds.
func TestDepositMinimumAmountAtMaximumRatioNeverZeroSplits(t *testing.T) {
	h := newHarness(t, func(cfg *deposit.Config, _ *admission.RateLimitConfig, _ *admission.BreakerConfig) {
		cfg.LiquidityRatioBps = 9_000
	})
	ctx := context.Background()

	before := h.balance(t, depositDenom, alice)
	_, err := h.orch.Deposit(ctx, h.params(10))
	if err != nil {
		require.NotErrorIs(t, err, deposit.ErrZeroSplit)
	}

	require.True(t, h.balance(t, depositDenom, gateway).IsZero())
	require.True(t, h.balance(t, counterDenom, gateway).IsZero())
	got := h.balance(t, depositDenom, alice)
	require.True(t, got.GTE(before.SubRaw(10)), "caller got back %s of %s", got, before)
}

func TestOrchestratorConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(*deposit.Config)
		wantErr error
	}{
		{"missing gateway account", func(c *deposit.Config) { c.GatewayAccount = "" }, deposit.ErrInvalidConfig},
		{"identical denoms", func(c *deposit.Config) { c.CounterDenom = depositDenom }, deposit.ErrInvalidConfig},
		{"minimum deposit below floor", func(c *deposit.Config) { c.MinDeposit = math.NewInt(9) }, deposit.ErrDepositAmountOutOfBounds},
		{"maximum below minimum", func(c *deposit.Config) { c.MaxDeposit = math.NewInt(5) }, deposit.ErrDepositAmountOutOfBounds},
		{"ratio above cap", func(c *deposit.Config) { c.LiquidityRatioBps = 9_500 }, deposit.ErrInvalidRatio},
		{"ratio below floor", func(c *deposit.Config) { c.LiquidityRatioBps = 500 }, deposit.ErrInvalidRatio},
		{"slippage above cap", func(c *deposit.Config) { c.MaxSlippageBps = 6_000 }, deposit.ErrInvalidSlippage},
		{"inverted deadline buffers", func(c *deposit.Config) { c.MaxDeadlineBuffer = time.Second }, deposit.ErrInvalidDeadline},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := deposit.DefaultConfig()
			cfg.GatewayAccount = gateway
			cfg.DepositDenom = depositDenom
			cfg.CounterDenom = counterDenom
			tc.mut(&cfg)
			_, err := deposit.NewOrchestrator(cfg, deposit.Deps{})
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

// flakyLPBank rejects the first LP payout from the gateway, modeling a
// transient transfer failure after liquidity was already added.
type flakyLPBank struct {
	*amm.ReferencePool
	lpDenom string
	failed  bool
}

func (b *flakyLPBank) Transfer(ctx context.Context, denom, from, to string, amount math.Int) error {
	if denom == b.lpDenom && from == gateway && !b.failed {
		b.failed = true
		return errors.New("transfer rejected")
	}
	return b.ReferencePool.Transfer(ctx, denom, from, to, amount)
}

func TestDepositRollbackRefundsMintedLP(t *testing.T) {
	var bank *flakyLPBank
	h := newHarnessWith(t, nil, func(deps *deposit.Deps) {
		bank = &flakyLPBank{ReferencePool: deps.Bank.(*amm.ReferencePool), lpDenom: deps.LPDenom}
		deps.Bank = bank
	})
	ctx := context.Background()

	_, err := h.orch.Deposit(ctx, h.params(1_000_000))
	require.Error(t, err)
	require.True(t, bank.failed)

	// Liquidity was already added when the forward transfer failed, so the
	// minted LP must reach the caller through the rollback refunds; nothing
	// stays behind in the gateway.
	require.True(t, h.balance(t, h.pool.LPDenom(), gateway).IsZero())
	require.True(t, h.balance(t, h.pool.LPDenom(), alice).IsPositive())
	require.True(t, h.balance(t, depositDenom, gateway).IsZero())
	require.True(t, h.balance(t, counterDenom, gateway).IsZero())

	// The failed attempt consumed no admission budget.
	us, err := h.orch.UserStatistics(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(0), us.DepositCount)
}

// emptyReplyRouter returns success with no hop amounts, the degenerate
// reply a third-party Router could produce.
type emptyReplyRouter struct {
	*amm.ReferencePool
}

func (r *emptyReplyRouter) SwapExactIn(context.Context, math.Int, math.Int, []string, string, time.Time) ([]math.Int, error) {
	return nil, nil
}

func TestDepositToleratesEmptyRouterReply(t *testing.T) {
	h := newHarnessWith(t, nil, func(deps *deposit.Deps) {
		deps.Router = &emptyReplyRouter{ReferencePool: deps.Router.(*amm.ReferencePool)}
	})
	ctx := context.Background()

	_, err := h.orch.Deposit(ctx, h.params(1_000_000))
	require.ErrorIs(t, err, deposit.ErrInsufficientOutput)

	// The attempt was rolled back cleanly instead of panicking.
	require.True(t, h.balance(t, depositDenom, alice).Equal(math.NewInt(10_000_000)))
	require.True(t, h.balance(t, depositDenom, gateway).IsZero())
}
