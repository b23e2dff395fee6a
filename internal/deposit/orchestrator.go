// Package deposit implements the all-or-nothing deposit pipeline: validate,
// resolve a reliable price, pass admission, split the amount, swap one
// portion, form liquidity with both, refund remainders, and only then
// commit admission counters and statistics. A failure at any step reverts
// every side effect of the attempt; no value is ever stranded in the
// gateway account.
package deposit

import (
	"context"
	"sync"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/palisade-fi/zapgate/internal/admission"
	"github.com/palisade-fi/zapgate/internal/amm"
	"github.com/palisade-fi/zapgate/internal/metrics"
	"github.com/palisade-fi/zapgate/internal/oracle"
	"github.com/palisade-fi/zapgate/internal/roles"
	"github.com/palisade-fi/zapgate/internal/stats"
	"github.com/palisade-fi/zapgate/pkg/logger"
)

const bpsDenom = 10_000

// Ratio and slippage bounds enforced on the configuration surface.
const (
	MinRatioBps    = 1_000 // 10%
	MaxRatioBps    = 9_000 // 90%
	MaxSlippageCap = 5_000 // 50%
)

// Config is the orchestrator's tunable surface. Ratio and slippage changes
// go through the role-gated setters at runtime.
type Config struct {
	// GatewayAccount holds funds transiently during one attempt.
	GatewayAccount string
	// DepositDenom is the asset callers deposit; CounterDenom is the pool's
	// other asset, acquired by the swap leg.
	DepositDenom string
	CounterDenom string

	// MinDeposit / MaxDeposit bound the accepted amount. MinDeposit must be
	// at least 10 so the bounded ratio can never zero a portion.
	MinDeposit math.Int
	MaxDeposit math.Int

	// LiquidityRatioBps is the share routed to liquidity formation,
	// bounded to [MinRatioBps, MaxRatioBps].
	LiquidityRatioBps int64
	// MaxSlippageBps caps both the quoted-output floor and the caller's
	// liquidity slippage bound.
	MaxSlippageBps int64

	// MinDeadlineBuffer / MaxDeadlineBuffer bound how far ahead a deadline
	// may sit.
	MinDeadlineBuffer time.Duration
	MaxDeadlineBuffer time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		GatewayAccount:    "zapgate-module",
		MinDeposit:        math.NewInt(10),
		MaxDeposit:        math.NewInt(1_000_000_000),
		LiquidityRatioBps: 5_000,
		MaxSlippageBps:    300,
		MinDeadlineBuffer: 10 * time.Second,
		MaxDeadlineBuffer: time.Hour,
	}
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	if c.GatewayAccount == "" {
		return ErrInvalidConfig.Wrap("gateway account must be set")
	}
	if c.DepositDenom == "" || c.CounterDenom == "" || c.DepositDenom == c.CounterDenom {
		return ErrInvalidConfig.Wrap("deposit and counter denoms must be distinct and non-empty")
	}
	if c.MinDeposit.IsNil() || c.MinDeposit.LT(math.NewInt(10)) {
		return ErrDepositAmountOutOfBounds.Wrap("minimum deposit must be at least 10")
	}
	if c.MaxDeposit.IsNil() || c.MaxDeposit.LT(c.MinDeposit) {
		return ErrDepositAmountOutOfBounds.Wrap("maximum deposit below minimum")
	}
	if c.LiquidityRatioBps < MinRatioBps || c.LiquidityRatioBps > MaxRatioBps {
		return ErrInvalidRatio.Wrapf("ratio %d bps outside [%d, %d]", c.LiquidityRatioBps, MinRatioBps, MaxRatioBps)
	}
	if c.MaxSlippageBps <= 0 || c.MaxSlippageBps > MaxSlippageCap {
		return ErrInvalidSlippage.Wrapf("max slippage %d bps outside (0, %d]", c.MaxSlippageBps, MaxSlippageCap)
	}
	if c.MinDeadlineBuffer <= 0 || c.MaxDeadlineBuffer < c.MinDeadlineBuffer {
		return ErrInvalidDeadline.Wrap("deadline buffers must satisfy 0 < min <= max")
	}
	return nil
}

// Params is one caller's deposit request.
type Params struct {
	Caller string
	Amount math.Int
	// MinSwapOut is the caller's own floor on the swap leg's output; the
	// orchestrator raises it to the quote-minus-slippage floor when higher.
	MinSwapOut math.Int
	// MinLiquidity is the caller's floor on minted LP tokens.
	MinLiquidity math.Int
	// SlippageBps bounds the liquidity leg; capped by the protocol maximum.
	// Zero means "use the protocol maximum".
	SlippageBps int64
	Deadline    time.Time
}

// Receipt describes one settled deposit.
type Receipt struct {
	AttemptID        string         `json:"attempt_id"`
	Caller           string         `json:"caller"`
	AmountIn         math.Int       `json:"amount_in"`
	SwapPortion      math.Int       `json:"swap_portion"`
	LiquidityPortion math.Int       `json:"liquidity_portion"`
	SwapOut          math.Int       `json:"swap_out"`
	UsedDeposit      math.Int       `json:"used_deposit"`
	UsedCounter      math.Int       `json:"used_counter"`
	LPMinted         math.Int       `json:"lp_minted"`
	LPDenom          string         `json:"lp_denom"`
	RefundedDeposit  math.Int       `json:"refunded_deposit"`
	RefundedCounter  math.Int       `json:"refunded_counter"`
	Price            math.LegacyDec `json:"price"`
	PriceSource      string         `json:"price_source"`
	Height           int64          `json:"height"`
	SettledAt        time.Time      `json:"settled_at"`
}

// Orchestrator drives the deposit state machine. One attempt at a time:
// the mutex is try-acquired so a concurrent attempt fails fast instead of
// queueing behind an in-flight mutation.
type Orchestrator struct {
	mu     sync.Mutex
	cfgMu  sync.RWMutex
	cfg    Config
	paused bool

	router    amm.Router
	pool      amm.Pool
	bank      amm.Bank
	head      amm.HeadSource
	admission *admission.Controller
	resolver  *oracle.Resolver
	ledger    RewardsLedger
	store     stats.Store
	auth      roles.Authorizer
	events    EventRecorder
	lpDenom   string

	clock func() time.Time
	log   *logger.Logger
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Router    amm.Router
	Pool      amm.Pool
	Bank      amm.Bank
	Head      amm.HeadSource
	Admission *admission.Controller
	Resolver  *oracle.Resolver
	Ledger    RewardsLedger
	Store     stats.Store
	Auth      roles.Authorizer
	Events    EventRecorder
	LPDenom   string
	Clock     func() time.Time
	Log       *logger.Logger
}

// NewOrchestrator validates the config and wires the pipeline.
func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.NewNopLogger()
	}
	if deps.Ledger == nil {
		deps.Ledger = NewLoggingLedger(deps.Log)
	}
	if deps.Store == nil {
		deps.Store = stats.NewMemoryStore()
	}
	if deps.Auth == nil {
		deps.Auth = roles.AllowAll{}
	}
	if deps.Events == nil {
		deps.Events = NewLoggingRecorder(deps.Log)
	}
	return &Orchestrator{
		cfg:       cfg,
		router:    deps.Router,
		pool:      deps.Pool,
		bank:      deps.Bank,
		head:      deps.Head,
		admission: deps.Admission,
		resolver:  deps.Resolver,
		ledger:    deps.Ledger,
		store:     deps.Store,
		auth:      deps.Auth,
		events:    deps.Events,
		lpDenom:   deps.LPDenom,
		clock:     deps.Clock,
		log:       deps.Log,
	}, nil
}

// Deposit runs the full pipeline for one attempt. Admission counters and
// statistics are committed only after every external call has succeeded.
func (o *Orchestrator) Deposit(ctx context.Context, p Params) (Receipt, error) {
	if !o.mu.TryLock() {
		return Receipt{}, admission.ErrCircuitBreakerUpdating.Wrap("deposit already in flight")
	}
	defer o.mu.Unlock()

	start := o.clock()
	attemptID := uuid.NewString()
	cfg := o.configSnapshot()

	rec, err := o.run(ctx, attemptID, cfg, p)
	if err != nil {
		outcome := EventRejected
		if !rec.AmountIn.IsNil() && rec.AmountIn.IsPositive() {
			// Funds moved before the failure: the attempt was reverted.
			outcome = EventReverted
		}
		o.events.Record(Event{
			Type:      outcome,
			AttemptID: attemptID,
			Caller:    p.Caller,
			Amount:    p.Amount,
			Took:      o.clock().Sub(start),
			Err:       err,
		})
		return Receipt{}, err
	}
	o.events.Record(Event{
		Type:        EventSettled,
		AttemptID:   attemptID,
		Caller:      rec.Caller,
		Amount:      rec.AmountIn,
		LPMinted:    rec.LPMinted,
		PriceSource: rec.PriceSource,
		Took:        o.clock().Sub(start),
	})
	return rec, nil
}

// run executes the state machine. A returned receipt with AmountIn set
// signals to the caller that funds had been pulled before the failure and
// a rollback ran.
func (o *Orchestrator) run(ctx context.Context, attemptID string, cfg Config, p Params) (Receipt, error) {
	now := o.clock()

	if o.isPaused() {
		return Receipt{}, ErrPaused
	}

	// Validated.
	if err := o.validate(cfg, p, now); err != nil {
		return Receipt{}, err
	}
	slippageBps := p.SlippageBps
	if slippageBps == 0 || slippageBps > cfg.MaxSlippageBps {
		slippageBps = cfg.MaxSlippageBps
	}

	height, err := o.head.Height(ctx)
	if err != nil {
		return Receipt{}, ErrHeadUnavailable.Wrap(err.Error())
	}

	// AdmissionGranted. May trip the breaker; never commits volume.
	if err := o.admission.Authorize(p.Caller, p.Amount, height, now); err != nil {
		return Receipt{}, err
	}

	// PriceResolved.
	res, err := o.resolver.Resolve(ctx)
	if err != nil {
		observeOracleFailure(err)
		return Receipt{}, err
	}
	metrics.OracleResolutions.WithLabelValues(res.Source).Inc()
	if o.resolver.HasPrimary() {
		if err := o.resolver.CheckMarketCapLimits(ctx); err != nil {
			metrics.OracleFailures.WithLabelValues("market_cap").Inc()
			return Receipt{}, err
		}
	}

	// Split. Ratio bounds plus the minimum deposit keep both portions
	// positive; a zero portion here is a configuration bug.
	liquidityPortion := p.Amount.MulRaw(cfg.LiquidityRatioBps).QuoRaw(bpsDenom)
	swapPortion := p.Amount.Sub(liquidityPortion)
	if !liquidityPortion.IsPositive() || !swapPortion.IsPositive() {
		return Receipt{}, ErrZeroSplit.Wrapf(
			"amount %s at ratio %d bps split into %s / %s", p.Amount, cfg.LiquidityRatioBps, liquidityPortion, swapPortion,
		)
	}

	// Pull the full amount into the gateway account. From here on every
	// failure path must run the rollback.
	if err := o.bank.Transfer(ctx, cfg.DepositDenom, p.Caller, cfg.GatewayAccount, p.Amount); err != nil {
		return Receipt{}, err
	}
	rec := Receipt{
		AttemptID:        attemptID,
		Caller:           p.Caller,
		AmountIn:         p.Amount,
		SwapPortion:      swapPortion,
		LiquidityPortion: liquidityPortion,
		Price:            res.Price,
		PriceSource:      res.Source,
		Height:           height,
	}

	// Best-effort ledger notify before the swap. Failures are logged,
	// never fatal.
	if err := o.ledger.NotifyDeposit(ctx, p.Caller, p.Amount); err != nil {
		o.log.Warn("rewards ledger notify failed",
			"attempt_id", attemptID, "caller", p.Caller, "error", err.Error())
	}

	// Swapped.
	swapOut, err := o.swap(ctx, cfg, swapPortion, p.MinSwapOut, p.Deadline)
	if err != nil {
		o.rollback(ctx, attemptID, cfg, p.Caller, false)
		return rec, err
	}
	rec.SwapOut = swapOut

	// LiquidityAdded. The minted-LP floor is checked against a preview of
	// the pool's mint math before the call: liquidity provision has no
	// reverse operation, so the floor must reject before any mutation.
	expectedMinted, err := o.previewMinted(ctx, cfg, liquidityPortion, swapOut)
	if err == nil && (!expectedMinted.IsPositive() || expectedMinted.LT(nonNil(p.MinLiquidity))) {
		err = ErrInsufficientLiquidityMinted.Wrapf("would mint %s, caller minimum %s", expectedMinted, nonNil(p.MinLiquidity))
	}
	if err != nil {
		o.rollback(ctx, attemptID, cfg, p.Caller, true)
		return rec, err
	}
	usedDeposit, usedCounter, minted, err := o.addLiquidity(ctx, cfg, liquidityPortion, swapOut, slippageBps, p.Deadline)
	if err == nil && !minted.IsPositive() {
		err = ErrInsufficientLiquidityMinted.Wrapf("minted %s", minted)
	}
	if err != nil {
		o.rollback(ctx, attemptID, cfg, p.Caller, true)
		return rec, err
	}
	rec.UsedDeposit = usedDeposit
	rec.UsedCounter = usedCounter
	rec.LPMinted = minted
	rec.LPDenom = o.lpDenom

	// Settled: forward LP tokens and refund every remainder.
	if err := o.bank.Transfer(ctx, o.lpDenom, cfg.GatewayAccount, p.Caller, minted); err != nil {
		o.rollback(ctx, attemptID, cfg, p.Caller, true)
		return rec, err
	}
	rec.RefundedDeposit = o.refund(ctx, attemptID, cfg.DepositDenom, cfg.GatewayAccount, p.Caller)
	rec.RefundedCounter = o.refund(ctx, attemptID, cfg.CounterDenom, cfg.GatewayAccount, p.Caller)
	rec.SettledAt = o.clock()

	// Post-success commits: statistics first, then admission counters.
	if err := o.store.RecordDeposit(ctx, stats.DepositRecord{
		AttemptID:     attemptID,
		Caller:        p.Caller,
		Denom:         cfg.DepositDenom,
		AmountIn:      p.Amount,
		Swapped:       swapPortion,
		QuoteReceived: swapOut,
		LiquidityUsed: usedDeposit,
		LPMinted:      minted,
		Refunded:      rec.RefundedDeposit,
		PriceSource:   res.Source,
		Height:        height,
		SettledAt:     rec.SettledAt,
	}); err != nil {
		// The deposit itself settled; a stats write failure is operational,
		// not a reason to revert value transfers.
		o.log.Error("statistics write failed", "attempt_id", attemptID, "error", err.Error())
	}
	o.admission.Commit(p.Caller, p.Amount, height, rec.SettledAt)
	return rec, nil
}

// validate enforces amount and deadline bounds before any state change.
func (o *Orchestrator) validate(cfg Config, p Params, now time.Time) error {
	if p.Amount.IsNil() || p.Amount.LT(cfg.MinDeposit) || p.Amount.GT(cfg.MaxDeposit) {
		return ErrDepositAmountOutOfBounds.Wrapf(
			"amount %s outside [%s, %s]", p.Amount, cfg.MinDeposit, cfg.MaxDeposit,
		)
	}
	if p.SlippageBps < 0 || p.SlippageBps > MaxSlippageCap {
		return ErrInvalidSlippage.Wrapf("slippage %d bps outside [0, %d]", p.SlippageBps, MaxSlippageCap)
	}
	if !p.Deadline.After(now) {
		return ErrDeadlineExpired.Wrapf("deadline %s not after %s", p.Deadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	buf := p.Deadline.Sub(now)
	if buf < cfg.MinDeadlineBuffer || buf > cfg.MaxDeadlineBuffer {
		return ErrInvalidDeadline.Wrapf(
			"deadline buffer %s outside [%s, %s]", buf, cfg.MinDeadlineBuffer, cfg.MaxDeadlineBuffer,
		)
	}
	return nil
}

// swap executes the swap leg with an exact allowance grant and an
// unconditional full revoke.
func (o *Orchestrator) swap(ctx context.Context, cfg Config, amountIn, callerMin math.Int, deadline time.Time) (math.Int, error) {
	path := []string{cfg.DepositDenom, cfg.CounterDenom}
	quoted, err := o.router.Quote(ctx, amountIn, path)
	if err != nil {
		return math.Int{}, err
	}
	// Floor = max(caller minimum, quote minus protocol slippage).
	floor := quoted.Sub(quoted.MulRaw(cfg.MaxSlippageBps).QuoRaw(bpsDenom))
	if cm := nonNil(callerMin); cm.GT(floor) {
		floor = cm
	}

	if err := o.bank.Approve(ctx, cfg.DepositDenom, cfg.GatewayAccount, routerSpender, amountIn); err != nil {
		return math.Int{}, err
	}
	amounts, swapErr := o.router.SwapExactIn(ctx, amountIn, floor, path, cfg.GatewayAccount, deadline)
	if err := o.bank.Approve(ctx, cfg.DepositDenom, cfg.GatewayAccount, routerSpender, math.ZeroInt()); err != nil {
		o.log.Error("allowance revoke failed", "denom", cfg.DepositDenom, "error", err.Error())
	}
	if swapErr != nil {
		if sdkerrors.IsOf(swapErr, amm.ErrMinAmountOut) {
			return math.Int{}, ErrInsufficientOutput.Wrap(swapErr.Error())
		}
		return math.Int{}, swapErr
	}
	// Router is a public extension point; never index a reply blindly.
	if len(amounts) == 0 {
		return math.Int{}, ErrInsufficientOutput.Wrap("router returned no swap amounts")
	}
	out := amounts[len(amounts)-1]
	if out.LT(floor) {
		return math.Int{}, ErrInsufficientOutput.Wrapf("received %s, floor %s", out, floor)
	}
	return out, nil
}

// addLiquidity executes the liquidity leg with exact allowances on both
// assets and unconditional revokes.
func (o *Orchestrator) addLiquidity(ctx context.Context, cfg Config, depositAmt, counterAmt math.Int, slippageBps int64, deadline time.Time) (usedDeposit, usedCounter, minted math.Int, err error) {
	minDeposit := depositAmt.Sub(depositAmt.MulRaw(slippageBps).QuoRaw(bpsDenom))
	minCounter := counterAmt.Sub(counterAmt.MulRaw(slippageBps).QuoRaw(bpsDenom))

	if err = o.bank.Approve(ctx, cfg.DepositDenom, cfg.GatewayAccount, routerSpender, depositAmt); err != nil {
		return
	}
	if err = o.bank.Approve(ctx, cfg.CounterDenom, cfg.GatewayAccount, routerSpender, counterAmt); err != nil {
		return
	}
	usedDeposit, usedCounter, minted, err = o.router.AddLiquidity(
		ctx, cfg.DepositDenom, cfg.CounterDenom, depositAmt, counterAmt, minDeposit, minCounter,
		cfg.GatewayAccount, deadline,
	)
	for _, denom := range []string{cfg.DepositDenom, cfg.CounterDenom} {
		if rerr := o.bank.Approve(ctx, denom, cfg.GatewayAccount, routerSpender, math.ZeroInt()); rerr != nil {
			o.log.Error("allowance revoke failed", "denom", denom, "error", rerr.Error())
		}
	}
	if err != nil && sdkerrors.IsOf(err, amm.ErrSlippageExceeded, amm.ErrMinAmountOut) {
		err = ErrInsufficientLiquidityMinted.Wrap(err.Error())
	}
	return
}

// previewMinted replicates the pair's reserve-proportional mint math so
// the minted-LP floor can reject before liquidity is irreversibly added.
func (o *Orchestrator) previewMinted(ctx context.Context, cfg Config, depositAmt, counterAmt math.Int) (math.Int, error) {
	r0, r1, _, err := o.pool.Reserves(ctx)
	if err != nil {
		return math.Int{}, err
	}
	supply, err := o.pool.TotalSupply(ctx)
	if err != nil {
		return math.Int{}, err
	}
	if !r0.IsPositive() || !r1.IsPositive() || !supply.IsPositive() {
		return math.Int{}, amm.ErrInvalidPoolState.Wrap("pool has no reserves or supply")
	}

	amount0, amount1 := depositAmt, counterAmt
	if cfg.DepositDenom != o.pool.Token0() {
		amount0, amount1 = counterAmt, depositAmt
	}
	used0, used1 := amount0, amount0.Mul(r1).Quo(r0)
	if used1.GT(amount1) {
		used0, used1 = amount1.Mul(r0).Quo(r1), amount1
	}
	return math.MinInt(
		used0.Mul(supply).Quo(r0),
		used1.Mul(supply).Quo(r1),
	), nil
}

// rollback reverts an attempt after funds were pulled: reverse the swap
// when one completed, then refund every held balance. Each step is best
// effort; the refunds are what guarantee no value stays in the gateway.
func (o *Orchestrator) rollback(ctx context.Context, attemptID string, cfg Config, caller string, swapped bool) {
	if swapped {
		held, err := o.bank.BalanceOf(ctx, cfg.CounterDenom, cfg.GatewayAccount)
		if err == nil && held.IsPositive() {
			path := []string{cfg.CounterDenom, cfg.DepositDenom}
			if aerr := o.bank.Approve(ctx, cfg.CounterDenom, cfg.GatewayAccount, routerSpender, held); aerr == nil {
				if _, serr := o.router.SwapExactIn(ctx, held, math.ZeroInt(), path, cfg.GatewayAccount, o.clock().Add(time.Minute)); serr != nil {
					o.log.Warn("reverse swap failed during rollback", "attempt_id", attemptID, "error", serr.Error())
				} else {
					metrics.Compensations.WithLabelValues("reverse_swap").Inc()
				}
				if rerr := o.bank.Approve(ctx, cfg.CounterDenom, cfg.GatewayAccount, routerSpender, math.ZeroInt()); rerr != nil {
					o.log.Error("allowance revoke failed", "denom", cfg.CounterDenom, "error", rerr.Error())
				}
			}
		}
	}
	// LP tokens are refunded too: a failed forward transfer after
	// AddLiquidity leaves minted LP in the gateway otherwise.
	denoms := []string{cfg.DepositDenom, cfg.CounterDenom}
	if o.lpDenom != "" {
		denoms = append(denoms, o.lpDenom)
	}
	for _, denom := range denoms {
		if refunded := o.refund(ctx, attemptID, denom, cfg.GatewayAccount, caller); refunded.IsPositive() {
			metrics.Compensations.WithLabelValues("refund").Inc()
		}
	}
}

// refund transfers the gateway's full balance of denom back to the caller
// and returns the amount moved.
func (o *Orchestrator) refund(ctx context.Context, attemptID, denom, from, to string) math.Int {
	bal, err := o.bank.BalanceOf(ctx, denom, from)
	if err != nil || !bal.IsPositive() {
		return math.ZeroInt()
	}
	if err := o.bank.Transfer(ctx, denom, from, to, bal); err != nil {
		o.log.Error("refund transfer failed",
			"attempt_id", attemptID, "denom", denom, "amount", bal.String(), "error", err.Error())
		return math.ZeroInt()
	}
	return bal
}

// routerSpender is the allowance spender identity the router pulls with.
const routerSpender = "router"

func (o *Orchestrator) isPaused() bool {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.paused
}

func (o *Orchestrator) configSnapshot() Config {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

func nonNil(v math.Int) math.Int {
	if v.IsNil() {
		return math.ZeroInt()
	}
	return v
}

// observeRejection maps an admission failure onto its metrics gate label.
func observeRejection(err error) {
	switch {
	case sdkerrors.IsOf(err, admission.ErrFlashLoanProtection):
		metrics.AdmissionRejections.WithLabelValues("flash_loan").Inc()
	case sdkerrors.IsOf(err, admission.ErrDepositTooFrequent):
		metrics.AdmissionRejections.WithLabelValues("min_interval").Inc()
	case sdkerrors.IsOf(err, admission.ErrBlockVolumeExceeded):
		metrics.AdmissionRejections.WithLabelValues("block_volume").Inc()
	case sdkerrors.IsOf(err, admission.ErrDailyLimitExceeded):
		metrics.AdmissionRejections.WithLabelValues("daily_limit").Inc()
	case sdkerrors.IsOf(err, admission.ErrCircuitBreakerActive, admission.ErrCircuitBreakerTriggered):
		metrics.AdmissionRejections.WithLabelValues("breaker").Inc()
		if sdkerrors.IsOf(err, admission.ErrCircuitBreakerTriggered) {
			metrics.BreakerTrips.Inc()
			metrics.SetBreakerActive(true)
		}
	}
}

// observeOracleFailure maps a resolution failure onto its metrics label.
func observeOracleFailure(err error) {
	switch {
	case sdkerrors.IsOf(err, oracle.ErrPriceDeviationTooHigh):
		metrics.OracleFailures.WithLabelValues("deviation").Inc()
	case sdkerrors.IsOf(err, oracle.ErrManualPriceStale):
		metrics.OracleFailures.WithLabelValues("stale_manual").Inc()
	case sdkerrors.IsOf(err, oracle.ErrAllOraclesDown):
		metrics.OracleFailures.WithLabelValues("all_down").Inc()
	}
}
