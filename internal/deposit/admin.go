package deposit

import (
	"context"
	"time"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/internal/admission"
	"github.com/palisade-fi/zapgate/internal/metrics"
	"github.com/palisade-fi/zapgate/internal/oracle"
	"github.com/palisade-fi/zapgate/internal/roles"
	"github.com/palisade-fi/zapgate/internal/stats"
)

// Read surface. Pure: none of these mutate admission or oracle state.

// CanDeposit previews whether a deposit would pass admission right now.
func (o *Orchestrator) CanDeposit(ctx context.Context, caller string, amount math.Int) (bool, string) {
	if o.isPaused() {
		return false, ErrPaused.Error()
	}
	cfg := o.configSnapshot()
	if amount.IsNil() || amount.LT(cfg.MinDeposit) || amount.GT(cfg.MaxDeposit) {
		return false, ErrDepositAmountOutOfBounds.Error()
	}
	height, err := o.head.Height(ctx)
	if err != nil {
		return false, ErrHeadUnavailable.Error()
	}
	return o.admission.CanDeposit(caller, amount, height, o.clock())
}

// OracleStatus returns the oracle snapshot.
func (o *Orchestrator) OracleStatus(ctx context.Context) oracle.Status {
	return o.resolver.Status(ctx)
}

// BreakerStatus returns the circuit breaker snapshot.
func (o *Orchestrator) BreakerStatus() admission.BreakerStatus {
	return o.admission.BreakerStatus(o.clock())
}

// UserStatistics returns one caller's settled-deposit aggregate.
func (o *Orchestrator) UserStatistics(ctx context.Context, caller string) (stats.UserStats, error) {
	return o.store.User(ctx, caller)
}

// ProtocolStatistics returns the global settled-deposit aggregate.
func (o *Orchestrator) ProtocolStatistics(ctx context.Context) (stats.ProtocolStats, error) {
	return o.store.Protocol(ctx)
}

// Config returns the active orchestrator configuration.
func (o *Orchestrator) Config() Config { return o.configSnapshot() }

// Paused reports whether deposits are halted.
func (o *Orchestrator) Paused() bool { return o.isPaused() }

// Configuration surface. Every mutator is capability-gated.

// SetLiquidityRatio changes the liquidity split, bounded to [10%, 90%].
func (o *Orchestrator) SetLiquidityRatio(actor string, ratioBps int64) error {
	if err := o.auth.Require(actor, roles.Governance); err != nil {
		return err
	}
	if ratioBps < MinRatioBps || ratioBps > MaxRatioBps {
		return ErrInvalidRatio.Wrapf("ratio %d bps outside [%d, %d]", ratioBps, MinRatioBps, MaxRatioBps)
	}
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	o.cfg.LiquidityRatioBps = ratioBps
	o.log.Info("liquidity ratio updated", "actor", actor, "ratio_bps", ratioBps)
	return nil
}

// SetMaxSlippage changes the protocol slippage cap.
func (o *Orchestrator) SetMaxSlippage(actor string, slippageBps int64) error {
	if err := o.auth.Require(actor, roles.Governance); err != nil {
		return err
	}
	if slippageBps <= 0 || slippageBps > MaxSlippageCap {
		return ErrInvalidSlippage.Wrapf("slippage %d bps outside (0, %d]", slippageBps, MaxSlippageCap)
	}
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	o.cfg.MaxSlippageBps = slippageBps
	o.log.Info("max slippage updated", "actor", actor, "slippage_bps", slippageBps)
	return nil
}

// SetBreakerConfig swaps the circuit breaker limits.
func (o *Orchestrator) SetBreakerConfig(actor string, cfg admission.BreakerConfig) error {
	if err := o.auth.Require(actor, roles.Governance); err != nil {
		return err
	}
	if err := o.admission.SetBreakerConfig(cfg); err != nil {
		return err
	}
	o.log.Info("breaker config updated", "actor", actor,
		"threshold", cfg.VolumeThreshold.String(), "window", cfg.WindowDuration.String(), "cooldown", cfg.CooldownPeriod.String())
	return nil
}

// SetRateLimitConfig swaps the rate limiter bounds.
func (o *Orchestrator) SetRateLimitConfig(actor string, cfg admission.RateLimitConfig) error {
	if err := o.auth.Require(actor, roles.Governance); err != nil {
		return err
	}
	if err := o.admission.SetRateLimitConfig(cfg); err != nil {
		return err
	}
	o.log.Info("rate limit config updated", "actor", actor,
		"min_interval", cfg.MinInterval, "max_per_height", cfg.MaxPerHeight.String(), "max_daily", cfg.MaxPerUserDaily.String())
	return nil
}

// ResetBreaker clears a tripped circuit breaker.
func (o *Orchestrator) ResetBreaker(actor string) error {
	if err := o.auth.Require(actor, roles.Governance); err != nil {
		return err
	}
	o.admission.ResetBreaker(o.clock())
	metrics.SetBreakerActive(false)
	o.log.Warn("circuit breaker reset", "actor", actor)
	return nil
}

// Pause halts deposits. Read surface stays available.
func (o *Orchestrator) Pause(actor string) error {
	if err := o.auth.Require(actor, roles.Governance); err != nil {
		return err
	}
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	o.paused = true
	o.log.Warn("deposits paused", "actor", actor)
	return nil
}

// Unpause resumes deposits.
func (o *Orchestrator) Unpause(actor string) error {
	if err := o.auth.Require(actor, roles.Governance); err != nil {
		return err
	}
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	o.paused = false
	o.log.Warn("deposits unpaused", "actor", actor)
	return nil
}

// SetManualPrice activates the manual price override.
func (o *Orchestrator) SetManualPrice(actor string, price math.LegacyDec) error {
	if err := o.auth.Require(actor, roles.EmergencyOperator); err != nil {
		return err
	}
	if err := o.resolver.SetManualPrice(price); err != nil {
		return err
	}
	o.log.Warn("manual price set", "actor", actor, "price", price.String())
	return nil
}

// ClearManualPrice deactivates the manual price override.
func (o *Orchestrator) ClearManualPrice(actor string) error {
	if err := o.auth.Require(actor, roles.EmergencyOperator); err != nil {
		return err
	}
	o.resolver.ClearManualPrice()
	o.log.Warn("manual price cleared", "actor", actor)
	return nil
}

// SetEmergencyMode toggles fallback-only price resolution.
func (o *Orchestrator) SetEmergencyMode(actor string, on bool) error {
	if err := o.auth.Require(actor, roles.EmergencyOperator); err != nil {
		return err
	}
	o.resolver.SetEmergencyMode(on)
	o.log.Warn("emergency mode toggled", "actor", actor, "on", on)
	return nil
}

// SetFallbackPrice configures the emergency fallback price.
func (o *Orchestrator) SetFallbackPrice(actor string, price math.LegacyDec) error {
	if err := o.auth.Require(actor, roles.EmergencyOperator); err != nil {
		return err
	}
	if err := o.resolver.SetFallbackPrice(price); err != nil {
		return err
	}
	o.log.Warn("fallback price set", "actor", actor, "price", price.String())
	return nil
}

// SetPrimaryOracle swaps the first-tier price source.
func (o *Orchestrator) SetPrimaryOracle(actor string, p oracle.PrimaryOracle) error {
	if err := o.auth.Require(actor, roles.Updater); err != nil {
		return err
	}
	o.resolver.SetPrimary(p)
	o.log.Info("primary oracle replaced", "actor", actor)
	return nil
}

// SetSecondaryOracle swaps the fallback price source.
func (o *Orchestrator) SetSecondaryOracle(actor string, s oracle.SecondaryOracle) error {
	if err := o.auth.Require(actor, roles.Updater); err != nil {
		return err
	}
	o.resolver.SetSecondary(s)
	o.log.Info("secondary oracle replaced", "actor", actor)
	return nil
}

// breakerPoll mirrors the breaker gauge for the metrics scraper.
func (o *Orchestrator) breakerPoll(now time.Time) {
	metrics.SetBreakerActive(o.admission.BreakerStatus(now).Triggered)
}

// StartBreakerGaugeLoop keeps the breaker gauge fresh until ctx is done.
func (o *Orchestrator) StartBreakerGaugeLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.breakerPoll(o.clock())
		}
	}
}
