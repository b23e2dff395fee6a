package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/math"

	"github.com/palisade-fi/zapgate/config"
	"github.com/palisade-fi/zapgate/internal/admission"
	"github.com/palisade-fi/zapgate/internal/amm"
	"github.com/palisade-fi/zapgate/internal/amm/evm"
	"github.com/palisade-fi/zapgate/internal/api"
	"github.com/palisade-fi/zapgate/internal/deposit"
	"github.com/palisade-fi/zapgate/internal/metrics"
	"github.com/palisade-fi/zapgate/internal/oracle"
	"github.com/palisade-fi/zapgate/internal/roles"
	"github.com/palisade-fi/zapgate/internal/stats"
	"github.com/palisade-fi/zapgate/pkg/logger"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "1.0.0"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	log := logger.NewLogger("zapgated")
	log.Info("Starting Zapgate deposit gateway", "version", version, "build_time", buildTime)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics server.
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Execution venue. The reference pool always backs the router/bank
	// legs; when an RPC URL is configured, the oracle samples the on-chain
	// pair and heights come from the node instead of the manual counter.
	refPool, err := amm.NewReferencePool(amm.ReferencePoolConfig{
		Token0:     cfg.Pool.DepositDenom,
		Token1:     cfg.Pool.CounterDenom,
		Reserve0:   math.NewInt(10_000_000),
		Reserve1:   math.NewInt(10_000_000),
		SwapFeeBps: cfg.Pool.SwapFeeBps,
	})
	if err != nil {
		log.Error("Failed to build reference pool", "error", err)
		os.Exit(1)
	}

	var (
		oraclePool amm.Pool       = refPool
		head       amm.HeadSource = amm.NewManualHead(1)
	)
	if cfg.Chain.RPCURL != "" {
		log.Info("Connecting to EVM node", "rpc_url", cfg.Chain.RPCURL, "pair", cfg.Pool.PairAddress)
		dialCtx, dialCancel := context.WithTimeout(ctx, cfg.Chain.Timeout)
		pair, err := evm.Dial(dialCtx, cfg.Chain.RPCURL, cfg.Pool.PairAddress)
		dialCancel()
		if err != nil {
			log.Error("Failed to connect to EVM node", "error", err)
			os.Exit(1)
		}
		defer pair.Close()
		oraclePool = pair
		head = pair
	}

	// Oracle stack: buffer, TWAP, resolver.
	twapCfg := oracle.TWAPOracleConfig{
		CirculatingSupply: parseIntOrZero(cfg.Oracle.CirculatingSupply),
		MinMarketCap:      parseIntOrZero(cfg.Oracle.MinMarketCap),
		MaxMarketCap:      parseIntOrZero(cfg.Oracle.MaxMarketCap),
	}
	base := oracle.BaseToken1
	if cfg.Oracle.BaseToken0 {
		base = oracle.BaseToken0
	}
	primary, err := oracle.NewTWAPOracle(ctx, oraclePool, oracle.BufferConfig{
		Capacity:        cfg.Oracle.Capacity,
		MinObservations: cfg.Oracle.MinObservations,
		MaxAge:          cfg.Oracle.MaxAge,
		MinReserve:      math.NewInt(cfg.Oracle.MinReserve),
	}, base, twapCfg, nil)
	if err != nil {
		log.Error("Failed to build TWAP oracle", "error", err)
		os.Exit(1)
	}
	resolver := oracle.NewResolver(oracle.ResolverConfig{
		MaxDeviationBps: cfg.Oracle.MaxDeviationBps,
		ManualMaxAge:    cfg.Oracle.ManualMaxAge,
	}, primary, nil, logger.NewLogger("oracle"), nil)

	// Admission gates.
	controller, err := admission.NewController(admission.RateLimitConfig{
		MinInterval:     cfg.Admission.MinInterval,
		MaxPerHeight:    parseIntOrZero(cfg.Admission.MaxPerHeight),
		MaxPerUserDaily: parseIntOrZero(cfg.Admission.MaxPerUserDaily),
		HeightRetention: cfg.Admission.HeightRetention,
	}, admission.BreakerConfig{
		VolumeThreshold: parseIntOrZero(cfg.Admission.VolumeThreshold),
		WindowDuration:  cfg.Admission.WindowDuration,
		CooldownPeriod:  cfg.Admission.CooldownPeriod,
	}, logger.NewLogger("admission"))
	if err != nil {
		log.Error("Failed to build admission controller", "error", err)
		os.Exit(1)
	}

	// Statistics store.
	var store stats.Store
	if cfg.Stats.Backend == "sqlite" {
		store, err = stats.NewSQLiteStore(cfg.Stats.Path)
		if err != nil {
			log.Error("Failed to open statistics store", "error", err)
			os.Exit(1)
		}
	} else {
		store = stats.NewMemoryStore()
	}
	defer store.Close()

	auth := roles.NewStaticAuthorizer(map[roles.Capability][]string{
		roles.Governance:        cfg.Roles.Governance,
		roles.EmergencyOperator: cfg.Roles.EmergencyOperators,
		roles.Updater:           cfg.Roles.Updaters,
	})

	// Deposit pipeline.
	orch, err := deposit.NewOrchestrator(deposit.Config{
		GatewayAccount:    cfg.Deposit.GatewayAccount,
		DepositDenom:      cfg.Pool.DepositDenom,
		CounterDenom:      cfg.Pool.CounterDenom,
		MinDeposit:        parseIntOrZero(cfg.Deposit.MinDeposit),
		MaxDeposit:        parseIntOrZero(cfg.Deposit.MaxDeposit),
		LiquidityRatioBps: cfg.Deposit.LiquidityRatioBps,
		MaxSlippageBps:    cfg.Deposit.MaxSlippageBps,
		MinDeadlineBuffer: cfg.Deposit.MinDeadlineBuffer,
		MaxDeadlineBuffer: cfg.Deposit.MaxDeadlineBuffer,
	}, deposit.Deps{
		Router:    refPool,
		Pool:      refPool,
		Bank:      refPool,
		Head:      head,
		Admission: controller,
		Resolver:  resolver,
		Store:     store,
		Auth:      auth,
		LPDenom:   refPool.LPDenom(),
		Log:       logger.NewLogger("deposit"),
	})
	if err != nil {
		log.Error("Failed to build deposit orchestrator", "error", err)
		os.Exit(1)
	}

	// Observation sync loop keeps the TWAP window fresh.
	go func() {
		ticker := time.NewTicker(cfg.Oracle.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := primary.Sync(ctx); err != nil {
					log.Warn("Observation sync failed", "error", err)
				}
				metrics.ObservationCount.Set(float64(primary.Buffer().Len()))
				if price, err := primary.CurrentPrice(ctx); err == nil {
					if f, err := price.Float64(); err == nil {
						metrics.TwapPrice.Set(f)
					}
				}
			}
		}
	}()
	go orch.StartBreakerGaugeLoop(ctx, 15*time.Second)

	// API server.
	log.Info("Starting API server", "port", cfg.API.Port)
	apiServer := api.NewServer(cfg.API, orch, logger.NewLogger("api"))
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error("API server failed", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received interrupt signal, shutting down gracefully")
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("Stopping API server")
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server gracefully", "error", err)
	}
	if metricsServer != nil {
		log.Info("Stopping metrics server")
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop metrics server gracefully", "error", err)
		}
	}
	log.Info("Zapgate deposit gateway stopped")
}

// parseIntOrZero reads a decimal string; empty or malformed yields zero,
// letting component-level validation report the real error.
func parseIntOrZero(s string) math.Int {
	if s == "" {
		return math.ZeroInt()
	}
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.ZeroInt()
	}
	return v
}
