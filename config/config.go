// Package config loads and validates the gateway's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete gateway configuration.
type Config struct {
	Chain     ChainConfig     `yaml:"chain"`
	Pool      PoolConfig      `yaml:"pool"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Admission AdmissionConfig `yaml:"admission"`
	Deposit   DepositConfig   `yaml:"deposit"`
	Roles     RolesConfig     `yaml:"roles"`
	Stats     StatsConfig     `yaml:"stats"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ChainConfig holds EVM node connection settings. Empty RPCURL selects the
// in-memory reference pool instead of an on-chain pair.
type ChainConfig struct {
	RPCURL        string        `yaml:"rpc_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// PoolConfig identifies the pair the oracle samples and the deposit flows
// through.
type PoolConfig struct {
	// PairAddress is the on-chain pair contract (ignored for the reference
	// pool).
	PairAddress string `yaml:"pair_address"`
	DepositDenom string `yaml:"deposit_denom"`
	CounterDenom string `yaml:"counter_denom"`
	SwapFeeBps   int64  `yaml:"swap_fee_bps"`
}

// OracleConfig holds observation, TWAP, and resolution settings.
type OracleConfig struct {
	Capacity          int           `yaml:"capacity"`
	MinObservations   int           `yaml:"min_observations"`
	MaxAge            time.Duration `yaml:"max_age"`
	MinReserve        int64         `yaml:"min_reserve"`
	SyncInterval      time.Duration `yaml:"sync_interval"`
	BaseToken0        bool          `yaml:"base_token0"`
	MaxDeviationBps   int64         `yaml:"max_deviation_bps"`
	ManualMaxAge      time.Duration `yaml:"manual_max_age"`
	CirculatingSupply string        `yaml:"circulating_supply"`
	MinMarketCap      string        `yaml:"min_market_cap"`
	MaxMarketCap      string        `yaml:"max_market_cap"`
}

// AdmissionConfig holds rate-limit and circuit-breaker settings.
type AdmissionConfig struct {
	MinInterval     int64         `yaml:"min_interval"`
	MaxPerHeight    string        `yaml:"max_per_height"`
	MaxPerUserDaily string        `yaml:"max_per_user_daily"`
	HeightRetention int64         `yaml:"height_retention"`
	VolumeThreshold string        `yaml:"volume_threshold"`
	WindowDuration  time.Duration `yaml:"window_duration"`
	CooldownPeriod  time.Duration `yaml:"cooldown_period"`
}

// DepositConfig holds the orchestrator bounds.
type DepositConfig struct {
	GatewayAccount    string        `yaml:"gateway_account"`
	MinDeposit        string        `yaml:"min_deposit"`
	MaxDeposit        string        `yaml:"max_deposit"`
	LiquidityRatioBps int64         `yaml:"liquidity_ratio_bps"`
	MaxSlippageBps    int64         `yaml:"max_slippage_bps"`
	MinDeadlineBuffer time.Duration `yaml:"min_deadline_buffer"`
	MaxDeadlineBuffer time.Duration `yaml:"max_deadline_buffer"`
}

// RolesConfig maps capabilities to actor lists.
type RolesConfig struct {
	Governance         []string `yaml:"governance"`
	EmergencyOperators []string `yaml:"emergency_operators"`
	Updaters           []string `yaml:"updaters"`
}

// StatsConfig selects and locates the statistics store.
type StatsConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// APIConfig holds the read-surface HTTP server settings.
type APIConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	CORSOrigins []string      `yaml:"cors_origins"`
	RateLimit   int           `yaml:"rate_limit"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MetricsConfig holds the Prometheus server settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoadConfig reads and parses the YAML file, then applies environment
// overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyEnvOverrides()
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if rpcURL := os.Getenv("RPC_URL"); rpcURL != "" {
		c.Chain.RPCURL = rpcURL
	}
	if pair := os.Getenv("PAIR_ADDRESS"); pair != "" {
		c.Pool.PairAddress = pair
	}
	if statsPath := os.Getenv("STATS_PATH"); statsPath != "" {
		c.Stats.Path = statsPath
	}
	if apiPort := os.Getenv("API_PORT"); apiPort != "" {
		fmt.Sscanf(apiPort, "%d", &c.API.Port)
	}
	if metricsPort := os.Getenv("METRICS_PORT"); metricsPort != "" {
		fmt.Sscanf(metricsPort, "%d", &c.Metrics.Port)
	}
}

// Validate checks the required fields and fills safe defaults for the
// optional ones.
func (c *Config) Validate() error {
	if c.Pool.DepositDenom == "" || c.Pool.CounterDenom == "" {
		return fmt.Errorf("pool deposit and counter denoms are required")
	}
	if c.Pool.DepositDenom == c.Pool.CounterDenom {
		return fmt.Errorf("pool denoms must differ")
	}
	if c.Chain.RPCURL != "" && c.Pool.PairAddress == "" {
		return fmt.Errorf("pair address is required when an RPC URL is set")
	}

	if c.Oracle.Capacity <= 0 {
		c.Oracle.Capacity = 24
	}
	if c.Oracle.MinObservations <= 0 {
		c.Oracle.MinObservations = 3
	}
	if c.Oracle.MaxAge <= 0 {
		c.Oracle.MaxAge = 2 * time.Hour
	}
	if c.Oracle.SyncInterval <= 0 {
		c.Oracle.SyncInterval = 5 * time.Minute
	}
	if c.Oracle.MaxDeviationBps <= 0 {
		c.Oracle.MaxDeviationBps = 1000
	}
	if c.Oracle.ManualMaxAge <= 0 {
		c.Oracle.ManualMaxAge = time.Hour
	}

	if c.Deposit.GatewayAccount == "" {
		return fmt.Errorf("deposit gateway account is required")
	}
	if c.Deposit.LiquidityRatioBps == 0 {
		c.Deposit.LiquidityRatioBps = 5000
	}
	if c.Deposit.MaxSlippageBps == 0 {
		c.Deposit.MaxSlippageBps = 300
	}
	if c.Deposit.MinDeadlineBuffer == 0 {
		c.Deposit.MinDeadlineBuffer = 10 * time.Second
	}
	if c.Deposit.MaxDeadlineBuffer == 0 {
		c.Deposit.MaxDeadlineBuffer = time.Hour
	}

	switch c.Stats.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown stats backend %q", c.Stats.Backend)
	}

	if c.API.Port == 0 {
		return fmt.Errorf("API port is required")
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 100
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 30 * time.Second
	}

	if c.Metrics.Enabled && c.Metrics.Port == 0 {
		return fmt.Errorf("metrics port is required when metrics are enabled")
	}
	return nil
}
