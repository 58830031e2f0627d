// Package config defines all configuration for the maker-farming bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via MAKER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	API       APIConfig       `mapstructure:"api"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds venue endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the bot derives them via the L1
// session handshake on startup.
type APIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	WSURL      string `mapstructure:"ws_url"`
	ApiKey     string `mapstructure:"api_key"`
	Secret     string `mapstructure:"secret"`
	Passphrase string `mapstructure:"passphrase"`
}

// StrategyConfig tunes the maker-farming ladder.
//
//   - Symbols: the fixed set of tickers the bot quotes; no discovery.
//   - OrderSizeUSD: target notional size per ladder cell.
//   - OrderDistancesBps: the offset list the ladder is built from; falls
//     back to []int{TargetDistanceBps} when empty (§12 open question 1).
//   - MinDistanceBps / MaxDistanceBps: band-exit bounds for rebalance.
//   - DriftThresholdBps: reference displacement that forces a rebalance.
//   - OrderLockSeconds / RebalanceCooldownSeconds / CheckIntervalSeconds /
//     SyncIntervalSeconds / OrderGracePeriodSeconds / OrderTimeout404Seconds:
//     the timing invariants of the control loop.
type StrategyConfig struct {
	Symbols                 []string `mapstructure:"symbols"`
	OrderSizeUSD            float64  `mapstructure:"order_size_usd"`
	TargetDistanceBps       int      `mapstructure:"target_distance_bps"`
	OrderDistancesBps       []int    `mapstructure:"order_distances_bps"`
	MinDistanceBps          float64  `mapstructure:"min_distance_bps"`
	MaxDistanceBps          float64  `mapstructure:"max_distance_bps"`
	DriftThresholdBps       float64  `mapstructure:"drift_threshold_bps"`
	OrderLockSeconds        float64  `mapstructure:"order_lock_seconds"`
	RebalanceCooldownSecs   float64  `mapstructure:"rebalance_cooldown_seconds"`
	CheckIntervalSeconds    float64  `mapstructure:"check_interval_seconds"`
	SyncIntervalSeconds     float64  `mapstructure:"sync_interval_seconds"`
	OrderGracePeriodSeconds float64  `mapstructure:"order_grace_period_seconds"`
	Order404TimeoutSeconds  float64  `mapstructure:"order_404_timeout_seconds"`
	RestFallbackSeconds     float64  `mapstructure:"rest_fallback_seconds"`

	// SymbolSpecs carries the per-symbol exchange constants (tick size,
	// minimum quantity, notional precision) that types.Symbol needs.
	// Symbols absent from this map fall back to SymbolSpec's defaults.
	SymbolSpecs map[string]SymbolSpec `mapstructure:"symbol_specs"`
}

// SymbolSpec carries the exchange-imposed constants for one ticker.
type SymbolSpec struct {
	MinQty     float64 `mapstructure:"min_qty"`
	PriceTick  float64 `mapstructure:"price_tick"`
	NotionalDP int32   `mapstructure:"notional_dp"`
}

// SymbolSpec returns the configured constants for ticker, or a conservative
// default (0.0001 min qty, 0.01 tick, 2dp notional) if unconfigured.
func (s StrategyConfig) SymbolSpec(ticker string) SymbolSpec {
	if spec, ok := s.SymbolSpecs[ticker]; ok {
		return spec
	}
	return SymbolSpec{MinQty: 0.0001, PriceTick: 0.01, NotionalDP: 2}
}

// CheckInterval returns the tick period as a time.Duration.
func (s StrategyConfig) CheckInterval() time.Duration {
	return time.Duration(s.CheckIntervalSeconds * float64(time.Second))
}

// SyncInterval returns the reconciliation cadence as a time.Duration.
func (s StrategyConfig) SyncInterval() time.Duration {
	return time.Duration(s.SyncIntervalSeconds * float64(time.Second))
}

// OrderLock returns the per-order lock dwell as a time.Duration.
func (s StrategyConfig) OrderLock() time.Duration {
	return time.Duration(s.OrderLockSeconds * float64(time.Second))
}

// RebalanceCooldown returns the minimum gap between rebalances.
func (s StrategyConfig) RebalanceCooldown() time.Duration {
	return time.Duration(s.RebalanceCooldownSecs * float64(time.Second))
}

// OrderGracePeriod returns the post-placement grace window.
func (s StrategyConfig) OrderGracePeriod() time.Duration {
	return time.Duration(s.OrderGracePeriodSeconds * float64(time.Second))
}

// Order404Timeout returns the window after which a persistently-404 order
// is concluded cancelled.
func (s StrategyConfig) Order404Timeout() time.Duration {
	return time.Duration(s.Order404TimeoutSeconds * float64(time.Second))
}

// RestFallbackInterval returns the push-silence window after which
// PriceTracker falls back to REST.
func (s StrategyConfig) RestFallbackInterval() time.Duration {
	return time.Duration(s.RestFallbackSeconds * float64(time.Second))
}

// ResolvedDistancesBps applies the open-question-1 fallback: honor the
// explicit list when present, otherwise fall back to [target_distance_bps].
func (s StrategyConfig) ResolvedDistancesBps() []int {
	if len(s.OrderDistancesBps) > 0 {
		return s.OrderDistancesBps
	}
	return []int{s.TargetDistanceBps}
}

// SafetyConfig configures the three-tier SafetyGuard gate.
type SafetyConfig struct {
	MaxPositionUSD float64 `mapstructure:"max_position_usd"`
	PreKill        struct {
		VolatilityThresholdBps float64 `mapstructure:"volatility_threshold_bps"`
		MarkMidDivergenceBps   float64 `mapstructure:"mark_mid_divergence_bps"`
		PauseDurationSeconds   float64 `mapstructure:"pause_duration_seconds"`
	} `mapstructure:"pre_kill"`
	HardKill struct {
		MaxVolatilityBps      float64 `mapstructure:"max_volatility_bps"`
		StaleThresholdSeconds float64 `mapstructure:"stale_threshold_seconds"`
	} `mapstructure:"hard_kill"`
	// StaleMode is the escape hatch recorded in SPEC_FULL §12 open question
	// 2: "kill" (default) triggers KILL_ALL on staleness; "warn" logs only.
	StaleMode string `mapstructure:"stale_mode"`
}

// StoreConfig sets where per-symbol stats are persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the web dashboard + metrics server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: MAKER_PRIVATE_KEY, MAKER_API_KEY,
// MAKER_API_SECRET, MAKER_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("MAKER_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("MAKER_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("MAKER_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("MAKER_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("MAKER_DRY_RUN") == "true" || os.Getenv("MAKER_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// setDefaults mirrors the configuration surface's documented defaults
// (SPEC_FULL §6) so a minimal YAML file still produces a working config.
func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy.symbols", []string{"BTC-USD"})
	v.SetDefault("strategy.order_size_usd", 5)
	v.SetDefault("strategy.target_distance_bps", 8)
	v.SetDefault("strategy.order_distances_bps", []int{6, 8})
	v.SetDefault("strategy.min_distance_bps", 5)
	v.SetDefault("strategy.max_distance_bps", 10)
	v.SetDefault("strategy.drift_threshold_bps", 15)
	v.SetDefault("strategy.order_lock_seconds", 0.7)
	v.SetDefault("strategy.rebalance_cooldown_seconds", 3)
	v.SetDefault("strategy.check_interval_seconds", 1)
	v.SetDefault("strategy.sync_interval_seconds", 2)
	v.SetDefault("strategy.order_grace_period_seconds", 3)
	v.SetDefault("strategy.order_404_timeout_seconds", 10)
	v.SetDefault("strategy.rest_fallback_seconds", 5)
	v.SetDefault("safety.max_position_usd", 50)
	v.SetDefault("safety.pre_kill.volatility_threshold_bps", 15)
	v.SetDefault("safety.pre_kill.mark_mid_divergence_bps", 3)
	v.SetDefault("safety.pre_kill.pause_duration_seconds", 5)
	v.SetDefault("safety.hard_kill.max_volatility_bps", 30)
	v.SetDefault("safety.hard_kill.stale_threshold_seconds", 30)
	v.SetDefault("safety.stale_mode", "kill")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set MAKER_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if len(c.Strategy.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols must contain at least one symbol")
	}
	if c.Strategy.OrderSizeUSD <= 0 {
		return fmt.Errorf("strategy.order_size_usd must be > 0")
	}
	if len(c.Strategy.OrderDistancesBps) == 0 && c.Strategy.TargetDistanceBps <= 0 {
		return fmt.Errorf("strategy.order_distances_bps or strategy.target_distance_bps is required")
	}
	if c.Strategy.MaxDistanceBps <= c.Strategy.MinDistanceBps {
		return fmt.Errorf("strategy.max_distance_bps must be > strategy.min_distance_bps")
	}
	for _, d := range c.Strategy.ResolvedDistancesBps() {
		if float64(d) < c.Strategy.MinDistanceBps {
			return fmt.Errorf("strategy distance %dbps is below strategy.min_distance_bps", d)
		}
	}
	if c.Safety.MaxPositionUSD <= 0 {
		return fmt.Errorf("safety.max_position_usd must be > 0")
	}
	switch c.Safety.StaleMode {
	case "", "kill", "warn":
	default:
		return fmt.Errorf("safety.stale_mode must be one of: kill, warn")
	}
	return nil
}
