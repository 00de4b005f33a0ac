// Package config defines all configuration for the sentinel.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via SENTINEL_* environment variables.
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
	DryRun     bool             `mapstructure:"dry_run"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Store      StoreConfig      `mapstructure:"store"`
	SolPrice   SolPriceConfig   `mapstructure:"sol_price"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Session    SessionConfig    `mapstructure:"session"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// ExecutorConfig points at the external relay/signer service that implements
// the Swap Executor contract. Constructing and signing transactions happens
// entirely on the other side of this HTTP boundary.
type ExecutorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChainConfig holds the RPC/WS endpoints and target program, and the keypair
// path used by the external Swap Executor collaborator (signing itself is
// out of this repo's scope; only the path is plumbed through).
type ChainConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	WSURL         string `mapstructure:"ws_url"`
	ProgramID     string `mapstructure:"program_id"`
	KeypairPath   string `mapstructure:"keypair_path"`
	CommitmentLvl string `mapstructure:"commitment"`
	WalletPubkey  string `mapstructure:"wallet_pubkey"`
}

// StoreConfig holds the relational Store's connection settings.
type StoreConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	ResultsPath     string        `mapstructure:"results_path"`
	LeaderboardPath string        `mapstructure:"leaderboard_path"`
	BlacklistPath   string        `mapstructure:"blacklist_path"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// SolPriceConfig controls the SOL/USD quote provider.
type SolPriceConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	RefreshEvery time.Duration `mapstructure:"refresh_every"`
	FallbackUSD  float64       `mapstructure:"fallback_usd"`
}

// ReputationConfig carries the creator reputation gate thresholds.
type ReputationConfig struct {
	TotalSwapsAbove2Mints  int           `mapstructure:"total_swaps_above_2_mints"`
	TotalSwapsAbove1Mint   int           `mapstructure:"total_swaps_above_1_mint"`
	MedianPeakMCAbove2     float64       `mapstructure:"median_peak_mc_above_2_mints"`
	MedianPeakMCAbove1     float64       `mapstructure:"median_peak_mc_above_1_mint"`
	HighestPriceMinSwaps   int           `mapstructure:"highest_price_min_swaps"`
	SnipeToPeakRatio       float64       `mapstructure:"snipe_price_to_peak_price_ratio"`
	TrustFactorRatio       float64       `mapstructure:"trust_factor_ratio"`
	SnipingPriceTime       float64       `mapstructure:"sniping_price_time"`
	SybilDelayThreshold    float64       `mapstructure:"sybil_delay_threshold_seconds"`
	LeaderboardUpdateEvery time.Duration `mapstructure:"leaderboard_update_interval"`
}

// SessionConfig carries the trading state machine's tunable parameters.
type SessionConfig struct {
	SingleLock           bool          `mapstructure:"single_lock"`
	AmountBuyTL1         float64       `mapstructure:"amount_buy_tl_1"`
	AmountBuyTL2         float64       `mapstructure:"amount_buy_tl_2"`
	BuyFeeUSD            float64       `mapstructure:"buy_fee_usd"`
	SellFeeUSD           float64       `mapstructure:"sell_fee_usd"`
	SlippageAmount       float64       `mapstructure:"slippage_amount"`
	PriceStepUnits       float64       `mapstructure:"price_step_units"`
	ProfitMargin         float64       `mapstructure:"profit_margin"`
	PriceTrendWeight     float64       `mapstructure:"price_trend_weight"`
	TxMomentumWeight     float64       `mapstructure:"tx_momentum_weight"`
	IncrementThreshold   float64       `mapstructure:"increment_threshold"`
	IncrementCooldown    time.Duration `mapstructure:"increment_cooldown"`
	DecrementThreshold   float64       `mapstructure:"decrement_threshold"`
	DropTime             time.Duration `mapstructure:"drop_time"`
	StagnantUnderPrice   time.Duration `mapstructure:"stagnant_under_price"`
	TrustLevel2MarketCap float64       `mapstructure:"trust_level_2_market_cap"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the optional web dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MetricsEnabled bool     `mapstructure:"metrics_enabled"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: SENTINEL_RPC_URL, SENTINEL_WS_URL,
// SENTINEL_STORE_DSN, SENTINEL_KEYPAIR_PATH, SENTINEL_DRY_RUN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if url := os.Getenv("SENTINEL_RPC_URL"); url != "" {
		cfg.Chain.RPCURL = url
	}
	if url := os.Getenv("SENTINEL_WS_URL"); url != "" {
		cfg.Chain.WSURL = url
	}
	if path := os.Getenv("SENTINEL_KEYPAIR_PATH"); path != "" {
		cfg.Chain.KeypairPath = path
	}
	if dsn := os.Getenv("SENTINEL_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if os.Getenv("SENTINEL_DRY_RUN") == "true" || os.Getenv("SENTINEL_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required (set SENTINEL_RPC_URL)")
	}
	if c.Chain.WSURL == "" {
		return fmt.Errorf("chain.ws_url is required (set SENTINEL_WS_URL)")
	}
	if c.Chain.ProgramID == "" {
		return fmt.Errorf("chain.program_id is required")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required (set SENTINEL_STORE_DSN)")
	}
	if c.Store.ChunkSize <= 0 {
		return fmt.Errorf("store.chunk_size must be > 0")
	}
	if c.SolPrice.RefreshEvery <= 0 || c.SolPrice.RefreshEvery > 60*time.Second {
		return fmt.Errorf("sol_price.refresh_every must be > 0 and <= 60s")
	}
	if c.SolPrice.FallbackUSD <= 0 {
		return fmt.Errorf("sol_price.fallback_usd must be > 0")
	}
	if c.Session.AmountBuyTL1 <= 0 || c.Session.AmountBuyTL2 <= 0 {
		return fmt.Errorf("session.amount_buy_tl_1 / amount_buy_tl_2 must be > 0")
	}
	if c.Session.PriceStepUnits <= 0 {
		return fmt.Errorf("session.price_step_units must be > 0")
	}
	if c.Reputation.LeaderboardUpdateEvery <= 0 {
		return fmt.Errorf("reputation.leaderboard_update_interval must be > 0")
	}
	return nil
}
