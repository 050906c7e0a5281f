package config

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"solana-arb/internal/domain"
)

// Config stores all configuration for the engine. Values are read by
// viper from a yaml file with ARB_-prefixed environment overrides.
type Config struct {
	RPC       RPCConfig
	Jupiter   JupiterConfig
	Jito      JitoConfig
	Wallet    WalletConfig
	Scanner   ScannerConfig
	Evaluator EvaluatorConfig
	Fees      FeeConfig
	Executor  ExecutorConfig
	Tracker   TrackerConfig
	Blockhash BlockhashConfig
	Metrics   MetricsConfig
	Events    EventsConfig
	Cycles    []CycleConfig
}

// RPCConfig lists the Solana JSON-RPC endpoints.
type RPCConfig struct {
	Endpoints  []string `mapstructure:"endpoints"`
	WSEndpoint string   `mapstructure:"ws_endpoint"`
}

// PickEndpoint selects one of the configured endpoints at random so
// repeated runs spread load across providers.
func (c RPCConfig) PickEndpoint() string {
	if len(c.Endpoints) == 0 {
		return ""
	}
	return c.Endpoints[rand.Intn(len(c.Endpoints))]
}

// JupiterConfig points at the quote aggregator.
type JupiterConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// JitoConfig points at the bundle relay block engine.
type JitoConfig struct {
	BlockEngineURL string `mapstructure:"block_engine_url"`
}

// WalletConfig names the environment variable holding the base58
// keypair secret. The secret itself never lives in the config file.
type WalletConfig struct {
	SecretEnv string `mapstructure:"secret_env"`
}

// Secret reads the keypair secret from the configured environment
// variable.
func (c WalletConfig) Secret() (string, error) {
	secret := strings.TrimSpace(os.Getenv(c.SecretEnv))
	if secret == "" {
		return "", fmt.Errorf("wallet secret env %s is empty", c.SecretEnv)
	}
	return secret, nil
}

// ScannerConfig tunes the quote polling loop.
type ScannerConfig struct {
	PollIntervalMS   int   `mapstructure:"poll_interval_ms"`
	RequestTimeoutMS int   `mapstructure:"request_timeout_ms"`
	MaxConcurrent    int   `mapstructure:"max_concurrent"`
	SlippageBps      int64 `mapstructure:"slippage_bps"`
}

// PollInterval returns the round interval as a duration.
func (c ScannerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-quote deadline as a duration.
func (c ScannerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// EvaluatorConfig holds profitability thresholds.
type EvaluatorConfig struct {
	MinProfitLamports int64 `mapstructure:"min_profit_lamports"`
	MaxPriceImpactBps int64 `mapstructure:"max_price_impact_bps"`
	MaxQuoteAgeMS     int   `mapstructure:"max_quote_age_ms"`
}

// MaxQuoteAge returns the staleness cutoff as a duration.
func (c EvaluatorConfig) MaxQuoteAge() time.Duration {
	return time.Duration(c.MaxQuoteAgeMS) * time.Millisecond
}

// FeeConfig sizes the compute budget and relay tip.
type FeeConfig struct {
	TipBps              int64  `mapstructure:"tip_bps"`
	MaxTipLamports      uint64 `mapstructure:"max_tip_lamports"`
	ComputeUnitLimit    uint32 `mapstructure:"compute_unit_limit"`
	MinComputeUnitPrice uint64 `mapstructure:"min_compute_unit_price"`
}

// ExecutorConfig tunes the submission coordinator.
type ExecutorConfig struct {
	MaxInFlight   int  `mapstructure:"max_in_flight"`
	QueueCapacity int  `mapstructure:"queue_capacity"`
	SimulateOnly  bool `mapstructure:"simulate_only"`
}

// TrackerConfig tunes confirmation polling and the rebuild budget.
type TrackerConfig struct {
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
	MaxRebuilds    int `mapstructure:"max_rebuilds"`
}

// PollInterval returns the status poll interval as a duration.
func (c TrackerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// BlockhashConfig tunes the blockhash cache refresher.
type BlockhashConfig struct {
	RefreshIntervalMS int `mapstructure:"refresh_interval_ms"`
}

// RefreshInterval returns the refresh cadence as a duration.
func (c BlockhashConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// EventsConfig configures the JSONL attempt-event sink.
type EventsConfig struct {
	Path string `mapstructure:"path"`
}

// CycleConfig is one configured token cycle. BaseMint defaults to WSOL
// and Dexes to the default routing set when omitted.
type CycleConfig struct {
	BaseMint       string `mapstructure:"base_mint"`
	CycleMint      string `mapstructure:"cycle_mint"`
	AmountLamports uint64 `mapstructure:"amount_lamports"`
	Dexes          string `mapstructure:"dexes"`
}

// ToCycle converts the entry to a domain cycle.
func (c CycleConfig) ToCycle() (domain.TokenCycle, error) {
	cycle := domain.TokenCycle{
		BaseMint:  c.BaseMint,
		CycleMint: c.CycleMint,
		AmountIn:  c.AmountLamports,
		Dexes:     domain.DexAll,
	}
	if cycle.BaseMint == "" {
		cycle.BaseMint = domain.WSOLMint
	}
	if c.Dexes != "" {
		set, err := domain.ParseDexSet(c.Dexes)
		if err != nil {
			return domain.TokenCycle{}, fmt.Errorf("cycle %s: %w", c.CycleMint, err)
		}
		cycle.Dexes = set
	}
	if cycle.CycleMint == "" {
		return domain.TokenCycle{}, fmt.Errorf("cycle with empty cycle_mint")
	}
	if cycle.CycleMint == cycle.BaseMint {
		return domain.TokenCycle{}, fmt.Errorf("cycle %s: cycle mint equals base mint", c.CycleMint)
	}
	if cycle.AmountIn == 0 {
		return domain.TokenCycle{}, fmt.Errorf("cycle %s: amount_lamports must be positive", c.CycleMint)
	}
	return cycle, nil
}

// DomainCycles converts and validates every configured cycle.
func (c *Config) DomainCycles() ([]domain.TokenCycle, error) {
	cycles := make([]domain.TokenCycle, 0, len(c.Cycles))
	for _, entry := range c.Cycles {
		cycle, err := entry.ToCycle()
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	}
	return cycles, nil
}

// Load reads configuration from the yaml file at path, applying
// defaults and ARB_-prefixed environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every overridable key so environment variables
// resolve even when the file omits the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.endpoints", []string{})
	v.SetDefault("rpc.ws_endpoint", "")
	v.SetDefault("jupiter.base_url", "https://quote-api.jup.ag/v6")
	v.SetDefault("jupiter.api_key", "")
	v.SetDefault("jito.block_engine_url", "https://mainnet.block-engine.jito.wtf")
	v.SetDefault("wallet.secret_env", "ARB_WALLET_SECRET")
	v.SetDefault("scanner.poll_interval_ms", 1000)
	v.SetDefault("scanner.request_timeout_ms", 2000)
	v.SetDefault("scanner.max_concurrent", 4)
	v.SetDefault("scanner.slippage_bps", 50)
	v.SetDefault("evaluator.min_profit_lamports", 25000)
	v.SetDefault("evaluator.max_price_impact_bps", 100)
	v.SetDefault("evaluator.max_quote_age_ms", 400)
	v.SetDefault("fees.tip_bps", 5000)
	v.SetDefault("fees.max_tip_lamports", 100_000_000)
	v.SetDefault("fees.compute_unit_limit", 600_000)
	v.SetDefault("fees.min_compute_unit_price", 10_000)
	v.SetDefault("executor.max_in_flight", 2)
	v.SetDefault("executor.queue_capacity", 16)
	v.SetDefault("executor.simulate_only", false)
	v.SetDefault("tracker.poll_interval_ms", 1000)
	v.SetDefault("tracker.max_rebuilds", 3)
	v.SetDefault("blockhash.refresh_interval_ms", 2000)
	v.SetDefault("metrics.addr", ":9091")
	v.SetDefault("events.path", "events.jsonl")
}

func (c *Config) validate() error {
	if len(c.RPC.Endpoints) == 0 {
		return fmt.Errorf("config: at least one rpc endpoint required")
	}
	if len(c.Cycles) == 0 {
		return fmt.Errorf("config: at least one cycle required")
	}
	if _, err := c.DomainCycles(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Evaluator.MinProfitLamports < 0 {
		return fmt.Errorf("config: min_profit_lamports must not be negative")
	}
	if c.Fees.TipBps < 0 || c.Fees.TipBps > 10_000 {
		return fmt.Errorf("config: tip_bps must be within [0, 10000]")
	}
	return nil
}
