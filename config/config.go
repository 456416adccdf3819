package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Symbols     []string `mapstructure:"symbols"`
	SymbolsFile string   `mapstructure:"symbols_file"` // scanner output merged into Symbols (optional)

	Feed     FeedConfig     `mapstructure:"feed"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Order    OrderConfig    `mapstructure:"order"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// FeedConfig selects how market data reaches the pipeline.
type FeedConfig struct {
	Mode            string        `mapstructure:"mode"`             // "push" (websocket trades) or "pull" (REST bars)
	BarWidth        time.Duration `mapstructure:"bar_width"`        // bucket width for bars
	HistoryCapacity int           `mapstructure:"history_capacity"` // closes kept per symbol
	PollLookback    int           `mapstructure:"poll_lookback"`    // bars fetched per symbol per pull cycle
	SettleDelay     time.Duration `mapstructure:"settle_delay"`     // wait after a bar boundary before polling
	QueueSize       int           `mapstructure:"queue_size"`       // per-symbol event buffer
	StatusInterval  time.Duration `mapstructure:"status_interval"`  // period of the history status log
	WarmupBars      int           `mapstructure:"warmup_bars"`      // bars fetched on the first pull cycle
}

type StrategyConfig struct {
	RSIPeriod     int     `mapstructure:"rsi_period"`
	SMAShort      int     `mapstructure:"sma_short"` // 0 disables
	SMALong       int     `mapstructure:"sma_long"`  // 0 disables
	TrendFilter   string  `mapstructure:"trend_filter"`
	BuyThreshold  float64 `mapstructure:"buy_threshold"`
	SellThreshold float64 `mapstructure:"sell_threshold"`
}

type OrderConfig struct {
	StopLossPct     float64            `mapstructure:"stop_loss_pct"`
	TakeProfitPct   float64            `mapstructure:"take_profit_pct"`
	Quantity        map[string]float64 `mapstructure:"quantity"`
	DefaultQuantity float64            `mapstructure:"default_quantity"`
	Cooldown        time.Duration      `mapstructure:"cooldown"`
	TimeInForce     string             `mapstructure:"time_in_force"`
	SubmitTimeout   time.Duration      `mapstructure:"submit_timeout"`
	Bracket         bool               `mapstructure:"bracket"` // false sends plain market entries
}

// QuantityFor returns the configured order size for symbol, falling back to
// the default quantity.
func (o OrderConfig) QuantityFor(symbol string) float64 {
	// viper lower-cases map keys
	if q, ok := o.Quantity[strings.ToLower(symbol)]; ok && q > 0 {
		return q
	}
	if q, ok := o.Quantity[symbol]; ok && q > 0 {
		return q
	}
	return o.DefaultQuantity
}

type BrokerConfig struct {
	Mode      string     `mapstructure:"mode"` // "paper" or "alpaca"
	APIKey    string     `mapstructure:"api_key"`
	APISecret string     `mapstructure:"api_secret"`
	Trading   RESTConfig `mapstructure:"trading"`
	Data      RESTConfig `mapstructure:"data"`
	Stream    WSConfig   `mapstructure:"stream"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WSConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ScannerConfig struct {
	Candidates []string `mapstructure:"candidates"`
	Lookback   int      `mapstructure:"lookback"`
	Output     string   `mapstructure:"output"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics endpoint
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbols", []string{"BTC/USD", "ETH/USD"})

	v.SetDefault("feed.mode", "push")
	v.SetDefault("feed.bar_width", time.Minute)
	v.SetDefault("feed.history_capacity", 5000)
	v.SetDefault("feed.poll_lookback", 5)
	v.SetDefault("feed.settle_delay", 2*time.Second)
	v.SetDefault("feed.queue_size", 256)
	v.SetDefault("feed.status_interval", time.Minute)
	v.SetDefault("feed.warmup_bars", 250)

	v.SetDefault("strategy.rsi_period", 14)
	v.SetDefault("strategy.sma_short", 0)
	v.SetDefault("strategy.sma_long", 0)
	v.SetDefault("strategy.trend_filter", "none")
	v.SetDefault("strategy.buy_threshold", 30.0)
	v.SetDefault("strategy.sell_threshold", 70.0)

	v.SetDefault("order.stop_loss_pct", 0.01)
	v.SetDefault("order.take_profit_pct", 0.02)
	v.SetDefault("order.default_quantity", 0.001)
	v.SetDefault("order.cooldown", 30*time.Second)
	v.SetDefault("order.time_in_force", "gtc")
	v.SetDefault("order.submit_timeout", 10*time.Second)
	v.SetDefault("order.bracket", true)

	v.SetDefault("broker.mode", "paper")
	v.SetDefault("broker.trading.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("broker.trading.timeout", 10*time.Second)
	v.SetDefault("broker.data.base_url", "https://data.alpaca.markets")
	v.SetDefault("broker.data.timeout", 10*time.Second)
	v.SetDefault("broker.stream.url", "wss://stream.data.alpaca.markets/v1beta3/crypto/us")
	v.SetDefault("broker.stream.timeout", 10*time.Second)

	v.SetDefault("scanner.lookback", 30)
	v.SetDefault("scanner.output", "tickers.json")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
// An explicit path (file or directory) takes precedence over the default
// lookup next to the binary.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	switch {
	case path != "" && filepath.Ext(path) != "":
		v.SetConfigFile(path)
	case path != "":
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(path)
	default:
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
		v.AddConfigPath("config")
	}

	// Support environment variables with dot notation (e.g., ORDER_COOLDOWN)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("broker.api_key", "BROKER_API_KEY", "APCA_API_KEY_ID")
	_ = v.BindEnv("broker.api_secret", "BROKER_API_SECRET", "APCA_API_SECRET_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field constraints viper cannot express.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 && c.SymbolsFile == "" {
		return fmt.Errorf("config: at least one symbol or a symbols_file is required")
	}
	switch c.Feed.Mode {
	case "push", "pull":
	default:
		return fmt.Errorf("config: feed.mode must be push or pull, got %q", c.Feed.Mode)
	}
	if c.Feed.BarWidth <= 0 {
		return fmt.Errorf("config: feed.bar_width must be positive")
	}
	if c.Feed.HistoryCapacity <= 0 {
		return fmt.Errorf("config: feed.history_capacity must be positive")
	}
	if c.Strategy.RSIPeriod <= 0 {
		return fmt.Errorf("config: strategy.rsi_period must be positive")
	}
	if c.Order.StopLossPct <= 0 || c.Order.StopLossPct >= 1 {
		return fmt.Errorf("config: order.stop_loss_pct must be in (0,1)")
	}
	if c.Order.TakeProfitPct <= 0 || c.Order.TakeProfitPct >= 1 {
		return fmt.Errorf("config: order.take_profit_pct must be in (0,1)")
	}
	if c.Order.Cooldown < 0 {
		return fmt.Errorf("config: order.cooldown must not be negative")
	}
	switch c.Broker.Mode {
	case "paper", "alpaca":
	default:
		return fmt.Errorf("config: broker.mode must be paper or alpaca, got %q", c.Broker.Mode)
	}
	return nil
}
