// Package config exposes strongly typed application configuration loaded from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name" default:"tradebot"`
	Env         string `yaml:"env" default:"dev" validate:"oneof=dev staging prod"`
	LogLevel    string `yaml:"log_level" default:"info"`
	MetricsAddr string `yaml:"metrics_addr" default:":9100"`
	ControlAddr string `yaml:"control_addr" default:":8080"`
}

// Stream configures the optional websocket ticker stream.
type Stream struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" default:"wss://stream.binance.com:9443" validate:"url"`
	MaxAgeMs int    `yaml:"max_age_ms" default:"5000" validate:"min=100"`
}

// Market configures the Binance market data provider.
type Market struct {
	BaseURL       string `yaml:"base_url" validate:"omitempty,url"`
	KlineInterval string `yaml:"kline_interval" default:"1h" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d"`
	HistoryLimit  int    `yaml:"history_limit" default:"100" validate:"min=30,max=1000"`
	TimeoutMs     int    `yaml:"timeout_ms" default:"10000" validate:"min=100"`
	Stream        Stream `yaml:"stream"`
}

// Sentiment configures the fear & greed source.
type Sentiment struct {
	FearGreedURL string `yaml:"fear_greed_url" default:"https://api.alternative.me" validate:"url"`
	TimeoutMs    int    `yaml:"timeout_ms" default:"8000" validate:"min=100"`
	RetryWaitMs  int    `yaml:"retry_wait_ms" default:"500" validate:"min=1"`
}

// Pattern configures the placeholder trend classifier.
type Pattern struct {
	Window int    `yaml:"window" default:"20" validate:"min=2"`
	Seed   uint64 `yaml:"seed" default:"1"`
}

// BinanceVenue configures live Binance order placement.
type BinanceVenue struct {
	BaseURL           string `yaml:"base_url" validate:"omitempty,url"`
	QuoteAsset        string `yaml:"quote_asset" default:"USDT"`
	QuantityPrecision int32  `yaml:"quantity_precision" default:"6" validate:"min=0,max=8"`
	DryRun            bool   `yaml:"dry_run" default:"true"`
	TimeoutMs         int    `yaml:"timeout_ms" default:"10000" validate:"min=100"`
}

// JupiterVenue configures Solana swaps through Jupiter.
type JupiterVenue struct {
	RPCURL      string `yaml:"rpc_url" default:"https://api.mainnet-beta.solana.com" validate:"url"`
	APIBase     string `yaml:"api_base" default:"https://quote-api.jup.ag" validate:"url"`
	Commitment  string `yaml:"commitment" default:"confirmed" validate:"oneof=processed confirmed finalized"`
	QuoteAsset  string `yaml:"quote_asset" default:"USDT"`
	SlippageBps int    `yaml:"slippage_bps" default:"50" validate:"min=1,max=5000"`
	QuoteOnly   bool   `yaml:"quote_only" default:"true"`
	TimeoutMs   int    `yaml:"timeout_ms" default:"8000" validate:"min=100"`
}

// Venue selects where orders go.
type Venue struct {
	Name    string       `yaml:"name" default:"paper" validate:"oneof=paper binance jupiter"`
	Binance BinanceVenue `yaml:"binance"`
	Jupiter JupiterVenue `yaml:"jupiter"`
}

// Paper captures simulated account settings.
type Paper struct {
	StartingCash         float64 `yaml:"starting_cash" default:"10000" validate:"gt=0"`
	MaxPositionPerSymbol float64 `yaml:"max_position_per_symbol" validate:"min=0"`
	QuoteAsset           string  `yaml:"quote_asset" default:"USDT"`
}

// Risk encodes guard-rails for how much size the executor may take on.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade" validate:"min=0"`
}

// Kafka configures the optional trade/notification publisher.
type Kafka struct {
	Brokers           []string `yaml:"brokers"`
	TradeTopic        string   `yaml:"trade_topic" default:"tradebot.trades"`
	NotificationTopic string   `yaml:"notification_topic" default:"tradebot.notifications"`
	WriteTimeoutMs    int      `yaml:"write_timeout_ms" default:"10000" validate:"min=100"`
}

// Sink selects where accepted trades are recorded.
type Sink struct {
	JSONLPath string `yaml:"jsonl_path" default:"data/trades.jsonl"`
	Kafka     Kafka  `yaml:"kafka"`
}

// Strategies points at an optional catalog override file.
type Strategies struct {
	CatalogPath string `yaml:"catalog_path"`
}

// Bot is a bot started by the run command.
type Bot struct {
	UserID     string `yaml:"user_id" validate:"required"`
	Instrument string `yaml:"instrument" validate:"required"`
	Strategy   string `yaml:"strategy" validate:"required"`
	IntervalMs int    `yaml:"interval_ms" default:"30000" validate:"min=1000"`
}

// Config collects every configuration leaf.
type Config struct {
	App        App        `yaml:"app"`
	Market     Market     `yaml:"market"`
	Sentiment  Sentiment  `yaml:"sentiment"`
	Pattern    Pattern    `yaml:"pattern"`
	Venue      Venue      `yaml:"venue"`
	Paper      Paper      `yaml:"paper"`
	Risk       Risk       `yaml:"risk"`
	Sink       Sink       `yaml:"sink"`
	Strategies Strategies `yaml:"strategies"`
	Bots       []Bot      `yaml:"bots" validate:"dive"`
}

var validate = validator.New()

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	for i := range cfg.Bots {
		if err := defaults.Set(&cfg.Bots[i]); err != nil {
			return nil, fmt.Errorf("bot %d defaults: %w", i, err)
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
