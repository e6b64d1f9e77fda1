package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MainnetRESTURL = "https://fapi.binance.com"
	MainnetWSURL   = "wss://fstream.binance.com/stream"
	TestnetRESTURL = "https://testnet.binancefuture.com"
	TestnetWSURL   = "wss://stream.binancefuture.com/stream"
)

// ErrConfigCreated is returned by Load when the config file did not exist and a
// template was written in its place.
var ErrConfigCreated = errors.New("config file created from template")

type Config struct {
	Log        LoggingConfig    `yaml:"log"`
	Connection ConnectionConfig `yaml:"connection"`
	REST       RESTConfig       `yaml:"rest"`
	WS         WSConfig         `yaml:"ws"`
	Trading    TradingConfig    `yaml:"trading"`
	Retry      RetryConfig      `yaml:"retry"`
	Journal    JournalConfig    `yaml:"journal"`
	Timescale  TimescaleConfig  `yaml:"timescale"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ConnectionConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

type RESTConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	RecvWindow        time.Duration `yaml:"recv_window"`
}

type WSConfig struct {
	Enabled        *bool         `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxPriceAge    time.Duration `yaml:"max_price_age"`
}

func (w WSConfig) EnabledValue() bool {
	return w.Enabled != nil && *w.Enabled
}

// TradingConfig holds the global trading parameters. Overrides replace single
// fields for one symbol; zero values in an override inherit the global value.
type TradingConfig struct {
	Symbols                 []string                 `yaml:"symbols"`
	EntryBars               int                      `yaml:"entry_bars"`
	ExitBars                int                      `yaml:"exit_bars"`
	EachTrade               float64                  `yaml:"each_trade"`
	MaxPerSymbol            float64                  `yaml:"max_per_symbol"`
	EnterMoreAfterBreakBars *int                     `yaml:"enter_more_after_break_bars"`
	Interval                string                   `yaml:"interval"`
	PollInterval            time.Duration            `yaml:"poll_interval"`
	Overrides               map[string]AssetOverride `yaml:"overrides"`
}

type AssetOverride struct {
	EntryBars               int     `yaml:"entry_bars"`
	ExitBars                int     `yaml:"exit_bars"`
	EachTrade               float64 `yaml:"each_trade"`
	MaxPerSymbol            float64 `yaml:"max_per_symbol"`
	EnterMoreAfterBreakBars *int    `yaml:"enter_more_after_break_bars"`
	Interval                string  `yaml:"interval"`
}

// AssetConfig is the resolved, immutable configuration of one trading unit.
type AssetConfig struct {
	Symbol       string
	EntryBars    int
	ExitBars     int
	EachTrade    float64
	MaxPerSymbol float64
	ReentryBars  int
	Interval     string
	PollInterval time.Duration
}

// RequiredBars is the number of bars fetched per cycle; the newest one is still
// forming and is never aggregated.
func (a AssetConfig) RequiredBars() int {
	return max(a.EntryBars, a.ExitBars) + 1
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

type JournalConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := WriteTemplate(path); werr != nil {
				return nil, werr
			}
			return nil, fmt.Errorf("%s: %w", path, ErrConfigCreated)
		}
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = 100
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = 5
		}
		if cfg.Log.MaxAgeDays == 0 {
			cfg.Log.MaxAgeDays = 30
		}
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = MainnetRESTURL
		if cfg.Connection.Testnet {
			cfg.REST.BaseURL = TestnetRESTURL
		}
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.REST.RequestsPerSecond == 0 {
		cfg.REST.RequestsPerSecond = 10
	}
	if cfg.REST.RecvWindow == 0 {
		cfg.REST.RecvWindow = 10 * time.Second
	}
	if cfg.WS.Enabled == nil {
		enabled := true
		cfg.WS.Enabled = &enabled
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = MainnetWSURL
		if cfg.Connection.Testnet {
			cfg.WS.URL = TestnetWSURL
		}
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.MaxPriceAge == 0 {
		cfg.WS.MaxPriceAge = 5 * time.Second
	}
	if cfg.Trading.EntryBars == 0 {
		cfg.Trading.EntryBars = 20
	}
	if cfg.Trading.ExitBars == 0 {
		cfg.Trading.ExitBars = 10
	}
	if cfg.Trading.EachTrade == 0 {
		cfg.Trading.EachTrade = 0.05
	}
	if cfg.Trading.MaxPerSymbol == 0 {
		cfg.Trading.MaxPerSymbol = 0.5
	}
	if cfg.Trading.EnterMoreAfterBreakBars == nil {
		bars := 0
		cfg.Trading.EnterMoreAfterBreakBars = &bars
	}
	if cfg.Trading.Interval == "" {
		cfg.Trading.Interval = "1d"
	}
	if cfg.Trading.PollInterval == 0 {
		cfg.Trading.PollInterval = 15 * time.Second
	}
	for i, symbol := range cfg.Trading.Symbols {
		cfg.Trading.Symbols[i] = strings.ToUpper(strings.TrimSpace(symbol))
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.InitialInterval == 0 {
		cfg.Retry.InitialInterval = 200 * time.Millisecond
	}
	if cfg.Retry.MaxInterval == 0 {
		cfg.Retry.MaxInterval = 5 * time.Second
	}
	if cfg.Journal.SQLitePath == "" {
		cfg.Journal.SQLitePath = "data/journal.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BN_API_KEY")); v != "" {
		cfg.Connection.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("BN_API_SECRET")); v != "" {
		cfg.Connection.APISecret = v
	}
	if v := strings.TrimSpace(os.Getenv("BN_TELEGRAM_TOKEN")); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("BN_TELEGRAM_CHAT_ID")); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := strings.TrimSpace(os.Getenv("BN_TIMESCALE_DSN")); v != "" {
		cfg.Timescale.DSN = v
	}
}

func validate(cfg *Config) error {
	if len(cfg.Trading.Symbols) == 0 {
		return errors.New("trading.symbols is required")
	}
	seen := make(map[string]struct{}, len(cfg.Trading.Symbols))
	for _, symbol := range cfg.Trading.Symbols {
		if symbol == "" {
			return errors.New("trading.symbols contains an empty symbol")
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("trading.symbols contains %s twice", symbol)
		}
		seen[symbol] = struct{}{}
	}
	for symbol := range cfg.Trading.Overrides {
		if _, ok := seen[strings.ToUpper(symbol)]; !ok {
			return fmt.Errorf("trading.overrides.%s is not a configured symbol", symbol)
		}
	}
	if cfg.Trading.PollInterval < 0 {
		return errors.New("trading.poll_interval must be > 0")
	}
	for _, asset := range cfg.Trading.Assets() {
		if err := validateAsset(asset); err != nil {
			return err
		}
	}
	if cfg.REST.RequestsPerSecond < 0 {
		return errors.New("rest.requests_per_second must be >= 0")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if cfg.Retry.InitialInterval < 0 || cfg.Retry.MaxInterval < 0 {
		return errors.New("retry intervals must be >= 0")
	}
	if cfg.WS.MaxPriceAge < 0 {
		return errors.New("ws.max_price_age must be >= 0")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

func validateAsset(a AssetConfig) error {
	if a.EntryBars < 1 {
		return fmt.Errorf("%s: entry_bars must be >= 1", a.Symbol)
	}
	if a.ExitBars < 1 {
		return fmt.Errorf("%s: exit_bars must be >= 1", a.Symbol)
	}
	if a.EachTrade <= 0 || a.EachTrade > 1 {
		return fmt.Errorf("%s: each_trade must be in (0, 1]", a.Symbol)
	}
	if a.MaxPerSymbol <= 0 || a.MaxPerSymbol > 1 {
		return fmt.Errorf("%s: max_per_symbol must be in (0, 1]", a.Symbol)
	}
	if a.ReentryBars < 0 {
		return fmt.Errorf("%s: enter_more_after_break_bars must be >= 0", a.Symbol)
	}
	if strings.TrimSpace(a.Interval) == "" {
		return fmt.Errorf("%s: interval is required", a.Symbol)
	}
	return nil
}

// Assets resolves one AssetConfig per configured symbol, in configuration order.
func (t TradingConfig) Assets() []AssetConfig {
	overrides := make(map[string]AssetOverride, len(t.Overrides))
	for symbol, o := range t.Overrides {
		overrides[strings.ToUpper(strings.TrimSpace(symbol))] = o
	}
	reentry := 0
	if t.EnterMoreAfterBreakBars != nil {
		reentry = *t.EnterMoreAfterBreakBars
	}
	out := make([]AssetConfig, 0, len(t.Symbols))
	for _, symbol := range t.Symbols {
		asset := AssetConfig{
			Symbol:       symbol,
			EntryBars:    t.EntryBars,
			ExitBars:     t.ExitBars,
			EachTrade:    t.EachTrade,
			MaxPerSymbol: t.MaxPerSymbol,
			ReentryBars:  reentry,
			Interval:     t.Interval,
			PollInterval: t.PollInterval,
		}
		if o, ok := overrides[symbol]; ok {
			if o.EntryBars != 0 {
				asset.EntryBars = o.EntryBars
			}
			if o.ExitBars != 0 {
				asset.ExitBars = o.ExitBars
			}
			if o.EachTrade != 0 {
				asset.EachTrade = o.EachTrade
			}
			if o.MaxPerSymbol != 0 {
				asset.MaxPerSymbol = o.MaxPerSymbol
			}
			if o.EnterMoreAfterBreakBars != nil {
				asset.ReentryBars = *o.EnterMoreAfterBreakBars
			}
			if o.Interval != "" {
				asset.Interval = o.Interval
			}
		}
		out = append(out, asset)
	}
	return out
}
