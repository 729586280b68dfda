package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pumbayo1/quiltracker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig governs the HTTP listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig selects and tunes the balance record store.
type StoreConfig struct {
	Backend         string        `mapstructure:"backend"`
	DataDir         string        `mapstructure:"data_dir"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OracleConfig covers the wQUIL/USD price source.
type OracleConfig struct {
	Source         string         `mapstructure:"source"`
	AssetID        string         `mapstructure:"asset_id"`
	VsCurrency     string         `mapstructure:"vs_currency"`
	BaseURL        string         `mapstructure:"base_url"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	UserAgent      string         `mapstructure:"user_agent"`
	RetryOnce      bool           `mapstructure:"retry_once"`
	Ethereum       EthereumConfig `mapstructure:"ethereum"`
}

// EthereumConfig covers on-chain price feed access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	FeedAddress    string        `mapstructure:"feed_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AgentConfig drives the node-side reporting agent.
type AgentConfig struct {
	PeerID         string        `mapstructure:"peer_id"`
	ServerURL      string        `mapstructure:"server_url"`
	BalanceCommand string        `mapstructure:"balance_command"`
	BalanceFile    string        `mapstructure:"balance_file"`
	Interval       time.Duration `mapstructure:"interval"`
	AlignToClock   bool          `mapstructure:"align_to_clock"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WatchConfig governs the stale-peer watchdog.
type WatchConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUILTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "quiltracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("store.backend", "csv")
	v.SetDefault("store.data_dir", ".")
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime", "30m")

	v.SetDefault("oracle.source", "coingecko")
	v.SetDefault("oracle.asset_id", "wrapped-quil")
	v.SetDefault("oracle.vs_currency", "usd")
	v.SetDefault("oracle.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("oracle.request_timeout", "10s")
	v.SetDefault("oracle.user_agent", "quiltracker/1.0")
	v.SetDefault("oracle.retry_once", true)
	v.SetDefault("oracle.ethereum.request_timeout", "10s")

	v.SetDefault("agent.server_url", "http://127.0.0.1:5000")
	v.SetDefault("agent.interval", "5m")
	v.SetDefault("agent.align_to_clock", false)
	v.SetDefault("agent.request_timeout", "10s")

	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.interval", "5m")
	v.SetDefault("watch.stale_after", "1h")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "csv", "postgres", "memory":
	default:
		return fmt.Errorf("store.backend must be one of csv, postgres, memory")
	}
	if c.Store.Backend == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres backend")
	}
	if c.Store.Backend == "csv" && c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required for the csv backend")
	}

	switch c.Oracle.Source {
	case "coingecko", "onchain", "none":
	default:
		return fmt.Errorf("oracle.source must be one of coingecko, onchain, none")
	}
	if c.Oracle.Source == "onchain" {
		if c.Oracle.Ethereum.RPCURL == "" {
			return fmt.Errorf("oracle.ethereum.rpc_url is required for the onchain source")
		}
		if c.Oracle.Ethereum.FeedAddress == "" {
			return fmt.Errorf("oracle.ethereum.feed_address is required for the onchain source")
		}
	}

	if c.Agent.Interval <= 0 {
		return fmt.Errorf("agent.interval must be greater than zero")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Watch.StaleAfter <= 0 {
		return fmt.Errorf("watch.stale_after must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
