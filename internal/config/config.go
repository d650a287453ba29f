package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"price-oracle/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Keystore KeystoreConfig `mapstructure:"keystore"`
	TxPool   TxPoolConfig   `mapstructure:"txpool"`
	API      APIConfig      `mapstructure:"api"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ChainConfig governs block production.
type ChainConfig struct {
	BlockTime       time.Duration `mapstructure:"block_time"`
	AlignToBlock    bool          `mapstructure:"align_to_block"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	MaxTxsPerBlock  int           `mapstructure:"max_txs_per_block"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// OracleConfig covers the offchain price source.
type OracleConfig struct {
	URL            string        `mapstructure:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// KeystoreConfig locates the local signing keys.
type KeystoreConfig struct {
	Dir         string `mapstructure:"dir"`
	KeyType     string `mapstructure:"key_type"`
	Passphrase  string `mapstructure:"passphrase"`
	LightScrypt bool   `mapstructure:"light_scrypt"`
}

// TxPoolConfig bounds the transaction pool.
type TxPoolConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// AlertingConfig routes NewPrice notifications.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram notification parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORACLENODE")
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
	v.SetDefault("app.name", "oraclenode")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("chain.block_time", "6s")
	v.SetDefault("chain.align_to_block", false)
	v.SetDefault("chain.startup_delay", "0s")
	v.SetDefault("chain.max_txs_per_block", 256)
	v.SetDefault("chain.advisory_lock_key", int64(0))

	v.SetDefault("oracle.url", "https://min-api.cryptocompare.com/data/price?fsym=BTC&tsyms=USD")
	v.SetDefault("oracle.request_timeout", "5s")
	v.SetDefault("oracle.user_agent", "")

	v.SetDefault("keystore.dir", "keys")
	v.SetDefault("keystore.key_type", "btc!")
	v.SetDefault("keystore.light_scrypt", false)

	v.SetDefault("txpool.max_size", 1024)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8545")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
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
	if c.Chain.BlockTime <= 0 {
		return fmt.Errorf("chain.block_time must be greater than zero")
	}
	if c.Chain.MaxTxsPerBlock < 0 {
		return fmt.Errorf("chain.max_txs_per_block cannot be negative")
	}
	if c.Oracle.URL == "" {
		return fmt.Errorf("oracle.url must be configured")
	}
	if len(c.Keystore.KeyType) != 4 {
		return fmt.Errorf("keystore.key_type must be exactly 4 bytes, got %q", c.Keystore.KeyType)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be configured")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be configured")
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
