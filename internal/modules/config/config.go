package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"botfleet/pkg/logger"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSNENV    = "DATABASE_DSN"
	redisAddrENV      = "REDIS_ADDR"
)

type Config struct {
	DB string

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Broker struct {
		Mode       string // okx | paper
		APIKey     string
		APISecret  string
		Passphrase string
		RESTHost   string
		WSHost     string
	}

	Telegram struct {
		Token  string
		ChatID int64
	}

	Admin struct {
		Addr string
	}

	Jaeger struct {
		Enabled bool
		Host    string
		Port    int
	}

	Scheduler struct {
		// Workers caps concurrently running pipelines across all
		// timeframes (broker call budget).
		Workers int
		// Lookback is how many bars each evaluation fetches.
		Lookback int
	}

	// StrategiesFile holds the named rule sets bots reference.
	StrategiesFile string

	// Per-timeframe lock TTL overrides, keyed by timeframe string.
	lockTTLs map[string]time.Duration
}

func NewConfig() (*Config, error) {
	v := viper.New()

	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = "values_local.yaml"
	}
	v.SetConfigName(strings.TrimSuffix(name, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")

	v.SetDefault("broker.mode", "paper")
	v.SetDefault("broker.rest_host", "https://www.okx.com")
	v.SetDefault("broker.ws_host", "wss://ws.okx.com:8443")
	v.SetDefault("admin.addr", ":8080")
	v.SetDefault("jaeger.enabled", false)
	v.SetDefault("jaeger.host", "127.0.0.1")
	v.SetDefault("jaeger.port", 6831)
	v.SetDefault("scheduler.workers", 8)
	v.SetDefault("scheduler.lookback", 200)
	v.SetDefault("strategies_file", "configs/strategies.yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
		logger.Warn("config file %s not found, using defaults", name)
	}

	cfg := &Config{}
	cfg.DB = v.GetString("db_dsn")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Broker.Mode = v.GetString("broker.mode")
	cfg.Broker.APIKey = v.GetString("broker.api_key")
	cfg.Broker.APISecret = v.GetString("broker.api_secret")
	cfg.Broker.Passphrase = v.GetString("broker.passphrase")
	cfg.Broker.RESTHost = v.GetString("broker.rest_host")
	cfg.Broker.WSHost = v.GetString("broker.ws_host")
	cfg.Telegram.Token = v.GetString("telegram.token")
	cfg.Telegram.ChatID = v.GetInt64("telegram.chat_id")
	cfg.Admin.Addr = v.GetString("admin.addr")
	cfg.Jaeger.Enabled = v.GetBool("jaeger.enabled")
	cfg.Jaeger.Host = v.GetString("jaeger.host")
	cfg.Jaeger.Port = v.GetInt("jaeger.port")
	cfg.Scheduler.Workers = v.GetInt("scheduler.workers")
	cfg.Scheduler.Lookback = v.GetInt("scheduler.lookback")
	cfg.StrategiesFile = v.GetString("strategies_file")

	cfg.lockTTLs = map[string]time.Duration{}
	for tf, raw := range v.GetStringMapString("lock_ttl") {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "lock_ttl.%s", tf)
		}
		cfg.lockTTLs[tf] = d
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSNENV); dsn != "" {
		cfg.DB = dsn
	}
	if addr := os.Getenv(redisAddrENV); addr != "" {
		cfg.Redis.Addr = addr
	}

	return cfg, nil
}

// LockTTL returns the pipeline lock TTL for a timeframe: the configured
// override when present, otherwise half the tick period clamped to
// [30s, 5m]. The TTL must outlive one pipeline run but expire before
// too many ticks pile up behind a crashed holder.
func (c *Config) LockTTL(timeframe string, period time.Duration) time.Duration {
	if ttl, ok := c.lockTTLs[timeframe]; ok && ttl > 0 {
		return ttl
	}
	ttl := period / 2
	if ttl < 30*time.Second {
		ttl = 30 * time.Second
	}
	if ttl > 5*time.Minute {
		ttl = 5 * time.Minute
	}
	return ttl
}
