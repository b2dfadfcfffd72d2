// Package config loads process configuration once at startup. Values come
// from defaults, an optional YAML file named by KYC_CONFIG_FILE, and KYC_
// prefixed environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. KYC_SERVER_ADDR.
const EnvPrefix = "KYC"

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Vendor      VendorConfig      `mapstructure:"vendor"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Rescreening RescreeningConfig `mapstructure:"rescreening"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the catalog backend. An empty DSN runs the
// in-memory catalog.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// RedisConfig configures the lock backend. An empty URL uses in-process locks.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	ClientID          string   `mapstructure:"client_id"`
	AlertTopic        string   `mapstructure:"alert_topic"`
	AuditTopic        string   `mapstructure:"audit_topic"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

// VendorConfig configures the screening vendor adapter. A missing APIKey is
// reported when a screening runs, not at boot.
type VendorConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RatePerSecond    float64       `mapstructure:"rate_per_second"`
	Burst            int           `mapstructure:"burst"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// RiskConfig overrides scorer weights and country lists. Empty values keep
// the scorer defaults.
type RiskConfig struct {
	Weights              map[string]float64 `mapstructure:"weights"`
	HighRiskCountries    []string           `mapstructure:"high_risk_countries"`
	MediumRiskCountries  []string           `mapstructure:"medium_risk_countries"`
	HighRiskCountryFloor float64            `mapstructure:"high_risk_country_floor"`
}

type RescreeningConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Concurrency    int           `mapstructure:"concurrency"`
	Interval       time.Duration `mapstructure:"interval"`
	ExpiryInterval time.Duration `mapstructure:"expiry_interval"`
	ExpiryWindow   time.Duration `mapstructure:"expiry_window"`
	ExpireInterval time.Duration `mapstructure:"expire_interval"`
	ExpiryDryRun   bool          `mapstructure:"expiry_dry_run"`
	RetryAfter     time.Duration `mapstructure:"retry_after"`
}

// AlertsConfig picks the alert sink: "log", "kafka", or "both".
type AlertsConfig struct {
	Sink string `mapstructure:"sink"`
}

type AuditConfig struct {
	RelayInterval time.Duration `mapstructure:"relay_interval"`
	RelayBatch    int           `mapstructure:"relay_batch"`
}

// IsProduction reports whether logs should be JSON.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.lock_ttl", 2*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.client_id", "kyccase")
	v.SetDefault("kafka.alert_topic", "kyc.alerts")
	v.SetDefault("kafka.audit_topic", "kyc.audit")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("vendor.base_url", "https://api.screening.example")
	v.SetDefault("vendor.api_key", "")
	v.SetDefault("vendor.timeout", 10*time.Second)
	v.SetDefault("vendor.rate_per_second", 5.0)
	v.SetDefault("vendor.burst", 5)
	v.SetDefault("vendor.failure_threshold", 5)
	v.SetDefault("vendor.cooldown", 30*time.Second)

	v.SetDefault("risk.high_risk_countries", []string{})
	v.SetDefault("risk.medium_risk_countries", []string{})
	v.SetDefault("risk.high_risk_country_floor", 0.0)

	v.SetDefault("rescreening.enabled", true)
	v.SetDefault("rescreening.concurrency", 4)
	v.SetDefault("rescreening.interval", time.Hour)
	v.SetDefault("rescreening.expiry_interval", 24*time.Hour)
	v.SetDefault("rescreening.expiry_window", 30*24*time.Hour)
	v.SetDefault("rescreening.expire_interval", time.Hour)
	v.SetDefault("rescreening.expiry_dry_run", false)
	v.SetDefault("rescreening.retry_after", 30*time.Minute)

	v.SetDefault("alerts.sink", "log")

	v.SetDefault("audit.relay_interval", time.Second)
	v.SetDefault("audit.relay_batch", 100)
}

// Load reads configuration from defaults, the optional file, and the
// environment.
func Load() (Config, error) {
	return load(viper.New(), os.Getenv(EnvPrefix+"_CONFIG_FILE"))
}

func load(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Risk.HighRiskCountries = splitList(cfg.Risk.HighRiskCountries)
	cfg.Risk.MediumRiskCountries = splitList(cfg.Risk.MediumRiskCountries)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("database.driver must be postgres or pgx, got %q", c.Database.Driver)
	}
	switch c.Alerts.Sink {
	case "log", "kafka", "both":
	default:
		return fmt.Errorf("alerts.sink must be log, kafka, or both, got %q", c.Alerts.Sink)
	}
	if c.Alerts.Sink != "log" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("alerts.sink %q requires kafka.brokers", c.Alerts.Sink)
	}
	if c.Rescreening.Concurrency < 1 {
		return fmt.Errorf("rescreening.concurrency must be at least 1")
	}
	return nil
}

// splitList accepts both YAML lists and a single comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
