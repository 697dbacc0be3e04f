package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the campus alert service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit throttles warning submissions per client IP.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig allows Requests per Window. Zero requests disables limiting.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string            `mapstructure:"driver"`
	Path            string            `mapstructure:"path"`
	DSN             string            `mapstructure:"dsn"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Name            string            `mapstructure:"name"`
	User            string            `mapstructure:"user"`
	Password        string            `mapstructure:"password"`
	ConnOptions     map[string]string `mapstructure:"options"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration     `mapstructure:"conn_max_lifetime"`
}

// DispatchConfig holds the send-now / queue / discard tunables.
type DispatchConfig struct {
	InstantWindow time.Duration `mapstructure:"instant_window"`
	MaxResidency  time.Duration `mapstructure:"max_residency"`
	DailyQuota    int           `mapstructure:"daily_quota"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	FlushFailure  string        `mapstructure:"flush_failure"`
	// Priorities maps category names to high, medium or low.
	Priorities map[string]string `mapstructure:"priorities"`
}

// SchedulerConfig holds the cron expressions for background jobs.
type SchedulerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaintenanceSchedule string        `mapstructure:"maintenance_schedule"`
	QuotaResetSchedule  string        `mapstructure:"quota_reset_schedule"`
	Timezone            string        `mapstructure:"timezone"`
	JobTimeout          time.Duration `mapstructure:"job_timeout"`
}

// ClassifierConfig customises relevance scoring.
type ClassifierConfig struct {
	TightRadius float64                     `mapstructure:"tight_radius"`
	LooseRadius float64                     `mapstructure:"loose_radius"`
	Categories  map[string]CategorySettings `mapstructure:"categories"`
	Keywords    KeywordSettings             `mapstructure:"keywords"`
	MinScore    int                         `mapstructure:"min_score"`
	Lookback    time.Duration               `mapstructure:"lookback"`
}

// CategorySettings overrides scoring for one category.
type CategorySettings struct {
	InitialRelevance *int    `mapstructure:"initial_relevance"`
	TightRadius      float64 `mapstructure:"tight_radius"`
	LooseRadius      float64 `mapstructure:"loose_radius"`
	Candidates       string  `mapstructure:"candidates"`
}

// KeywordSettings replaces the ownership keyword sets. Empty sets keep the defaults.
type KeywordSettings struct {
	Vehicle []string `mapstructure:"vehicle"`
	Bicycle []string `mapstructure:"bicycle"`
	Laptop  []string `mapstructure:"laptop"`
}

// DeliveryConfig selects the push transport.
type DeliveryConfig struct {
	Driver string      `mapstructure:"driver"`
	Stream string      `mapstructure:"stream"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka delivery driver.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	ClientID     string        `mapstructure:"client_id"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks string        `mapstructure:"required_acks"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig reads config.yaml from ./config and the given paths, then
// overlays CAMPUSALERT_* environment variables. A missing file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CAMPUSALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/campusalert.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")

	v.SetDefault("dispatch.instant_window", "60m")
	v.SetDefault("dispatch.max_residency", "24h")
	v.SetDefault("dispatch.daily_quota", 3)
	v.SetDefault("dispatch.send_timeout", "10s")
	v.SetDefault("dispatch.flush_failure", "requeue")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.maintenance_schedule", "0 8-22/2 * * *")
	v.SetDefault("scheduler.quota_reset_schedule", "0 0 * * *")
	v.SetDefault("scheduler.timezone", "Local")
	v.SetDefault("scheduler.job_timeout", "1m")

	v.SetDefault("classifier.tight_radius", 0)
	v.SetDefault("classifier.loose_radius", 0)
	v.SetDefault("classifier.min_score", 1)
	v.SetDefault("classifier.lookback", "0s") // one calendar month
	v.SetDefault("classifier.keywords.vehicle", []string{})
	v.SetDefault("classifier.keywords.bicycle", []string{})
	v.SetDefault("classifier.keywords.laptop", []string{})

	v.SetDefault("delivery.driver", "hub")
	v.SetDefault("delivery.stream", "alerts")
	v.SetDefault("delivery.kafka.brokers", []string{})
	v.SetDefault("delivery.kafka.topic", "campus-alerts")
	v.SetDefault("delivery.kafka.client_id", "campusalert")
	v.SetDefault("delivery.kafka.batch_timeout", "10ms")
	v.SetDefault("delivery.kafka.required_acks", "all")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
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
