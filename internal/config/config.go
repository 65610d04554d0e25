// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/provider/metacritic"
	"github.com/filmdata/critic-harvester/internal/resolver"
	"github.com/filmdata/critic-harvester/internal/scheduler"
	"github.com/filmdata/critic-harvester/internal/sink/postgres"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Provider ProviderConfig `mapstructure:"provider"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HarvestConfig governs the scheduler and the per-feed harvest loop.
type HarvestConfig struct {
	Concurrency         int `mapstructure:"concurrency"`
	PerTaskDeadlineSec  int `mapstructure:"per_task_deadline_seconds"`
	MaxListingPages     int `mapstructure:"max_listing_pages"`
	YearTolerance       int `mapstructure:"year_tolerance"`
	StagnationThreshold int `mapstructure:"stagnation_threshold"`
	MaxIterations       int `mapstructure:"max_iterations"`
	RevealAttempts      int `mapstructure:"reveal_attempts"`
	RevealSettleDelayMs int `mapstructure:"reveal_settle_delay_ms"`
}

// ProviderConfig governs access to the review source.
type ProviderConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_seconds"`
	HostQPS           float64 `mapstructure:"host_qps"`
	MaxSessions       int     `mapstructure:"max_sessions"`
	NavTimeoutSec     int     `mapstructure:"nav_timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
}

// SinkConfig selects and configures the output sinks.
type SinkConfig struct {
	OutputDir   string         `mapstructure:"output_dir"`
	SeenDBPath  string         `mapstructure:"seen_db_path"`
	SnapshotDir string         `mapstructure:"snapshot_dir"`
	GCSBucket   string         `mapstructure:"gcs_bucket"`
	GCSPrefix   string         `mapstructure:"gcs_prefix"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the optional database sink.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifyConfig holds metadata for run-completion notifications.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.concurrency", 4)
	v.SetDefault("harvest.per_task_deadline_seconds", 480)
	v.SetDefault("harvest.max_listing_pages", 15)
	v.SetDefault("harvest.year_tolerance", 1)
	v.SetDefault("harvest.stagnation_threshold", 3)
	v.SetDefault("harvest.max_iterations", 400)
	v.SetDefault("harvest.reveal_attempts", 2)
	v.SetDefault("harvest.reveal_settle_delay_ms", 1200)
	v.SetDefault("provider.base_url", "https://www.metacritic.com")
	v.SetDefault("provider.user_agent", "critic-harvester/0.1")
	v.SetDefault("provider.request_timeout_seconds", 20)
	v.SetDefault("provider.host_qps", 1.5)
	v.SetDefault("provider.max_sessions", 2)
	v.SetDefault("provider.nav_timeout_seconds", 45)
	v.SetDefault("provider.max_retries", 2)
	v.SetDefault("sink.output_dir", "data/raw")
	v.SetDefault("sink.postgres.table", "critic_reviews")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.PerTaskDeadlineSec <= 0 {
		return fmt.Errorf("harvest.per_task_deadline_seconds must be > 0")
	}
	if c.Harvest.StagnationThreshold <= 0 {
		return fmt.Errorf("harvest.stagnation_threshold must be > 0")
	}
	if c.Harvest.MaxIterations <= 0 {
		return fmt.Errorf("harvest.max_iterations must be > 0")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.HostQPS <= 0 {
		return fmt.Errorf("provider.host_qps must be > 0")
	}
	if c.Sink.OutputDir == "" {
		return fmt.Errorf("sink.output_dir is required")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.Notify.TopicName != "" && c.Notify.ProjectID == "" {
		return fmt.Errorf("notify.project_id is required when notify.topic_name is set")
	}
	return nil
}

// SchedulerConfig converts the harvest knobs for the scheduler.
func (c Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Concurrency:     c.Harvest.Concurrency,
		PerTaskDeadline: time.Duration(c.Harvest.PerTaskDeadlineSec) * time.Second,
	}
}

// ResolverConfig converts the harvest knobs for the resolver chain.
func (c Config) ResolverConfig() resolver.Config {
	return resolver.Config{
		MaxListingPages: c.Harvest.MaxListingPages,
		YearTolerance:   c.Harvest.YearTolerance,
	}
}

// EngineConfig converts the harvest knobs for the feed loop.
func (c Config) EngineConfig() harvest.Config {
	return harvest.Config{
		StagnationThreshold: c.Harvest.StagnationThreshold,
		MaxIterations:       c.Harvest.MaxIterations,
		RevealAttempts:      c.Harvest.RevealAttempts,
		SettleDelay:         time.Duration(c.Harvest.RevealSettleDelayMs) * time.Millisecond,
	}
}

// ProviderSettings converts the provider knobs.
func (c Config) ProviderSettings() metacritic.Config {
	return metacritic.Config{
		BaseURL:        c.Provider.BaseURL,
		UserAgent:      c.Provider.UserAgent,
		RequestTimeout: time.Duration(c.Provider.RequestTimeoutSec) * time.Second,
		HostQPS:        c.Provider.HostQPS,
		MaxSessions:    c.Provider.MaxSessions,
		NavTimeout:     time.Duration(c.Provider.NavTimeoutSec) * time.Second,
		RetryMax:       c.Provider.MaxRetries,
	}
}

// PostgresSettings converts the database sink knobs.
func (c Config) PostgresSettings() postgres.Config {
	return postgres.Config{
		DSN:      c.Sink.Postgres.DSN,
		Table:    c.Sink.Postgres.Table,
		MaxConns: c.Sink.Postgres.MaxConns,
	}
}
