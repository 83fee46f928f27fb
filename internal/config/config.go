package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"ratewatcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Detect    DetectConfig    `mapstructure:"detect"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Export    ExportConfig    `mapstructure:"export"`
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
}

// SourceConfig parameterises one upstream source adapter.
type SourceConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// SourcesConfig holds the per-source adapter settings.
type SourcesConfig struct {
	Zillow   SourceConfig `mapstructure:"zillow"`
	Bankrate SourceConfig `mapstructure:"bankrate"`
	MND      SourceConfig `mapstructure:"mnd"`
}

// ScrapeConfig governs the orchestrated cycle.
type ScrapeConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	Sources    SourcesConfig `mapstructure:"sources"`
}

// DetectConfig tunes change detection.
type DetectConfig struct {
	ThresholdPct float64 `mapstructure:"threshold_pct"`
	Mode         string  `mapstructure:"mode"`
}

// GatewayConfig captures the notification gateway endpoint.
type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	From    string        `mapstructure:"from"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AlertingConfig defines alert routing and the daily cap.
type AlertingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	DailyCap int           `mapstructure:"daily_cap"`
	Gateway  GatewayConfig `mapstructure:"gateway"`
}

// SchedulerConfig governs watch-mode cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATEWATCHER")
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
	v.SetDefault("app.name", "ratewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scrape.batch_size", 10)
	v.SetDefault("scrape.batch_delay", "2s")
	for _, source := range []string{"zillow", "bankrate", "mnd"} {
		v.SetDefault("scrape.sources."+source+".timeout", "10s")
		v.SetDefault("scrape.sources."+source+".max_retries", 3)
		v.SetDefault("scrape.sources."+source+".retry_base_delay", "500ms")
		v.SetDefault("scrape.sources."+source+".rate_limit_per_minute", 30)
		v.SetDefault("scrape.sources."+source+".user_agent", "ratewatcher/1.0")
	}

	v.SetDefault("detect.threshold_pct", 0.25)
	v.SetDefault("detect.mode", "relative")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.daily_cap", 5)
	v.SetDefault("alerting.gateway.timeout", "10s")

	v.SetDefault("scheduler.interval", "6h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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
	if c.Scrape.BatchSize <= 0 {
		return fmt.Errorf("scrape.batch_size must be greater than zero")
	}
	if c.Scrape.BatchDelay < 0 {
		return fmt.Errorf("scrape.batch_delay cannot be negative")
	}
	if c.Detect.ThresholdPct < 0 {
		return fmt.Errorf("detect.threshold_pct cannot be negative")
	}
	if mode := c.Detect.Mode; mode != "" && mode != "relative" && mode != "points" {
		return fmt.Errorf("detect.mode must be \"relative\" or \"points\"")
	}
	if c.Alerting.DailyCap <= 0 {
		return fmt.Errorf("alerting.daily_cap must be greater than zero")
	}
	if c.Alerting.Enabled && c.Alerting.Gateway.BaseURL == "" {
		return fmt.Errorf("alerting.gateway.base_url required when alerting is enabled")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	for name, source := range map[string]SourceConfig{
		"zillow":   c.Scrape.Sources.Zillow,
		"bankrate": c.Scrape.Sources.Bankrate,
		"mnd":      c.Scrape.Sources.MND,
	} {
		if source.MaxRetries < 0 {
			return fmt.Errorf("scrape.sources.%s.max_retries cannot be negative", name)
		}
		if source.RateLimitPerMinute < 0 {
			return fmt.Errorf("scrape.sources.%s.rate_limit_per_minute cannot be negative", name)
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
