// Package config loads application configuration and initializes logging.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig    `yaml:"store" mapstructure:"store"`
	Dirs      DirsConfig     `yaml:"dirs" mapstructure:"dirs"`
	Timezone  string         `yaml:"timezone" mapstructure:"timezone"`
	Locations []Location     `yaml:"locations" mapstructure:"locations"`
	Verify    VerifyConfig   `yaml:"verify" mapstructure:"verify"`
	Retry     RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Notify    NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Schedule  ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Log       LogConfig      `yaml:"log" mapstructure:"log"`
}

// Location describes one shop location. The ordered location list is the
// single source of truth for how many per-location exports a run expects
// and in which order they are combined.
type Location struct {
	// Name is the display name stamped into the Location column ("Mesa Broadway").
	Name string `yaml:"name" mapstructure:"name"`
	// FileTag is the dashed form used in export filenames ("Mesa-Broadway").
	FileTag string `yaml:"file_tag" mapstructure:"file_tag"`
	// ShopID identifies the location to the external report downloader.
	ShopID string `yaml:"shop_id" mapstructure:"shop_id"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	FinancialTable string `yaml:"financial_table" mapstructure:"financial_table"`
	MarketingTable string `yaml:"marketing_table" mapstructure:"marketing_table"`
}

// DirsConfig holds the run-scoped export directories.
type DirsConfig struct {
	Financial string `yaml:"financial" mapstructure:"financial"`
	Marketing string `yaml:"marketing" mapstructure:"marketing"`
	// CombinedPrefix prefixes the combined marketing report filename.
	CombinedPrefix string `yaml:"combined_prefix" mapstructure:"combined_prefix"`
}

// VerifyConfig declares which source labels carry the reconciliation counts.
// Labels are matched against raw (pre-sanitization) headers; a label that
// resolves to nothing is surfaced as a run issue, never silently skipped.
type VerifyConfig struct {
	FinancialMetric string `yaml:"financial_metric" mapstructure:"financial_metric"`
	MarketingColumn string `yaml:"marketing_column" mapstructure:"marketing_column"`
	LocationColumn  string `yaml:"location_column" mapstructure:"location_column"`
}

// RetryConfig bounds retries around store writes.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// NotifyConfig selects and configures the run-summary notification channel.
type NotifyConfig struct {
	// Mode is one of "none", "webhook", "email".
	Mode       string      `yaml:"mode" mapstructure:"mode"`
	WebhookURL string      `yaml:"webhook_url" mapstructure:"webhook_url"`
	Email      EmailConfig `yaml:"email" mapstructure:"email"`
}

// EmailConfig holds Microsoft Graph sendMail credentials.
type EmailConfig struct {
	TenantID     string   `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret"`
	Authority    string   `yaml:"authority" mapstructure:"authority"`
	Sender       string   `yaml:"sender" mapstructure:"sender"`
	Recipients   []string `yaml:"recipients" mapstructure:"recipients"`
}

// ScheduleConfig bounds the hourly scheduler window.
type ScheduleConfig struct {
	StartHour int `yaml:"start_hour" mapstructure:"start_hour"`
	EndHour   int `yaml:"end_hour" mapstructure:"end_hour"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultLocations returns the six shop locations in canonical combine order.
func DefaultLocations() []Location {
	return []Location{
		{Name: "Mesa Broadway", FileTag: "Mesa-Broadway", ShopID: "10738"},
		{Name: "Mesa Guadalupe", FileTag: "Mesa-Guadalupe", ShopID: "11965"},
		{Name: "Phoenix", FileTag: "Phoenix", ShopID: "10171"},
		{Name: "Tempe", FileTag: "Tempe", ShopID: "5566"},
		{Name: "Sun City West", FileTag: "Sun-City-West", ShopID: "13513"},
		{Name: "Surprise", FileTag: "Surprise", ShopID: "13512"},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHOPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.financial_table", "custom_financials")
	v.SetDefault("store.marketing_table", "ro_marketing")
	v.SetDefault("dirs.financial", "Financial Reports")
	v.SetDefault("dirs.marketing", "RO Reports")
	v.SetDefault("dirs.combined_prefix", "ShopSync")
	v.SetDefault("timezone", "America/Phoenix")
	v.SetDefault("verify.financial_metric", "Car Count")
	v.SetDefault("verify.marketing_column", "RO Count")
	v.SetDefault("verify.location_column", "Location")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("notify.mode", "none")
	v.SetDefault("notify.email.authority", "https://login.microsoftonline.com")
	v.SetDefault("schedule.start_hour", 0)
	v.SetDefault("schedule.end_hour", 23)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Locations) == 0 {
		cfg.Locations = DefaultLocations()
	}

	return &cfg, nil
}

// Zone resolves the configured named time zone. All date and run-label
// derivations are anchored here, never to system-local time.
func (c *Config) Zone() (*time.Location, error) {
	zone, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %s", c.Timezone)
	}
	return zone, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
