// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Insight InsightConfig `mapstructure:"insight" yaml:"insight"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ModelConfig defines the primary model pathway and the transport tunables
// shared by all model calls.
type ModelConfig struct {
	Name        string        `mapstructure:"name" yaml:"name"`
	MiniName    string        `mapstructure:"mini_name" yaml:"mini_name"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	VLMode      string        `mapstructure:"vl_mode" yaml:"vl_mode"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RateLimitRPS caps outbound model calls per second. Zero disables the cap.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
}

// InsightConfig tunes the request-orchestration engine.
type InsightConfig struct {
	ForceDeepThink bool   `mapstructure:"force_deep_think" yaml:"force_deep_think"`
	DumpFile       string `mapstructure:"dump_file" yaml:"dump_file"`
	DumpMaxSizeMB  int    `mapstructure:"dump_max_size_mb" yaml:"dump_max_size_mb"`
	DumpMaxBackups int    `mapstructure:"dump_max_backups" yaml:"dump_max_backups"`
}

// BrowserConfig holds settings for the headless browser snapshot retriever.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// Environment variable names for the alternate vision-language credential set.
// When all three are present, a locate call that requests narrowing may
// temporarily switch the process onto this pathway.
const (
	EnvVLAPIKey  = "GLIMPSE_VL_API_KEY"
	EnvVLBaseURL = "GLIMPSE_VL_BASE_URL"
	EnvVLModel   = "GLIMPSE_VL_MODEL"
	EnvVLMode    = "GLIMPSE_VL_MODE"
)

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "glimpse")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Model --
	v.SetDefault("model.name", "gpt-4o")
	v.SetDefault("model.mini_name", "gpt-4o-mini")
	v.SetDefault("model.base_url", "https://api.openai.com/v1")
	v.SetDefault("model.vl_mode", "")
	v.SetDefault("model.api_timeout", "90s")
	v.SetDefault("model.temperature", 0.1)
	v.SetDefault("model.max_tokens", 4096)
	v.SetDefault("model.rate_limit_rps", 0)

	// -- Insight --
	v.SetDefault("insight.force_deep_think", false)
	v.SetDefault("insight.dump_file", "")
	v.SetDefault("insight.dump_max_size_mb", 50)
	v.SetDefault("insight.dump_max_backups", 3)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "60s")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object,
// binding sensitive values to environment variables.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("GLIMPSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("model.api_key", "GLIMPSE_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is a required configuration field")
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url is a required configuration field")
	}
	if c.Model.APITimeout <= 0 {
		return fmt.Errorf("model.api_timeout must be a positive duration")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be a positive integer")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	return nil
}
