// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Humanize HumanizeConfig `mapstructure:"humanize" yaml:"humanize"`
}

// LoggerConfig controls the global logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chromium instance the driver attaches to.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// UserDataDir is the persistent profile directory. The logged-in
	// account lives here; wiping it logs the tool out.
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timezone          string        `mapstructure:"timezone" yaml:"timezone"`
	Locale            string        `mapstructure:"locale" yaml:"locale"`
	Stealth           bool          `mapstructure:"stealth" yaml:"stealth"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// LLMConfig controls the reply generation provider.
type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // "openai" or "gemini"
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Model    string `mapstructure:"model" yaml:"model"`
	// FallbackModel is tried once when the primary model is rejected
	// by the API (unknown, unsupported, or retired).
	FallbackModel     string        `mapstructure:"fallback_model" yaml:"fallback_model"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// QuietHoursConfig defines a local-time window during which the session
// loop idles without processing.
type QuietHoursConfig struct {
	Enabled   bool `mapstructure:"enabled" yaml:"enabled"`
	StartHour int  `mapstructure:"start_hour" yaml:"start_hour"`
	EndHour   int  `mapstructure:"end_hour" yaml:"end_hour"`
}

// ReplyConfig shapes generated replies.
type ReplyConfig struct {
	Language string `mapstructure:"language" yaml:"language"`
	Style    string `mapstructure:"style" yaml:"style"`
	Tone     string `mapstructure:"tone" yaml:"tone"`
	// TemplateID pins a specific voice; zero routes by post content.
	TemplateID int `mapstructure:"template_id" yaml:"template_id"`
}

// FilterConfig gates which discovered posts are eligible.
type FilterConfig struct {
	// OwnHandle is always skipped so the tool never replies to itself.
	OwnHandle       string   `mapstructure:"own_handle" yaml:"own_handle"`
	RequireVerified bool     `mapstructure:"require_verified" yaml:"require_verified"`
	SkipHandles     []string `mapstructure:"skip_handles" yaml:"skip_handles"`
}

// SessionConfig controls the engagement loop.
type SessionConfig struct {
	Target int `mapstructure:"target" yaml:"target"`
	// Query is the feed search used to seed the session, e.g.
	// "min_faves:500 lang:en".
	Query                  string           `mapstructure:"query" yaml:"query"`
	MinDelay               time.Duration    `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay               time.Duration    `mapstructure:"max_delay" yaml:"max_delay"`
	FailureDelayMin        time.Duration    `mapstructure:"failure_delay_min" yaml:"failure_delay_min"`
	FailureDelayMax        time.Duration    `mapstructure:"failure_delay_max" yaml:"failure_delay_max"`
	MaxConsecutiveFailures int              `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	StallTimeout           time.Duration    `mapstructure:"stall_timeout" yaml:"stall_timeout"`
	QuietHours             QuietHoursConfig `mapstructure:"quiet_hours" yaml:"quiet_hours"`
	Reply                  ReplyConfig      `mapstructure:"reply" yaml:"reply"`
	Filter                 FilterConfig     `mapstructure:"filter" yaml:"filter"`
}

// StorageConfig locates the session database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HumanizeConfig tunes the human-input simulation layer.
type HumanizeConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	PauseMinMs    int  `mapstructure:"pause_min_ms" yaml:"pause_min_ms"`
	PauseMaxMs    int  `mapstructure:"pause_max_ms" yaml:"pause_max_ms"`
	KeyDelayMinMs int  `mapstructure:"key_delay_min_ms" yaml:"key_delay_min_ms"`
	KeyDelayMaxMs int  `mapstructure:"key_delay_max_ms" yaml:"key_delay_max_ms"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "engager")
	v.SetDefault("logger.log_file", "engager.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "magenta")
	v.SetDefault("logger.colors.info", "blue")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "red")

	// Browser
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_data_dir", "~/.engager/profile")
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.timezone", "America/New_York")
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.navigation_timeout", "90s")

	// LLM
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.fallback_model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 220)
	v.SetDefault("llm.temperature", 0.8)
	v.SetDefault("llm.request_timeout", "45s")
	v.SetDefault("llm.requests_per_minute", 10)

	// Session
	v.SetDefault("session.target", 20)
	v.SetDefault("session.query", "min_faves:500 lang:en")
	v.SetDefault("session.min_delay", "180s")
	v.SetDefault("session.max_delay", "300s")
	v.SetDefault("session.failure_delay_min", "30s")
	v.SetDefault("session.failure_delay_max", "60s")
	v.SetDefault("session.max_consecutive_failures", 5)
	v.SetDefault("session.stall_timeout", "5m")
	v.SetDefault("session.quiet_hours.enabled", false)
	v.SetDefault("session.quiet_hours.start_hour", 1)
	v.SetDefault("session.quiet_hours.end_hour", 6)
	v.SetDefault("session.reply.language", "english")
	v.SetDefault("session.reply.tone", "neutral")

	// Storage
	v.SetDefault("storage.path", "~/.engager/engager.db")

	// Humanize
	v.SetDefault("humanize.enabled", true)
	v.SetDefault("humanize.pause_min_ms", 350)
	v.SetDefault("humanize.pause_max_ms", 1400)
	v.SetDefault("humanize.key_delay_min_ms", 40)
	v.SetDefault("humanize.key_delay_max_ms", 140)
}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Session.Target <= 0 {
		return fmt.Errorf("session.target must be positive, got %d", c.Session.Target)
	}
	if c.Session.MinDelay <= 0 || c.Session.MaxDelay < c.Session.MinDelay {
		return fmt.Errorf("session delay window invalid: min=%s max=%s", c.Session.MinDelay, c.Session.MaxDelay)
	}
	if c.Session.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("session.max_consecutive_failures must be positive")
	}
	if c.Session.QuietHours.Enabled {
		qh := c.Session.QuietHours
		if qh.StartHour < 0 || qh.StartHour > 23 || qh.EndHour < 0 || qh.EndHour > 23 {
			return fmt.Errorf("quiet hours out of range: start=%d end=%d", qh.StartHour, qh.EndHour)
		}
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	return nil
}

// ExpandPaths resolves "~" in configured filesystem paths.
func (c *Config) ExpandPaths() error {
	var err error
	if c.Storage.Path, err = homedir.Expand(c.Storage.Path); err != nil {
		return fmt.Errorf("expanding storage path: %w", err)
	}
	if c.Browser.UserDataDir != "" {
		if c.Browser.UserDataDir, err = homedir.Expand(c.Browser.UserDataDir); err != nil {
			return fmt.Errorf("expanding browser profile path: %w", err)
		}
	}
	if c.Logger.LogFile != "" {
		if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
			return fmt.Errorf("expanding log file path: %w", err)
		}
	}
	return nil
}
