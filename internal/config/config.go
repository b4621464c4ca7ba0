// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/checkout-navigator/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Navigator() NavigatorConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserExecPath(string)

	// Navigator Setters
	SetNavigatorRunDeadline(time.Duration)
	SetNavigatorSite(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	NavigatorCfg NavigatorConfig `mapstructure:"navigator" yaml:"navigator"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Navigator() NavigatorConfig { return c.NavigatorCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserExecPath(p string)  { c.BrowserCfg.ExecPath = p }
func (c *Config) SetNavigatorSite(site string) { c.NavigatorCfg.Site = site }
func (c *Config) SetNavigatorRunDeadline(d time.Duration) {
	c.NavigatorCfg.RunDeadline = d
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser process launched per run.
type BrowserConfig struct {
	Headless     bool            `mapstructure:"headless" yaml:"headless"`
	ExecPath     string          `mapstructure:"exec_path" yaml:"exec_path"`
	DisableCache bool            `mapstructure:"disable_cache" yaml:"disable_cache"`
	Args         []string        `mapstructure:"args" yaml:"args"`
	Persona      schemas.Persona `mapstructure:"persona" yaml:"persona"`
	Humanoid     HumanoidConfig  `mapstructure:"humanoid" yaml:"humanoid"`
	// LaunchTimeout bounds how long the first CDP round trip may take before the launch is failed.
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// NavigatorConfig tunes the checkout state machine.
type NavigatorConfig struct {
	// Site is the target host, e.g. "www.booking.com".
	Site     string `mapstructure:"site" yaml:"site"`
	Currency string `mapstructure:"currency" yaml:"currency"`

	RunDeadline       time.Duration `mapstructure:"run_deadline" yaml:"run_deadline"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	// SettleDelay is how long to wait after a click before comparing URLs.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`

	NavigationAttempts int `mapstructure:"navigation_attempts" yaml:"navigation_attempts"`
	// MaxCandidates bounds how many search results are considered and clicked.
	MaxCandidates int `mapstructure:"max_candidates" yaml:"max_candidates"`

	// HandoffOnDegraded leaves a partially progressed page open for the user.
	HandoffOnDegraded bool `mapstructure:"handoff_on_degraded" yaml:"handoff_on_degraded"`
}

// NewDefaultConfig returns a configuration populated from SetDefaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("config: failed to unmarshal defaults: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "navigator")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.launch_timeout", "20s")
	v.SetDefault("browser.persona.user_agent", schemas.DefaultPersona.UserAgent)
	v.SetDefault("browser.persona.platform", schemas.DefaultPersona.Platform)
	v.SetDefault("browser.persona.languages", schemas.DefaultPersona.Languages)
	v.SetDefault("browser.persona.width", schemas.DefaultPersona.Width)
	v.SetDefault("browser.persona.height", schemas.DefaultPersona.Height)
	v.SetDefault("browser.persona.timezone", schemas.DefaultPersona.Timezone)
	v.SetDefault("browser.persona.locale", schemas.DefaultPersona.Locale)
	setHumanoidDefaults(v)

	// -- Navigator --
	v.SetDefault("navigator.site", "www.booking.com")
	v.SetDefault("navigator.currency", "USD")
	v.SetDefault("navigator.run_deadline", "30s")
	v.SetDefault("navigator.navigation_timeout", "15s")
	v.SetDefault("navigator.element_timeout", "10s")
	v.SetDefault("navigator.settle_delay", "1500ms")
	v.SetDefault("navigator.navigation_attempts", 2)
	v.SetDefault("navigator.max_candidates", 5)
	v.SetDefault("navigator.handoff_on_degraded", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Deployment switches that are commonly set without a config file.
	v.BindEnv("browser.headless", "NAVIGATOR_BROWSER_HEADLESS")
	v.BindEnv("browser.exec_path", "NAVIGATOR_CHROME_PATH")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LoggerCfg.LogFile != "" {
		expanded, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("invalid logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = expanded
	}
	if cfg.BrowserCfg.ExecPath != "" {
		expanded, err := homedir.Expand(cfg.BrowserCfg.ExecPath)
		if err != nil {
			return nil, fmt.Errorf("invalid browser.exec_path: %w", err)
		}
		cfg.BrowserCfg.ExecPath = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.NavigatorCfg.Validate(); err != nil {
		return fmt.Errorf("navigator configuration invalid: %w", err)
	}
	if err := c.BrowserCfg.Humanoid.Validate(); err != nil {
		return fmt.Errorf("browser.humanoid configuration invalid: %w", err)
	}
	if c.BrowserCfg.Persona.Width <= 0 || c.BrowserCfg.Persona.Height <= 0 {
		return fmt.Errorf("browser.persona viewport must have positive width and height")
	}
	return nil
}

// Validate checks the navigator settings.
func (n *NavigatorConfig) Validate() error {
	site := strings.TrimSpace(n.Site)
	if site == "" {
		return fmt.Errorf("navigator.site is required")
	}
	if strings.Contains(site, "/") {
		return fmt.Errorf("navigator.site must be a bare host, got %q", site)
	}
	if _, err := url.Parse("https://" + site); err != nil {
		return fmt.Errorf("navigator.site is not a valid host: %w", err)
	}
	if len(n.Currency) != 3 {
		return fmt.Errorf("navigator.currency must be a 3-letter ISO code")
	}
	if n.RunDeadline <= 0 {
		return fmt.Errorf("navigator.run_deadline must be a positive duration")
	}
	if n.NavigationTimeout <= 0 || n.ElementTimeout <= 0 {
		return fmt.Errorf("navigator timeouts must be positive durations")
	}
	if n.NavigationAttempts < 1 {
		return fmt.Errorf("navigator.navigation_attempts must be at least 1")
	}
	if n.MaxCandidates < 1 {
		return fmt.Errorf("navigator.max_candidates must be at least 1")
	}
	if n.SettleDelay < 0 {
		return fmt.Errorf("navigator.settle_delay must not be negative")
	}
	return nil
}
