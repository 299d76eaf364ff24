// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOMSCRIPT_BROWSER_PROFILE.
const EnvPrefix = "DOMSCRIPT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Script() ScriptConfig

	// Browser Setters
	SetBrowserProfile(string)
	SetBrowserDefaultCharset(string)
	SetBrowserExecuteScripts(bool)

	// Network Setters
	SetNetworkTimeout(d time.Duration)
	SetNetworkIgnoreTLSErrors(bool)
	SetNetworkUserAgent(string)

	// Script Setters
	SetScriptTimeout(d time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
	ScriptCfg  ScriptConfig  `mapstructure:"script" yaml:"script"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }
func (c *Config) Script() ScriptConfig   { return c.ScriptCfg }

// --- Interface Method Implementations (Setters) ---

// Browser Setters
func (c *Config) SetBrowserProfile(p string)        { c.BrowserCfg.Profile = p }
func (c *Config) SetBrowserDefaultCharset(s string) { c.BrowserCfg.DefaultCharset = s }
func (c *Config) SetBrowserExecuteScripts(b bool)   { c.BrowserCfg.ExecuteScripts = b }

// Network Setters
func (c *Config) SetNetworkTimeout(d time.Duration) { c.NetworkCfg.Timeout = d }
func (c *Config) SetNetworkIgnoreTLSErrors(b bool)  { c.NetworkCfg.IgnoreTLSErrors = b }
func (c *Config) SetNetworkUserAgent(ua string)     { c.NetworkCfg.UserAgent = ua }

// Script Setters
func (c *Config) SetScriptTimeout(d time.Duration) { c.ScriptCfg.Timeout = d }

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

// ColorConfig names the console color per level. Fatal also covers the
// panic levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects the emulated browser and how pages are prepared.
type BrowserConfig struct {
	// Profile is a known profile key such as "chrome-120".
	Profile string `mapstructure:"profile" yaml:"profile"`
	// DefaultCharset applies to documents with no other charset source.
	DefaultCharset string `mapstructure:"default_charset" yaml:"default_charset"`
	// CatalogPath replaces the embedded class catalog when set.
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`
	// ExecuteScripts runs the page's own classic scripts before user scripts.
	ExecuteScripts bool `mapstructure:"execute_scripts" yaml:"execute_scripts"`
	// Concurrency bounds parallel subresource fetches.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// ProxyConfig defines the configuration for an outbound proxy.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// NetworkConfig tunes the network behavior of the application.
type NetworkConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	MaxRedirects      int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	// UserAgent overrides the profile's user agent when set.
	UserAgent string      `mapstructure:"user_agent" yaml:"user_agent"`
	Proxy     ProxyConfig `mapstructure:"proxy" yaml:"proxy"`
}

// ScriptConfig bounds script execution.
type ScriptConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "domscript")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.profile", "chrome-120")
	v.SetDefault("browser.default_charset", "")
	v.SetDefault("browser.catalog_path", "")
	v.SetDefault("browser.execute_scripts", false)
	v.SetDefault("browser.concurrency", 4)

	// -- Network --
	v.SetDefault("network.timeout", "120s")
	v.SetDefault("network.dial_timeout", "30s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.max_redirects", 20)
	v.SetDefault("network.requests_per_second", 0)
	v.SetDefault("network.burst", 1)
	v.SetDefault("network.max_body_bytes", 32<<20)
	v.SetDefault("network.user_agent", "")
	v.SetDefault("network.proxy.enabled", false)

	// -- Script --
	v.SetDefault("script.timeout", "30s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
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
	if c.BrowserCfg.Profile == "" {
		return fmt.Errorf("browser.profile is a required configuration field")
	}
	if c.BrowserCfg.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if err := c.NetworkCfg.Validate(); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}
	if c.ScriptCfg.Timeout <= 0 {
		return fmt.Errorf("script.timeout must be a positive duration")
	}
	return nil
}

// Validate checks the network settings.
func (n *NetworkConfig) Validate() error {
	if n.Timeout < 0 || n.DialTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if n.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must not be negative")
	}
	if n.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if n.RequestsPerSecond > 0 && n.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate limiting is enabled")
	}
	if n.Proxy.Enabled {
		u, err := url.Parse(n.Proxy.Address)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("proxy.address %q is not a valid proxy URL", n.Proxy.Address)
		}
	}
	return nil
}
