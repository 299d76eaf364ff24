// File: internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "domscript", cfg.Logger().ServiceName)
	assert.Equal(t, "green", cfg.Logger().Colors.Info)
	assert.Equal(t, "chrome-120", cfg.Browser().Profile)
	assert.Equal(t, 4, cfg.Browser().Concurrency)
	assert.False(t, cfg.Browser().ExecuteScripts)
	assert.Equal(t, 120*time.Second, cfg.Network().Timeout)
	assert.Equal(t, 20, cfg.Network().MaxRedirects)
	assert.Equal(t, int64(32<<20), cfg.Network().MaxBodyBytes)
	assert.Equal(t, 30*time.Second, cfg.Script().Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetBrowserProfile("firefox-115")
	iface.SetBrowserDefaultCharset("windows-1252")
	iface.SetBrowserExecuteScripts(true)
	iface.SetNetworkTimeout(5 * time.Second)
	iface.SetNetworkIgnoreTLSErrors(true)
	iface.SetNetworkUserAgent("custom/1.0")
	iface.SetScriptTimeout(time.Second)

	assert.Equal(t, "firefox-115", iface.Browser().Profile)
	assert.Equal(t, "windows-1252", iface.Browser().DefaultCharset)
	assert.True(t, iface.Browser().ExecuteScripts)
	assert.Equal(t, 5*time.Second, iface.Network().Timeout)
	assert.True(t, iface.Network().IgnoreTLSErrors)
	assert.Equal(t, "custom/1.0", iface.Network().UserAgent)
	assert.Equal(t, time.Second, iface.Script().Timeout)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"MissingProfile", func(c *Config) { c.BrowserCfg.Profile = "" }, "browser.profile is a required configuration field"},
		{"ZeroConcurrency", func(c *Config) { c.BrowserCfg.Concurrency = 0 }, "browser.concurrency must be a positive integer"},
		{"NegativeTimeout", func(c *Config) { c.NetworkCfg.Timeout = -time.Second }, "timeouts must not be negative"},
		{"NegativeRedirects", func(c *Config) { c.NetworkCfg.MaxRedirects = -1 }, "max_redirects must not be negative"},
		{"NegativeRate", func(c *Config) { c.NetworkCfg.RequestsPerSecond = -2 }, "requests_per_second must not be negative"},
		{"RateWithoutBurst", func(c *Config) {
			c.NetworkCfg.RequestsPerSecond = 5
			c.NetworkCfg.Burst = 0
		}, "burst must be positive"},
		{"BadProxy", func(c *Config) {
			c.NetworkCfg.Proxy = ProxyConfig{Enabled: true, Address: "not a url"}
		}, "is not a valid proxy URL"},
		{"ZeroScriptTimeout", func(c *Config) { c.ScriptCfg.Timeout = 0 }, "script.timeout must be a positive duration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("DisabledProxyIgnored", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.NetworkCfg.Proxy = ProxyConfig{Enabled: false, Address: "::"}
		assert.NoError(t, cfg.Validate())

		cfg.NetworkCfg.Proxy = ProxyConfig{Enabled: true, Address: "http://127.0.0.1:8080"}
		assert.NoError(t, cfg.Validate())
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
logger:
  level: debug
  log_file: /var/log/domscript.log
browser:
  profile: firefox-115
  default_charset: windows-1252
network:
  timeout: 5s
  requests_per_second: 2.5
  burst: 3
script:
  timeout: 1500ms
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logger().Level)
		assert.Equal(t, "/var/log/domscript.log", cfg.Logger().LogFile)
		assert.Equal(t, "firefox-115", cfg.Browser().Profile)
		assert.Equal(t, "windows-1252", cfg.Browser().DefaultCharset)
		assert.Equal(t, 5*time.Second, cfg.Network().Timeout)
		assert.Equal(t, 2.5, cfg.Network().RequestsPerSecond)
		assert.Equal(t, 3, cfg.Network().Burst)
		assert.Equal(t, 1500*time.Millisecond, cfg.Script().Timeout)
		// Defaults survive alongside file values.
		assert.Equal(t, 20, cfg.Network().MaxRedirects)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("browser.concurrency", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Nil(t, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "browser.concurrency must be a positive integer")
	})

	t.Run("Environment Variable Override", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		BindEnv(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString("browser:\n  profile: firefox-115\n")))

		t.Setenv("DOMSCRIPT_BROWSER_PROFILE", "chrome-120")
		t.Setenv("DOMSCRIPT_SCRIPT_TIMEOUT", "2s")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "chrome-120", cfg.Browser().Profile)
		assert.Equal(t, 2*time.Second, cfg.Script().Timeout)
	})
}

func TestLoad(t *testing.T) {
	t.Run("ExplicitFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("network:\n  user_agent: tester/2.0\n"), 0o600))

		cfg, err := Load(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, "tester/2.0", cfg.Network().UserAgent)
	})

	t.Run("ExplicitFileMissing", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("DiscoveredInWorkingDirectory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		t.Setenv("HOME", dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "domscript.yaml"), []byte("browser:\n  concurrency: 9\n"), 0o600))

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Browser().Concurrency)
	})

	t.Run("NothingFoundUsesDefaults", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		t.Setenv("HOME", dir)

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "chrome-120", cfg.Browser().Profile)
	})
}
