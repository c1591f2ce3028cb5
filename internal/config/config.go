// Package config provides YAML-based configuration for the dashboard and CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment variables mapped onto config keys,
// e.g. EQUIPVIZ_SERVER_PORT for server.port.
const EnvPrefix = "EQUIPVIZ"

// AppConfig is the root configuration structure.
type AppConfig struct {
	Backend   BackendConfig   `yaml:"backend" mapstructure:"backend"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	UI        UIConfig        `yaml:"ui" mapstructure:"ui"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Downloads DownloadsConfig `yaml:"downloads" mapstructure:"downloads"`
	Advanced  AdvancedConfig  `yaml:"advanced" mapstructure:"advanced"`
}

// BackendConfig locates the equipment analysis service.
type BackendConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
	// TimeoutSeconds of zero leaves requests without a client timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port" mapstructure:"port"`
	BindAddress  string `yaml:"bind_address" mapstructure:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors" mapstructure:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins" mapstructure:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds" mapstructure:"idle_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit" mapstructure:"body_limit"`
}

// UIConfig controls presentation.
type UIConfig struct {
	SuccessBannerSeconds int    `yaml:"success_banner_seconds" mapstructure:"success_banner_seconds"`
	TimeLayout           string `yaml:"time_layout" mapstructure:"time_layout"`
	TimeZone             string `yaml:"time_zone" mapstructure:"time_zone"`
	ChartWidth           int    `yaml:"chart_width" mapstructure:"chart_width"`
	ChartHeight          int    `yaml:"chart_height" mapstructure:"chart_height"`
}

// SessionConfig controls browser sessions.
type SessionConfig struct {
	CookieName             string `yaml:"cookie_name" mapstructure:"cookie_name"`
	TimeoutMinutes         int    `yaml:"timeout_minutes" mapstructure:"timeout_minutes"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes" mapstructure:"cleanup_interval_minutes"`
	MaxSessions            int    `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// DownloadsConfig controls where the CLI saves reports.
type DownloadsConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
}

// AdvancedConfig contains logging and tuning options
type AdvancedConfig struct {
	LogLevel                string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat               string `yaml:"log_format" mapstructure:"log_format"`
	EnableRequestLogging    bool   `yaml:"enable_request_logging" mapstructure:"enable_request_logging"`
	WebSocketMaxMessageSize int    `yaml:"websocket_max_message_size_kb" mapstructure:"websocket_max_message_size_kb"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			URL:            "http://localhost:8000",
			TimeoutSeconds: 0,
		},
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   false,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "50M",
		},
		UI: UIConfig{
			SuccessBannerSeconds: 3,
			TimeLayout:           "1/2/2006, 3:04:05 PM",
			TimeZone:             "Local",
			ChartWidth:           960,
			ChartHeight:          400,
		},
		Session: SessionConfig{
			CookieName:             "equipviz_session",
			TimeoutMinutes:         30,
			CleanupIntervalMinutes: 5,
			MaxSessions:            100,
		},
		Downloads: DownloadsConfig{
			Directory: ".",
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			LogFormat:               "console",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from a YAML file, creating it with defaults
// when missing. A .env file next to the config file, or in the working
// directory, is loaded first; variables already set in the environment win.
// Precedence, lowest first: defaults, file, EQUIPVIZ_* variables,
// BACKEND_URL/PORT/LOG_LEVEL.
func LoadConfig(configPath string) (*AppConfig, error) {
	loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env"), ".env")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := DefaultConfig().Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(configPath)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config := &AppConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// newViper returns a viper instance seeded with the defaults.
func newViper() (*viper.Viper, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func loadDotEnv(paths ...string) {
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		_ = godotenv.Load(abs)
	}
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Chemical Equipment Visualizer configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if backend := os.Getenv("BACKEND_URL"); backend != "" {
		c.Backend.URL = backend
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend url %q: must be an absolute http(s) URL", c.Backend.URL)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetBackendURL returns the backend base URL without a trailing slash.
func (c *AppConfig) GetBackendURL() string {
	return strings.TrimRight(c.Backend.URL, "/")
}

// BackendTimeout returns the per-request timeout, zero meaning none.
func (c *AppConfig) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// SuccessBannerDuration returns how long the upload success banner stays up.
func (c *AppConfig) SuccessBannerDuration() time.Duration {
	return time.Duration(c.UI.SuccessBannerSeconds) * time.Second
}

// SessionTimeout returns how long an idle browser session is kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle sessions are swept.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Session.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Session.CleanupIntervalMinutes) * time.Minute
}

// Location returns the time zone upload times are rendered in.
func (c *AppConfig) Location() (*time.Location, error) {
	switch c.UI.TimeZone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.UI.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.UI.TimeZone, err)
	}
	return loc, nil
}

// GetDownloadDir returns the directory reports are saved to.
func (c *AppConfig) GetDownloadDir() string {
	if c.Downloads.Directory == "" {
		return "."
	}
	return c.Downloads.Directory
}
