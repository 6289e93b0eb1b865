package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/loykin/focuspilot/internal/assess"
	"github.com/loykin/focuspilot/internal/env"
	"github.com/loykin/focuspilot/internal/logger"
	"github.com/loykin/focuspilot/internal/metrics"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override,
// e.g. FOCUSPILOT_FOCUS_DISTRACTION_SWITCH_THRESHOLD.
const EnvPrefix = "FOCUSPILOT"

// Fallback kinds for reminders the primary channel could not deliver.
const (
	FallbackMailbox = "mailbox"
	FallbackWebhook = "webhook"
	FallbackNone    = "none"
)

// Focus holds the user-facing tuning knobs. The JSON names match the
// object the settings UI persists under the "config" key.
type Focus struct {
	IdleThresholdSeconds       int      `json:"idleThresholdSeconds" mapstructure:"idle_threshold_seconds" yaml:"idleThresholdSeconds"`
	DistractionSwitchThreshold int      `json:"distractionSwitchThreshold" mapstructure:"distraction_switch_threshold" yaml:"distractionSwitchThreshold"`
	ProductiveDomains          []string `json:"productiveDomains" mapstructure:"productive_domains" yaml:"productiveDomains"`
	ReminderCooldownMs         int64    `json:"reminderCooldownMs" mapstructure:"reminder_cooldown_ms" yaml:"reminderCooldownMs"`
}

// DefaultFocus returns the built-in focus settings.
func DefaultFocus() Focus {
	return Focus{
		IdleThresholdSeconds:       60,
		DistractionSwitchThreshold: 3,
		ProductiveDomains:          []string{"github.com", "wikipedia.org", "stackoverflow.com"},
		ReminderCooldownMs:         60000,
	}
}

// Cooldown returns the reminder cooldown as a duration.
func (f Focus) Cooldown() time.Duration {
	return time.Duration(f.ReminderCooldownMs) * time.Millisecond
}

func (f Focus) Validate() error {
	if f.DistractionSwitchThreshold < 1 {
		return fmt.Errorf("distractionSwitchThreshold must be >= 1, got %d", f.DistractionSwitchThreshold)
	}
	if f.ReminderCooldownMs < 0 {
		return fmt.Errorf("reminderCooldownMs must be >= 0, got %d", f.ReminderCooldownMs)
	}
	if f.IdleThresholdSeconds < 0 {
		return fmt.Errorf("idleThresholdSeconds must be >= 0, got %d", f.IdleThresholdSeconds)
	}
	return nil
}

// MergeJSON overlays a stored settings object on f. Fields absent from the
// object keep their current value. The result is validated.
func (f Focus) MergeJSON(b []byte) (Focus, error) {
	out := f
	out.ProductiveDomains = append([]string(nil), f.ProductiveDomains...)
	if len(strings.TrimSpace(string(b))) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return f, fmt.Errorf("decode stored config: %w", err)
	}
	if err := out.Validate(); err != nil {
		return f, err
	}
	return out, nil
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type ServerConfig struct {
	Listen   string    `mapstructure:"listen" yaml:"listen"`
	BasePath string    `mapstructure:"base_path" yaml:"base_path"`
	TLS      TLSConfig `mapstructure:"tls" yaml:"tls"`
}

// TLSConfig enables HTTPS on the API server. CertFile/KeyFile win over Dir;
// with Dir and AutoGenerate a self-signed pair is created on first start.
type TLSConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	CertFile     string   `mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile      string   `mapstructure:"key_file" yaml:"key_file,omitempty"`
	Dir          string   `mapstructure:"dir" yaml:"dir,omitempty"`
	AutoGenerate bool     `mapstructure:"auto_generate" yaml:"auto_generate"`
	MinVersion   string   `mapstructure:"min_version" yaml:"min_version,omitempty"`
	MaxVersion   string   `mapstructure:"max_version" yaml:"max_version,omitempty"`
	CommonName   string   `mapstructure:"common_name" yaml:"common_name,omitempty"`
	DNSNames     []string `mapstructure:"dns_names" yaml:"dns_names,omitempty"`
	IPAddresses  []string `mapstructure:"ip_addresses" yaml:"ip_addresses,omitempty"`
	ValidDays    int      `mapstructure:"valid_days" yaml:"valid_days,omitempty"`
}

type NotifyConfig struct {
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout" yaml:"dispatch_timeout"`
	Fallback        string        `mapstructure:"fallback" yaml:"fallback"`
	WebhookURL      string        `mapstructure:"webhook_url" yaml:"webhook_url,omitempty"`
	MailboxSize     int           `mapstructure:"mailbox_size" yaml:"mailbox_size"`
}

// MetricsConfig enables Prometheus metrics. With Listen empty the metrics
// are served by the API server at /metrics.
type MetricsConfig struct {
	Enabled bool               `mapstructure:"enabled" yaml:"enabled"`
	Listen  string             `mapstructure:"listen" yaml:"listen,omitempty"`
	Self    metrics.SelfConfig `mapstructure:"self" yaml:"self"`
}

// UIConfig points at the dashboard and settings pages opened by the
// OpenDashboard and OpenSettings commands.
type UIConfig struct {
	Dashboard string `mapstructure:"dashboard" yaml:"dashboard"`
	Settings  string `mapstructure:"settings" yaml:"settings"`
}

// Config is the daemon configuration file.
type Config struct {
	EnvFiles         []string      `mapstructure:"env_files" yaml:"env_files,omitempty"`
	Focus            Focus         `mapstructure:"focus" yaml:"focus"`
	AssessInterval   string        `mapstructure:"assess_interval" yaml:"assess_interval"`
	Store            StoreConfig   `mapstructure:"store" yaml:"store"`
	Server           ServerConfig  `mapstructure:"server" yaml:"server"`
	Notify           NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Metrics          MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	UI               UIConfig      `mapstructure:"ui" yaml:"ui"`
	Log              logger.Config `mapstructure:"log" yaml:"log"`
	History          []string      `mapstructure:"history" yaml:"history,omitempty"`
	HistoryQueueSize int           `mapstructure:"history_queue_size" yaml:"history_queue_size"`
}

func setDefaults(v *viper.Viper) {
	f := DefaultFocus()
	v.SetDefault("env_files", []string{})
	v.SetDefault("focus.idle_threshold_seconds", f.IdleThresholdSeconds)
	v.SetDefault("focus.distraction_switch_threshold", f.DistractionSwitchThreshold)
	v.SetDefault("focus.productive_domains", f.ProductiveDomains)
	v.SetDefault("focus.reminder_cooldown_ms", f.ReminderCooldownMs)
	v.SetDefault("assess_interval", assess.DefaultInterval.String())
	v.SetDefault("store.dsn", "sqlite://focuspilot.db")
	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.min_version", "")
	v.SetDefault("server.tls.max_version", "")
	v.SetDefault("notify.dispatch_timeout", "2s")
	v.SetDefault("notify.fallback", FallbackMailbox)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.mailbox_size", 8)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.self.enabled", false)
	v.SetDefault("metrics.self.interval", "15s")
	v.SetDefault("ui.dashboard", "http://127.0.0.1:8787/ui/dashboard")
	v.SetDefault("ui.settings", "http://127.0.0.1:8787/ui/settings")
	v.SetDefault("log.slog.level", logger.LevelInfo)
	v.SetDefault("log.slog.format", logger.FormatText)
	v.SetDefault("log.slog.color", false)
	v.SetDefault("log.slog.timestamps", true)
	v.SetDefault("log.slog.source", false)
	v.SetDefault("log.file.dir", "")
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("history", []string{})
	v.SetDefault("history_queue_size", 256)
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads path (TOML unless the extension says otherwise), loads any
// env_files it lists, applies FOCUSPILOT_* overrides and validates the
// result. An empty path yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if files := v.GetStringSlice("env_files"); len(files) > 0 {
		resolved := make([]string, 0, len(files))
		for _, f := range files {
			if path != "" && !filepath.IsAbs(f) {
				f = filepath.Join(filepath.Dir(path), f)
			}
			resolved = append(resolved, filepath.Clean(f))
		}
		// existing environment variables win over file entries
		if err := godotenv.Load(resolved...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.expandEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}

// expandEnv resolves ${VAR} references in the connection strings, after
// env_files have been loaded.
func (c *Config) expandEnv() {
	c.Store.DSN = env.ExpandOS(c.Store.DSN)
	c.Notify.WebhookURL = env.ExpandOS(c.Notify.WebhookURL)
	c.History = env.ExpandAll(c.History, os.LookupEnv)
}

// Interval returns the parsed assessment interval.
func (c *Config) Interval() (time.Duration, error) {
	return assess.ParseInterval(c.AssessInterval)
}

func (c *Config) Validate() error {
	if err := c.Focus.Validate(); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return errors.New("store.dsn is required")
	}
	if c.Notify.DispatchTimeout <= 0 {
		return fmt.Errorf("notify.dispatch_timeout must be > 0, got %s", c.Notify.DispatchTimeout)
	}
	switch c.Notify.Fallback {
	case FallbackMailbox:
		if c.Notify.MailboxSize <= 0 {
			return fmt.Errorf("notify.mailbox_size must be > 0, got %d", c.Notify.MailboxSize)
		}
	case FallbackWebhook:
		if strings.TrimSpace(c.Notify.WebhookURL) == "" {
			return errors.New("notify.webhook_url is required for webhook fallback")
		}
	case FallbackNone:
	default:
		return fmt.Errorf("unknown notify.fallback %q", c.Notify.Fallback)
	}
	if t := c.Server.TLS; t.Enabled {
		if (t.CertFile == "") != (t.KeyFile == "") {
			return errors.New("server.tls.cert_file and server.tls.key_file must be set together")
		}
		if t.CertFile == "" && t.Dir == "" {
			return errors.New("server.tls requires cert_file/key_file or dir")
		}
	}
	if c.Metrics.Self.Enabled && c.Metrics.Self.Interval <= 0 {
		return fmt.Errorf("metrics.self.interval must be > 0, got %s", c.Metrics.Self.Interval)
	}
	if c.HistoryQueueSize <= 0 {
		return fmt.Errorf("history_queue_size must be > 0, got %d", c.HistoryQueueSize)
	}
	if _, err := logger.ParseLevel(c.Log.Slog.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
