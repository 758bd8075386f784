package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/waabox/ghlconnect/internal/domain"
)

// DefaultAPIURL is the backend used when neither the config file nor the environment sets one.
const DefaultAPIURL = "https://backend.phonxai.com/api"

const (
	defaultListenAddr     = ":3000"
	defaultCallbackPath   = "/oauth/callback"
	defaultRequestTimeout = 15 * time.Second
	defaultHandlerTTL     = 10 * time.Minute
	defaultLogLevel       = "info"
)

// BackendConfig holds the integration backend settings.
type BackendConfig struct {
	APIURL         string   `toml:"api_url"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// CallbackConfig holds the OAuth callback server settings.
type CallbackConfig struct {
	ListenAddr string `toml:"listen_addr"`
	Path       string `toml:"path"`
	// PublicOrigin is the scheme://host the provider redirects to. When empty the
	// origin is taken from each incoming request.
	PublicOrigin string `toml:"public_origin"`
	// Exchange disables the token exchange when set to false; the page then only
	// displays the received parameters.
	Exchange   *bool    `toml:"exchange"`
	HandlerTTL Duration `toml:"handler_ttl"`
}

// CalendarConfig holds the date range queried by the tester.
type CalendarConfig struct {
	StartDate string `toml:"start_date"`
	EndDate   string `toml:"end_date"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	// File is where the tester writes logs, since the terminal belongs to the UI.
	File string `toml:"file"`
}

// Config holds all ghlconnect configuration.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Callback CallbackConfig `toml:"callback"`
	Calendar CalendarConfig `toml:"calendar"`
	Log      LogConfig      `toml:"log"`
}

// Duration is a time.Duration that decodes from TOML strings like "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// envOverrides holds raw environment values. Only non-empty values override the file.
type envOverrides struct {
	APIURL       string `env:"GHL_API_URL"`
	LegacyAPIURL string `env:"NEXT_PUBLIC_API_URL"`
	ListenAddr   string `env:"GHL_CALLBACK_ADDR"`
	PublicOrigin string `env:"GHL_PUBLIC_ORIGIN"`
	LogFile      string `env:"GHL_LOG_FILE"`
	LogLevel     string `env:"GHL_LOG_LEVEL"`
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns the defaults without error.
// Environment variables always take precedence over file values:
//   - GHL_API_URL (or NEXT_PUBLIC_API_URL) overrides backend.api_url
//   - GHL_CALLBACK_ADDR overrides callback.listen_addr
//   - GHL_PUBLIC_ORIGIN overrides callback.public_origin
//   - GHL_LOG_FILE and GHL_LOG_LEVEL override log.file and log.level
func LoadFrom(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	start, err := time.Parse(domain.DateLayout, cfg.Calendar.StartDate)
	if err != nil {
		return fmt.Errorf("calendar.start_date: %w", err)
	}
	end, err := time.Parse(domain.DateLayout, cfg.Calendar.EndDate)
	if err != nil {
		return fmt.Errorf("calendar.end_date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("calendar.end_date %s is before start_date %s", cfg.Calendar.EndDate, cfg.Calendar.StartDate)
	}
	return nil
}

// DefaultConfigPath returns the default path for the ghlconnect config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ghlconnect", "config.toml")
}

// DefaultLogPath returns the default tester log file path.
func DefaultLogPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ghlconnect", "ghlconnect.log")
}

func applyEnvOverrides(cfg *Config) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	switch {
	case raw.APIURL != "":
		cfg.Backend.APIURL = raw.APIURL
	case raw.LegacyAPIURL != "":
		cfg.Backend.APIURL = raw.LegacyAPIURL
	}
	if raw.ListenAddr != "" {
		cfg.Callback.ListenAddr = raw.ListenAddr
	}
	if raw.PublicOrigin != "" {
		cfg.Callback.PublicOrigin = raw.PublicOrigin
	}
	if raw.LogFile != "" {
		cfg.Log.File = raw.LogFile
	}
	if raw.LogLevel != "" {
		cfg.Log.Level = raw.LogLevel
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.APIURL == "" {
		cfg.Backend.APIURL = DefaultAPIURL
	}
	cfg.Backend.APIURL = strings.TrimRight(cfg.Backend.APIURL, "/")
	if cfg.Backend.RequestTimeout.Duration <= 0 {
		cfg.Backend.RequestTimeout.Duration = defaultRequestTimeout
	}
	if cfg.Callback.ListenAddr == "" {
		cfg.Callback.ListenAddr = defaultListenAddr
	}
	if cfg.Callback.Path == "" {
		cfg.Callback.Path = defaultCallbackPath
	}
	if !strings.HasPrefix(cfg.Callback.Path, "/") {
		cfg.Callback.Path = "/" + cfg.Callback.Path
	}
	cfg.Callback.PublicOrigin = strings.TrimRight(cfg.Callback.PublicOrigin, "/")
	if cfg.Callback.HandlerTTL.Duration <= 0 {
		cfg.Callback.HandlerTTL.Duration = defaultHandlerTTL
	}
	if cfg.Calendar.StartDate == "" {
		cfg.Calendar.StartDate = domain.DefaultDateRange.Start
	}
	if cfg.Calendar.EndDate == "" {
		cfg.Calendar.EndDate = domain.DefaultDateRange.End
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogPath()
	}
}

// ExchangeEnabled reports whether the callback page redeems the code.
// The exchange is on unless the config file explicitly disables it.
func (c CallbackConfig) ExchangeEnabled() bool {
	return c.Exchange == nil || *c.Exchange
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
