package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL      string
	SessionPath string
	AppEnv      string
	LogLevel    string

	ChatPollInterval      time.Duration
	DashboardPollInterval time.Duration
	HTTPTimeout           time.Duration
	RetryDelay            time.Duration

	// DevServerAddr — адрес встроенного dev-сервера (команда devserver).
	DevServerAddr string
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		APIURL:        strings.TrimRight(firstEnv("HELPDESK_API_URL", "API_URL", "http://localhost:8000"), "/"),
		SessionPath:   getEnv("HELPDESK_SESSION_PATH", defaultSessionPath()),
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevServerAddr: getEnv("DEVSERVER_ADDR", "127.0.0.1:8000"),
	}
	var err error
	if cfg.ChatPollInterval, err = getDuration("CHAT_POLL_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.DashboardPollInterval, err = getDuration("DASHBOARD_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getDuration("RETRY_DELAY", 250*time.Millisecond); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: HELPDESK_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	if c.AppEnv == "production" && u.Scheme != "https" {
		return errors.New("config: in production HELPDESK_API_URL must use https")
	}
	if c.ChatPollInterval <= 0 || c.DashboardPollInterval <= 0 {
		return errors.New("config: poll intervals must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: HTTP_TIMEOUT must be positive")
	}
	if c.RetryDelay < 0 {
		return errors.New("config: RETRY_DELAY must not be negative")
	}
	if c.SessionPath == "" {
		return errors.New("config: HELPDESK_SESSION_PATH is required")
	}
	return nil
}

// SlogLevel parses LOG_LEVEL; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func defaultSessionPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "helpdesk", "session.db")
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
