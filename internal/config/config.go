package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultAPIURL is the hosted todo API used when TADA_API_URL is not set.
const DefaultAPIURL = "https://rag-pipeline-91ct.vercel.app"

// durationSeconds parses env as time.Duration: "10s", "5m" or bare number = seconds.
type durationSeconds time.Duration

func (d *durationSeconds) SetValue(data string) error {
	v, err := parseDuration(data)
	if err != nil {
		return err
	}
	*d = durationSeconds(v)
	return nil
}

func (d durationSeconds) Duration() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be like 10s, 5m or a number of seconds: %w", err)
	}
	return d, nil
}

type Config struct {
	API APIConfig
	UI  UIConfig
	Log LogConfig
	Dev DevConfig
}

type APIConfig struct {
	URL     string          `env:"TADA_API_URL" env-default:"https://rag-pipeline-91ct.vercel.app"`
	Timeout durationSeconds `env:"TADA_HTTP_TIMEOUT" env-default:"10s"`
}

type UIConfig struct {
	Theme string `env:"TADA_THEME" env-default:"classic"`
}

type LogConfig struct {
	Level string `env:"TADA_LOG_LEVEL" env-default:"info"`
	File  string `env:"TADA_LOG_FILE" env-default:""`
	JSON  bool   `env:"TADA_LOG_JSON" env-default:"false"`
}

// DevConfig is only read by todo-devserver.
type DevConfig struct {
	Addr   string `env:"TADA_DEV_ADDR" env-default:"127.0.0.1:8787"`
	DB     string `env:"TADA_DEV_DB" env-default:"tada-dev.db"`
	APIKey string `env:"TADA_DEV_API_KEY" env-default:""`
}

// RequestTimeout is the per-request Gateway timeout.
func (c APIConfig) RequestTimeout() time.Duration { return c.Timeout.Duration() }

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(cfg.API.URL))
	if err != nil {
		return Config{}, fmt.Errorf("TADA_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Config{}, fmt.Errorf("TADA_API_URL: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return Config{}, fmt.Errorf("TADA_API_URL: missing host")
	}
	cfg.API.URL = strings.TrimRight(u.String(), "/")
	if cfg.API.Timeout <= 0 {
		return Config{}, fmt.Errorf("TADA_HTTP_TIMEOUT must be positive")
	}
	return cfg, nil
}
