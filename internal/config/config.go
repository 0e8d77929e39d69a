
// Package config loads the chatbot's settings from config.yml, .env files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"support-chatbot/internal/crawler"
	"support-chatbot/internal/llm"
	"support-chatbot/pkg/logger"
)

type Config struct {
	Server     ServerConfig  `yaml:"server"`
	Site       SiteConfig    `yaml:"site"`
	Refresh    RefreshConfig `yaml:"refresh"`
	Completion llm.Config    `yaml:"completion"`
	Logging    logger.Config `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	Port         int           `yaml:"port" env:"PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	Debug        bool          `yaml:"debug" env:"APP_DEBUG"`
	StaticDir    string        `yaml:"static_dir" env:"SERVER_STATIC_DIR"`
}

// Address returns host:port for the HTTP listener.
func (c ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// SiteConfig describes the pages scraped on each refresh. PagesFile, when
// set, replaces Paths with a CSV or NDJSON list.
type SiteConfig struct {
	BaseURL      string        `yaml:"base_url" env:"SITE_BASE_URL"`
	Paths        []string      `yaml:"paths" env:"SITE_PATHS"`
	PagesFile    string        `yaml:"pages_file" env:"SITE_PAGES_FILE"`
	UserAgent    string        `yaml:"user_agent" env:"SITE_USER_AGENT"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"SITE_FETCH_TIMEOUT"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"SITE_MAX_BODY_BYTES"`
}

type RefreshConfig struct {
	OnStartup bool          `yaml:"on_startup" env:"REFRESH_ON_STARTUP"`
	Schedule  string        `yaml:"schedule" env:"REFRESH_SCHEDULE"`
	Timeout   time.Duration `yaml:"timeout" env:"REFRESH_TIMEOUT"`
}

// DefaultPaths are the sections scraped when no page list is configured.
var DefaultPaths = []string{
	"/",
	"/search/products",
	"/search/recipes",
	"/help",
	"/about",
	"/sustainability",
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Site: SiteConfig{
			BaseURL:      "https://www.madewithnestle.ca",
			Paths:        append([]string(nil), DefaultPaths...),
			UserAgent:    crawler.DefaultUserAgent,
			FetchTimeout: 10 * time.Second,
			MaxBodyBytes: 5 << 20,
		},
		Refresh: RefreshConfig{
			OnStartup: true,
			Timeout:   2 * time.Minute,
		},
		Completion: llm.Config{
			Provider:    llm.ProviderOpenAI,
			BaseURL:     llm.DefaultBaseURL,
			Model:       llm.DefaultModel,
			MaxTokens:   llm.DefaultMaxTokens,
			Temperature: llm.DefaultTemperature,
			Timeout:     llm.DefaultTimeout,
		},
		Logging: logger.Config{Level: "info"},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, msg string) {
		if !ok {
			errs = append(errs, &ValidationError{Field: field, Message: msg})
		}
	}

	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server.port", "must be between 1 and 65535")
	u, err := url.Parse(c.Site.BaseURL)
	check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "", "site.base_url", "must be an absolute http(s) URL")
	check(len(c.Site.Paths) > 0 || c.Site.PagesFile != "", "site.paths", "needs at least one path or a pages_file")
	check(c.Site.FetchTimeout > 0, "site.fetch_timeout", "must be positive")
	check(c.Site.MaxBodyBytes > 0, "site.max_body_bytes", "must be positive")
	check(c.Refresh.Timeout > 0, "refresh.timeout", "must be positive")
	check(c.Completion.Provider == llm.ProviderOpenAI || c.Completion.Provider == llm.ProviderAnthropic,
		"completion.provider", "must be openai or anthropic")
	check(c.Completion.MaxTokens > 0, "completion.max_tokens", "must be positive")
	check(c.Completion.Temperature >= 0 && c.Completion.Temperature <= 2, "completion.temperature", "must be between 0 and 2")
	check(c.Completion.Timeout > 0, "completion.timeout", "must be positive")
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		check(false, "logging.level", "must be one of: debug, info, warn, error")
	}

	return errors.Join(errs...)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
