// Package config loads lobby-downloader settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultURL is the lobby page opened when neither LOBBY_URLS nor LOBBY_URL is set.
	DefaultURL = "https://eternalesports.club/lobbies/3/19882b"
	// DefaultSelector matches the lobby page's export button.
	DefaultSelector = "button.MuiButton-outlined"
)

// Config holds all runtime settings.
type Config struct {
	// URLs are the lobby pages processed in order within one browser session.
	URLs         []string
	DownloadDir  string
	Selector     string
	ExecPath     string
	Headless     bool
	SaveSnapshot bool

	ReadyTimeout    time.Duration
	LocateTimeout   time.Duration
	ClickTimeout    time.Duration
	DownloadTimeout time.Duration
	// Pause is the wait between two lobbies.
	Pause time.Duration
}

// Default returns the built-in configuration.
// Downloads land in the current working directory.
func Default() Config {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return Config{
		URLs:            []string{DefaultURL},
		DownloadDir:     dir,
		Selector:        DefaultSelector,
		Headless:        true,
		ReadyTimeout:    30 * time.Second,
		LocateTimeout:   15 * time.Second,
		ClickTimeout:    20 * time.Second,
		DownloadTimeout: 60 * time.Second,
		Pause:           2 * time.Second,
	}
}

// Load reads configuration from environment variables on top of Default.
func Load() (Config, error) {
	cfg := Default()

	if list := SplitURLs(os.Getenv("LOBBY_URLS")); len(list) > 0 {
		cfg.URLs = list
	} else if single := envString("LOBBY_URL", ""); single != "" {
		cfg.URLs = []string{single}
	}
	cfg.DownloadDir = envString("DOWNLOAD_DIR", cfg.DownloadDir)
	cfg.Selector = envString("BUTTON_SELECTOR", cfg.Selector)
	cfg.ExecPath = envString("BROWSER_EXEC", cfg.ExecPath)

	var err error
	if cfg.Headless, err = envBool("HEADLESS", cfg.Headless); err != nil {
		return Config{}, err
	}
	if cfg.SaveSnapshot, err = envBool("SAVE_SNAPSHOT", cfg.SaveSnapshot); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"READY_TIMEOUT", &cfg.ReadyTimeout},
		{"LOCATE_TIMEOUT", &cfg.LocateTimeout},
		{"CLICK_TIMEOUT", &cfg.ClickTimeout},
		{"DOWNLOAD_TIMEOUT", &cfg.DownloadTimeout},
		{"LOBBY_PAUSE", &cfg.Pause},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, *d.dst); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("no lobby URL configured")
	}
	for _, u := range c.URLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("target URL is empty")
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "file://") {
			return fmt.Errorf("invalid target URL %q: expected http, https or file scheme", u)
		}
	}
	if strings.TrimSpace(c.Selector) == "" {
		return fmt.Errorf("button selector is empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory is empty")
	}

	timeouts := map[string]time.Duration{
		"ready":    c.ReadyTimeout,
		"locate":   c.LocateTimeout,
		"click":    c.ClickTimeout,
		"download": c.DownloadTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s timeout must be positive, got %v", name, d)
		}
	}
	if c.Pause < 0 {
		return fmt.Errorf("lobby pause must not be negative, got %v", c.Pause)
	}
	return nil
}

// SplitURLs splits a comma, space or newline separated list of URLs.
func SplitURLs(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}
