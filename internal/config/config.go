package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockdash/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockdash.
type Config struct {
	API     API     `yaml:"api"`
	UI      UI      `yaml:"ui"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
	Metrics Metrics `yaml:"metrics"`
}

// API configures the backend client.
type API struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	Retries         int           `yaml:"retries"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	PredictionDays  int           `yaml:"prediction_days"`
}

// UI holds the dashboard defaults. Persisted preferences override them.
type UI struct {
	DefaultPeriod   string        `yaml:"default_period"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	AutoRefresh     bool          `yaml:"auto_refresh"`
	Indicators      []int         `yaml:"indicators"`
}

// Storage holds paths for local persistence.
type Storage struct {
	PrefsPath  string `yaml:"prefs_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Metrics configures the optional Prometheus listener. Empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:         "http://localhost:5000/api",
			Timeout:         30 * time.Second,
			Retries:         3,
			RateLimitPerMin: 600,
			PredictionDays:  30,
		},
		UI: UI{
			DefaultPeriod:   string(domain.DefaultPeriod),
			RefreshInterval: 60 * time.Second,
			Indicators:      []int{5, 20},
		},
		Storage: Storage{
			PrefsPath:  "data/stockdash.db",
			ArchiveDir: "data/archive",
		},
		Logging: Logging{
			Level: "info",
			File:  "logs/stockdash.log",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over the defaults
// and then applies environment variable overrides. A .env file in the
// working directory is loaded first. A missing config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if _, err := domain.ParsePeriod(c.UI.DefaultPeriod); err != nil {
		return fmt.Errorf("ui.default_period: %w", err)
	}
	if c.UI.RefreshInterval < time.Second {
		return fmt.Errorf("ui.refresh_interval %s is below one second", c.UI.RefreshInterval)
	}
	if len(c.UI.Indicators) > domain.MaxIndicators {
		return fmt.Errorf("ui.indicators: at most %d windows", domain.MaxIndicators)
	}
	for _, w := range c.UI.Indicators {
		if !domain.InCatalog(w) {
			return fmt.Errorf("ui.indicators: %d is not a supported window", w)
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKDASH_API_URL"); v != "" {
		cfg.API.BaseURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("STOCKDASH_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}

	if v := os.Getenv("STOCKDASH_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.UI.RefreshInterval = d
		}
	}

	if v := os.Getenv("STOCKDASH_PREDICTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.PredictionDays = n
		}
	}

	if v := os.Getenv("STOCKDASH_DB"); v != "" {
		cfg.Storage.PrefsPath = v
	}

	if v := os.Getenv("STOCKDASH_ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}

	if v := os.Getenv("STOCKDASH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}
