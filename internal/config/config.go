package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Program ProgramConfig `yaml:"program"`
	Display DisplayConfig `yaml:"display"`
	Events  EventsConfig  `yaml:"events"`
	Scoring ScoringConfig `yaml:"scoring"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DataConfig struct {
	// Source is "csv" or "postgres".
	Source          string `yaml:"source"`
	CSVPath         string `yaml:"csv_path"`
	PostgresURL     string `yaml:"postgres_url"`
	Watch           bool   `yaml:"watch"`
	WatchDebounceMs int    `yaml:"watch_debounce_ms"`
}

type ProgramConfig struct {
	// Deadline is the fixed program completion date (YYYY-MM-DD) that all
	// "days remaining" calculations run against.
	Deadline string `yaml:"deadline"`
	// FallbackWindowDays divides cumulative remediated quantity when no
	// daily-rate column exists in the source data.
	FallbackWindowDays int `yaml:"fallback_window_days"`
}

type DisplayConfig struct {
	RotationIntervalMs int `yaml:"rotation_interval_ms"`
	TopSites           int `yaml:"top_sites"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type ScoringConfig struct {
	Weights          ScoringWeights `yaml:"weights"`
	MinCompletionPct float64        `yaml:"min_completion_pct"`
}

type ScoringWeights struct {
	Completion float64 `yaml:"completion"`
	Timeline   float64 `yaml:"timeline"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) RotationInterval() time.Duration {
	return time.Duration(c.Display.RotationIntervalMs) * time.Millisecond
}

func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Data.WatchDebounceMs) * time.Millisecond
}

// DeadlineDate parses the configured program deadline.
func (c *Config) DeadlineDate() (time.Time, error) {
	d, err := time.Parse("2006-01-02", c.Program.Deadline)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse program deadline %q: %w", c.Program.Deadline, err)
	}
	return d, nil
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Data: DataConfig{
			Source:          "csv",
			CSVPath:         "data/remediation_sites.csv",
			Watch:           true,
			WatchDebounceMs: 2000,
		},
		Program: ProgramConfig{
			Deadline:           "2025-09-30",
			FallbackWindowDays: 90,
		},
		Display: DisplayConfig{
			RotationIntervalMs: 15000,
			TopSites:           8,
		},
		Events: EventsConfig{
			URL: "",
		},
		Scoring: ScoringConfig{
			Weights: ScoringWeights{
				Completion: 0.60,
				Timeline:   0.40,
			},
			MinCompletionPct: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if _, err := cfg.DeadlineDate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REMWATCH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("REMWATCH_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("REMWATCH_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("REMWATCH_DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("REMWATCH_CSV_PATH"); v != "" {
		cfg.Data.CSVPath = v
	}
	if v := os.Getenv("REMWATCH_POSTGRES_URL"); v != "" {
		cfg.Data.PostgresURL = v
	}
	if v := os.Getenv("REMWATCH_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("REMWATCH_DEADLINE"); v != "" {
		cfg.Program.Deadline = v
	}
	if v := os.Getenv("REMWATCH_ROTATION_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Display.RotationIntervalMs = n
		}
	}
	if v := os.Getenv("REMWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
