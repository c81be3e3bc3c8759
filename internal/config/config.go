package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the sentinel engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Window      WindowConfig      `yaml:"window"`
	Detection   DetectionConfig   `yaml:"detection"`
	Model       ModelConfig       `yaml:"model"`
	Resolutions ResolutionsConfig `yaml:"resolutions"`
	Store       StoreConfig       `yaml:"store"`
	Cache       CacheConfig       `yaml:"cache"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// WindowConfig controls the per-domain sliding windows.
type WindowConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queueSize"`
}

// DetectionConfig controls detection-time behaviour shared by both domains.
type DetectionConfig struct {
	BaselineRequestCount int           `yaml:"baselineRequestCount"`
	DedupeLive           bool          `yaml:"dedupeLive"`
	DedupeSimulation     bool          `yaml:"dedupeSimulation"`
	DedupeTTL            time.Duration `yaml:"dedupeTTL"`
}

// ModelConfig selects the scoring model backing the ensemble detector.
// Kind is "builtin" or "remote".
type ModelConfig struct {
	Kind      string        `yaml:"kind"`
	BaseURL   string        `yaml:"baseURL"`
	ScorePath string        `yaml:"scorePath"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ResolutionsConfig controls resolution-pack loading for the suggester.
type ResolutionsConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig controls detection history persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Valkey-backed deduplication reservations.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// SimulatorConfig controls the built-in traffic generator.
type SimulatorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Profile     string        `yaml:"profile"`
	Interval    time.Duration `yaml:"interval"`
	AnomalyRate float64       `yaml:"anomalyRate"`
	Seed        int64         `yaml:"seed"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8085",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Window: WindowConfig{
			Size:      10,
			QueueSize: 64,
		},
		Detection: DetectionConfig{
			BaselineRequestCount: 5,
			DedupeLive:           false,
			DedupeSimulation:     true,
			DedupeTTL:            5 * time.Minute,
		},
		Model: ModelConfig{
			Kind:      "builtin",
			ScorePath: "/api/v1/score",
			Timeout:   2 * time.Second,
		},
		Resolutions: ResolutionsConfig{Path: "configs/resolutions/default.yaml"},
		Store:       StoreConfig{Path: "sentinel.db"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Simulator: SimulatorConfig{
			Enabled:     false,
			Profile:     "mixed",
			Interval:    200 * time.Millisecond,
			AnomalyRate: 0.15,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func validate(cfg *Config) error {
	if cfg.Window.Size < 2 {
		return fmt.Errorf("window.size must be at least 2, got %d", cfg.Window.Size)
	}
	switch cfg.Model.Kind {
	case "builtin":
	case "remote":
		if cfg.Model.BaseURL == "" {
			return fmt.Errorf("model.baseURL required when model.kind is remote")
		}
	default:
		return fmt.Errorf("model.kind must be builtin or remote, got %q", cfg.Model.Kind)
	}
	if cfg.Detection.BaselineRequestCount < 1 {
		return fmt.Errorf("detection.baselineRequestCount must be positive, got %d",
			cfg.Detection.BaselineRequestCount)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SENTINEL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SENTINEL_WINDOW_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Window.Size = size
		}
	}
	if v := os.Getenv("SENTINEL_MODEL_KIND"); v != "" {
		cfg.Model.Kind = v
	}
	if v := os.Getenv("SENTINEL_MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("SENTINEL_RESOLUTIONS_PATH"); v != "" {
		cfg.Resolutions.Path = v
	}
	if v := os.Getenv("SENTINEL_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SENTINEL_DEDUPE_LIVE"); v != "" {
		cfg.Detection.DedupeLive = isTrue(v)
	}
	if v := os.Getenv("SENTINEL_DEDUPE_SIMULATION"); v != "" {
		cfg.Detection.DedupeSimulation = isTrue(v)
	}
	if v := os.Getenv("SENTINEL_DEDUPE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Detection.DedupeTTL = d
		}
	}
	if v := os.Getenv("SENTINEL_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTrue(v)
	}
	if v := os.Getenv("SENTINEL_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("SENTINEL_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("SENTINEL_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SENTINEL_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("SENTINEL_CACHE_TLS"); isTrue(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("SENTINEL_SIMULATOR_ENABLED"); v != "" {
		cfg.Simulator.Enabled = isTrue(v)
	}
	if v := os.Getenv("SENTINEL_SIMULATOR_PROFILE"); v != "" {
		cfg.Simulator.Profile = v
	}
	if v := os.Getenv("SENTINEL_SIMULATOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Simulator.Interval = d
		}
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
