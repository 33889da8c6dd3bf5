package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the searchfront service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Backend    BackendConfig    `yaml:"backend"`
	Refinement RefinementConfig `yaml:"refinement"`
	Views      ViewsConfig      `yaml:"views"`
	Cache      CacheConfig      `yaml:"cache"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig describes the upstream search API.
type BackendConfig struct {
	BaseURL      string `yaml:"base_url"`
	SearchPath   string `yaml:"search_path"`
	HealthPath   string `yaml:"health_path"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	NarrowSource string `yaml:"narrow_source"`
	BroadSource  string `yaml:"broad_source"`
	Token        string `yaml:"token"`
}

// Timeout returns the per-request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSec) * time.Second
}

// RefinementConfig holds the staggered refinement timings.
type RefinementConfig struct {
	LoadingTimeoutMs int `yaml:"loading_timeout_ms"`
	SecondGapMs      int `yaml:"second_gap_ms"`
	ThirdGapMs       int `yaml:"third_gap_ms"`
}

// LoadingTimeout returns the loading safety timeout.
func (r RefinementConfig) LoadingTimeout() time.Duration {
	return time.Duration(r.LoadingTimeoutMs) * time.Millisecond
}

// SecondGap returns the minimum spacing before the second broad query.
func (r RefinementConfig) SecondGap() time.Duration {
	return time.Duration(r.SecondGapMs) * time.Millisecond
}

// ThirdGap returns the minimum spacing before the third broad query.
func (r RefinementConfig) ThirdGap() time.Duration {
	return time.Duration(r.ThirdGapMs) * time.Millisecond
}

// ViewsConfig holds view lifecycle and pagination settings.
type ViewsConfig struct {
	MaxViews         int `yaml:"max_views"`
	IdleTTLSec       int `yaml:"idle_ttl_sec"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	DefaultPageSize  int `yaml:"default_page_size"`
	MaxPageSize      int `yaml:"max_page_size"`
}

// CacheConfig holds the snapshot store connection (Redis or Valkey). Empty
// Addrs disables it.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Standalone       bool     `yaml:"standalone"`
	SnapshotTTLSec   int      `yaml:"snapshot_ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether snapshot persistence is configured.
func (c CacheConfig) Enabled() bool {
	return len(c.Addrs) > 0
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expands ${VAR} references, applies
// defaults and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Backend.SearchPath == "" {
		c.Backend.SearchPath = "/api/search"
	}
	if c.Backend.HealthPath == "" {
		c.Backend.HealthPath = "/api/health"
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 15
	}
	if c.Backend.NarrowSource == "" {
		c.Backend.NarrowSource = "tg"
	}
	if c.Backend.BroadSource == "" {
		c.Backend.BroadSource = "all"
	}

	if c.Refinement.LoadingTimeoutMs <= 0 {
		c.Refinement.LoadingTimeoutMs = 5000
	}
	if c.Refinement.SecondGapMs <= 0 {
		c.Refinement.SecondGapMs = 2000
	}
	if c.Refinement.ThirdGapMs <= 0 {
		c.Refinement.ThirdGapMs = 3000
	}

	if c.Views.MaxViews <= 0 {
		c.Views.MaxViews = 1000
	}
	if c.Views.IdleTTLSec <= 0 {
		c.Views.IdleTTLSec = 900
	}
	if c.Views.SweepIntervalSec <= 0 {
		c.Views.SweepIntervalSec = 60
	}
	if c.Views.DefaultPageSize <= 0 {
		c.Views.DefaultPageSize = 20
	}
	if c.Views.MaxPageSize <= 0 {
		c.Views.MaxPageSize = 100
	}

	if c.Cache.SnapshotTTLSec <= 0 {
		c.Cache.SnapshotTTLSec = 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.NarrowSource == c.Backend.BroadSource {
		return fmt.Errorf("backend.narrow_source and backend.broad_source must differ, both are %q",
			c.Backend.NarrowSource)
	}
	for i, addr := range c.Cache.Addrs {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("cache.addrs[%d] is empty", i)
		}
	}
	if c.Views.DefaultPageSize > c.Views.MaxPageSize {
		return fmt.Errorf("views.default_page_size (%d) exceeds views.max_page_size (%d)",
			c.Views.DefaultPageSize, c.Views.MaxPageSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
