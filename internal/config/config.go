package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the vecsnap configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Capture   CaptureConfig   `yaml:"capture"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
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
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// DatabaseConfig holds local store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // sqlite (default), badger, redis, valkey
	Path             string   `yaml:"path"`   // sqlite file or badger directory
	Addrs            []string `yaml:"addrs"`  // redis/valkey
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Embedding providers.
const (
	ProviderOpenAI    = "openai"
	ProviderInference = "inference"
)

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // openai, inference (default)
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	CacheEnabled *bool  `yaml:"cache_enabled"` // default true
}

// IndexConfig holds vector index service settings.
type IndexConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTopK     int    `yaml:"max_top_k"`
	DefaultTopK int    `yaml:"default_top_k"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	AutoPublish bool   `yaml:"auto_publish"` // upsert every ingested image
}

// OptimizerConfig holds image compression settings.
type OptimizerConfig struct {
	Disabled  bool `yaml:"disabled"`
	Quality   int  `yaml:"quality"`
	MaxWidth  int  `yaml:"max_width"`
	MaxPixels int  `yaml:"max_pixels"` // larger images are stored unchanged
}

// Capture devices.
const (
	DeviceFile  = "file"
	DeviceStdin = "stdin"
	DeviceWatch = "watch"
)

// CaptureConfig holds the default capture device.
type CaptureConfig struct {
	Device   string `yaml:"device"` // file (default), stdin, watch
	Path     string `yaml:"path"`   // file device
	WatchDir string `yaml:"watch_dir"`
	SettleMs int    `yaml:"settle_ms"`
}

// SearchConfig holds orchestrated search settings.
type SearchConfig struct {
	TopK           int `yaml:"top_k"`
	TimeoutSec     int `yaml:"timeout_sec"`
	Retries        int `yaml:"retries"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 20 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		switch c.Database.Driver {
		case DriverSQLite:
			c.Database.Path = filepath.Join("data", "vecsnap.db")
		case DriverBadger:
			c.Database.Path = filepath.Join("data", "badger")
		}
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderInference
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.CacheEnabled == nil {
		enabled := true
		c.Embedding.CacheEnabled = &enabled
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = 384
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = c.Index.Dimensions
	}
	if c.Index.MaxTopK <= 0 {
		c.Index.MaxTopK = 100
	}
	if c.Index.DefaultTopK <= 0 {
		c.Index.DefaultTopK = 10
	}
	if c.Index.TimeoutSec <= 0 {
		c.Index.TimeoutSec = 30
	}
	if c.Optimizer.Quality <= 0 {
		c.Optimizer.Quality = 80
	}
	if c.Optimizer.MaxWidth <= 0 {
		c.Optimizer.MaxWidth = 1280
	}
	if c.Optimizer.MaxPixels == 0 {
		c.Optimizer.MaxPixels = 50_000_000
	}
	if c.Capture.Device == "" {
		c.Capture.Device = DeviceFile
	}
	if c.Capture.SettleMs <= 0 {
		c.Capture.SettleMs = 300
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = c.Index.DefaultTopK
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 60
	}
	if c.Search.RetryBackoffMs <= 0 {
		c.Search.RetryBackoffMs = 250
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverBadger:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", c.Database.Driver)
		}
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of sqlite, badger, redis, valkey, got %q", c.Database.Driver)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", ProviderOpenAI)
		}
	case ProviderInference:
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for provider %q", ProviderInference)
		}
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"inference\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions != c.Index.Dimensions {
		return fmt.Errorf(
			"embedding.dimensions (%d) must match index.dimensions (%d)",
			c.Embedding.Dimensions, c.Index.Dimensions,
		)
	}

	if c.Index.DefaultTopK > c.Index.MaxTopK {
		return fmt.Errorf("index.default_top_k (%d) exceeds index.max_top_k (%d)", c.Index.DefaultTopK, c.Index.MaxTopK)
	}
	if c.Index.AutoPublish && c.Index.BaseURL == "" {
		return fmt.Errorf("index.auto_publish requires index.base_url")
	}

	if c.Optimizer.MaxPixels < 0 {
		return fmt.Errorf("optimizer.max_pixels must be positive, got %d", c.Optimizer.MaxPixels)
	}
	if c.Optimizer.Quality > 100 {
		return fmt.Errorf("optimizer.quality must be between 1 and 100, got %d", c.Optimizer.Quality)
	}

	if !slices.Contains([]string{DeviceFile, DeviceStdin, DeviceWatch}, c.Capture.Device) {
		return fmt.Errorf("capture.device must be one of file, stdin, watch, got %q", c.Capture.Device)
	}
	if c.Capture.Device == DeviceWatch && c.Capture.WatchDir == "" {
		return fmt.Errorf("capture.watch_dir is required for device %q", DeviceWatch)
	}

	if c.Search.Retries < 0 {
		return fmt.Errorf("search.retries must not be negative, got %d", c.Search.Retries)
	}
	return nil
}

// CacheOn reports whether the embedding cache is on.
func (e EmbeddingConfig) CacheOn() bool {
	return e.CacheEnabled == nil || *e.CacheEnabled
}

// Timeout returns the embedding request timeout.
func (e EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// Timeout returns the index request timeout.
func (i IndexConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSec) * time.Second
}

// Timeout returns the per-run orchestrator timeout.
func (s SearchConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// RetryBackoff returns the base delay between search retries.
func (s SearchConfig) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMs) * time.Millisecond
}

// Settle returns the watch-folder settle delay.
func (c CaptureConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
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
