// Package config provides configuration loading and structs for the roomfinder server.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/roomfinder/internal/errs"
)

// Environment variables that override file settings.
const (
	EnvServiceURL = "ROOMFINDER_SERVICE_URL"
	EnvServiceKey = "ROOMFINDER_SERVICE_KEY"
)

// Embedding backends.
const (
	BackendONNX   = "onnx"
	BackendMock   = "mock"
	BackendRemote = "remote"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Remote    RemoteConfig    `yaml:"remote"`
	Search    SearchConfig    `yaml:"search"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the room database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Backend      string        `yaml:"backend"`
	ModelPath    string        `yaml:"model_path"`
	ModelVersion string        `yaml:"model_version"`
	Dimensions   int           `yaml:"dimensions"`
	MaxTokens    int           `yaml:"max_tokens"`
	LoadTimeout  time.Duration `yaml:"load_timeout"`
	WarmOnStart  bool          `yaml:"warm_on_start"`
	// RuntimeLibrary overrides the onnxruntime shared library path.
	RuntimeLibrary string `yaml:"runtime_library"`
}

// EndpointConfig holds settings for the embedding function endpoint.
type EndpointConfig struct {
	Enabled      *bool   `yaml:"enabled"`
	Credential   string  `yaml:"credential"`
	RateLimit    float64 `yaml:"rate_limit"`
	Burst        int     `yaml:"burst"`
	MaxBodyBytes int64   `yaml:"max_body_bytes"`
}

// EnabledOrDefault returns whether the endpoint is mounted; defaults to true when unset.
func (e *EndpointConfig) EnabledOrDefault() bool {
	if e.Enabled != nil {
		return *e.Enabled
	}
	return true
}

// RemoteConfig holds settings for calling another instance's embedding endpoint.
type RemoteConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Credential string        `yaml:"credential"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
}

// SearchConfig holds ranking settings.
type SearchConfig struct {
	// MinScore drops results scoring below it. Nil disables filtering.
	MinScore     *float64 `yaml:"min_score"`
	TieTolerance float64  `yaml:"tie_tolerance"`
	MaxLimit     int      `yaml:"max_limit"`
}

// CatalogConfig points at a room catalog file (.yaml or .xlsx) imported at startup.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Catalog.Path != "" {
		cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	}

	// A missing .env is fine; variables already in the environment win over it.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	ApplyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides the service URL and credential from the environment.
// The credential is shared by the endpoint (server side) and the remote embedder (client side).
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvServiceURL)); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServiceKey)); v != "" {
		cfg.Remote.Credential = v
		cfg.Endpoint.Credential = v
	}
}

// Validate checks the settings once at startup. All failures wrap errs.ErrConfiguration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", errs.ErrConfiguration, c.Server.Port)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding.dimensions must be positive", errs.ErrConfiguration)
	}
	switch c.Embedding.Backend {
	case BackendONNX, BackendMock:
	case BackendRemote:
		if c.Remote.BaseURL == "" {
			return fmt.Errorf("%w: remote.base_url (or %s) is required for the remote backend", errs.ErrConfiguration, EnvServiceURL)
		}
		if c.Remote.Credential == "" {
			return fmt.Errorf("%w: remote.credential (or %s) is required for the remote backend", errs.ErrConfiguration, EnvServiceKey)
		}
	default:
		return fmt.Errorf("%w: unknown embedding.backend %q", errs.ErrConfiguration, c.Embedding.Backend)
	}
	if c.Endpoint.RateLimit < 0 {
		return fmt.Errorf("%w: endpoint.rate_limit must not be negative", errs.ErrConfiguration)
	}
	if m := c.Search.MinScore; m != nil && (math.IsNaN(*m) || *m < -1 || *m > 1) {
		return fmt.Errorf("%w: search.min_score must be within [-1, 1]", errs.ErrConfiguration)
	}
	if c.Search.TieTolerance < 0 {
		return fmt.Errorf("%w: search.tie_tolerance must not be negative", errs.ErrConfiguration)
	}
	return nil
}

// ValidateServer checks settings only the HTTP server needs: a mounted embedding endpoint
// must have a credential. Local commands never serve it and skip this check.
func (c *Config) ValidateServer() error {
	if c.Endpoint.EnabledOrDefault() && c.Endpoint.Credential == "" {
		return fmt.Errorf("%w: endpoint.credential (or %s) is required when the endpoint is enabled", errs.ErrConfiguration, EnvServiceKey)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
