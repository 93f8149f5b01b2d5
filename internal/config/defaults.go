package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/roomfinder/data/rooms.db"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = BackendONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/roomfinder/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.ModelVersion == "" {
		cfg.Embedding.ModelVersion = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.LoadTimeout == 0 {
		cfg.Embedding.LoadTimeout = 2 * time.Minute
	}
	if cfg.Endpoint.RateLimit > 0 && cfg.Endpoint.Burst == 0 {
		cfg.Endpoint.Burst = 10
	}
	if cfg.Endpoint.MaxBodyBytes == 0 {
		cfg.Endpoint.MaxBodyBytes = 64 << 10
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.Remote.MaxRetries == 0 {
		cfg.Remote.MaxRetries = 3
	}
	if cfg.Remote.Backoff == 0 {
		cfg.Remote.Backoff = 200 * time.Millisecond
	}
	if cfg.Search.TieTolerance == 0 {
		cfg.Search.TieTolerance = 1e-9
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
}
