package config

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
			Host: "localhost",
		},
		Oracle: OracleConfig{
			Provider:    "http",
			Endpoint:    "http://localhost:5000/generate",
			MaxTokens:   1000,
			Temperature: 0.7,
			Timeout:     "30s",
		},
		Discovery: DiscoveryConfig{
			Interval:     "300s",
			FetchTimeout: "10s",
			Concurrency:  8,
		},
		Search: SearchConfig{
			DefaultLimit:    5,
			MinConfidence:   0.1,
			MaxToolsPerPage: 10,
			CacheTTL:        "60s",
			CacheMaxEntries: 256,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "text",
			Outputs: []string{"console"},
		},
		Backends: []BackendConfig{},
	}
}
