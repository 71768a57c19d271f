package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Oracle    OracleConfig    `toml:"oracle"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Search    SearchConfig    `toml:"search"`
	Logging   LoggingConfig   `toml:"logging"`
	Backends  []BackendConfig `toml:"backends" validate:"dive"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host"`
}

// OracleConfig selects and tunes the relevance oracle.
type OracleConfig struct {
	Provider    string  `toml:"provider" validate:"omitempty,oneof=http openai anthropic ollama none"`
	Endpoint    string  `toml:"endpoint" validate:"omitempty,url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	MaxTokens   int     `toml:"max_tokens" validate:"min=1"`
	Temperature float64 `toml:"temperature" validate:"min=0,max=2"`
	Timeout     string  `toml:"timeout"`
}

// DiscoveryConfig controls periodic catalog refresh.
type DiscoveryConfig struct {
	Interval     string `toml:"interval"`
	FetchTimeout string `toml:"fetch_timeout"`
	Concurrency  int    `toml:"concurrency" validate:"min=1"`
	WatchConfig  bool   `toml:"watch_config"`
}

// SearchConfig contains ranked search and listing defaults.
type SearchConfig struct {
	DefaultLimit    int     `toml:"default_limit" validate:"min=1"`
	MinConfidence   float64 `toml:"min_confidence" validate:"min=0,max=1"`
	MaxToolsPerPage int     `toml:"max_tools_per_page" validate:"min=1"`
	CacheTTL        string  `toml:"cache_ttl"`
	CacheMaxEntries int     `toml:"cache_max_entries" validate:"min=0"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs" validate:"dive,oneof=console file memory"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// BackendConfig declares a backend registered at startup.
type BackendConfig struct {
	Name        string `toml:"name" validate:"required,max=64,excludesall=/ "`
	Description string `toml:"description"`
	URL         string `toml:"url" validate:"omitempty,url"`
	Transport   string `toml:"transport" validate:"omitempty,oneof=http mcp simulated"`
}

// Spec converts the declaration into a registration request.
func (b BackendConfig) Spec() models.BackendSpec {
	return models.BackendSpec{
		Name:        b.Name,
		Description: b.Description,
		URL:         b.URL,
		Transport:   models.Transport(b.Transport),
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. A later file that declares
// [[backends]] replaces the list rather than appending to it.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		backends := config.Backends
		config.Backends = nil
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
		if config.Backends == nil {
			config.Backends = backends
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies MITM_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("MITM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MITM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if provider := os.Getenv("MITM_ORACLE_PROVIDER"); provider != "" {
		config.Oracle.Provider = provider
	}
	if endpoint := os.Getenv("MITM_ORACLE_ENDPOINT"); endpoint != "" {
		config.Oracle.Endpoint = endpoint
	}
	if model := os.Getenv("MITM_ORACLE_MODEL"); model != "" {
		config.Oracle.Model = model
	}
	if key := os.Getenv("MITM_ORACLE_API_KEY"); key != "" {
		config.Oracle.APIKey = key
	}
	if tokens := os.Getenv("MITM_ORACLE_MAX_TOKENS"); tokens != "" {
		if n, err := strconv.Atoi(tokens); err == nil {
			config.Oracle.MaxTokens = n
		}
	}
	if temp := os.Getenv("MITM_ORACLE_TEMPERATURE"); temp != "" {
		if f, err := strconv.ParseFloat(temp, 64); err == nil {
			config.Oracle.Temperature = f
		}
	}
	if interval := os.Getenv("MITM_DISCOVERY_INTERVAL"); interval != "" {
		config.Discovery.Interval = interval
	}
	if level := os.Getenv("MITM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("MITM_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

var validate = validator.New()

// Validate returns a human-readable line per problem. An empty result means
// the configuration is usable.
func (c *Config) Validate() []string {
	var issues []string

	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf("%s: failed %q (value %v)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}

	durations := map[string]string{
		"oracle.timeout":          c.Oracle.Timeout,
		"discovery.interval":      c.Discovery.Interval,
		"discovery.fetch_timeout": c.Discovery.FetchTimeout,
		"search.cache_ttl":        c.Search.CacheTTL,
	}
	for _, key := range []string{"oracle.timeout", "discovery.interval", "discovery.fetch_timeout", "search.cache_ttl"} {
		if v := durations[key]; v != "" {
			if _, err := time.ParseDuration(v); err != nil {
				issues = append(issues, fmt.Sprintf("%s: invalid duration %q", key, v))
			}
		}
	}

	provider := strings.ToLower(c.Oracle.Provider)
	if (provider == "" || provider == "http") && c.Oracle.Endpoint == "" {
		issues = append(issues, "oracle.endpoint: required for the http provider")
	}

	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if seen[b.Name] {
			issues = append(issues, fmt.Sprintf("backends: duplicate name %q", b.Name))
		}
		seen[b.Name] = true
		if (b.Transport == "http" || b.Transport == "mcp") && b.URL == "" {
			issues = append(issues, fmt.Sprintf("backends.%s: url required for %s transport", b.Name, b.Transport))
		}
	}

	return issues
}

// parseDuration returns fallback when s is empty or malformed.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetOracleTimeout bounds one oracle call.
func (c *Config) GetOracleTimeout() time.Duration {
	return parseDuration(c.Oracle.Timeout, 30*time.Second)
}

// GetDiscoveryInterval is the pause between refresh cycles. Zero disables
// the periodic refresher.
func (c *Config) GetDiscoveryInterval() time.Duration {
	return parseDuration(c.Discovery.Interval, 300*time.Second)
}

// GetFetchTimeout bounds one backend catalog fetch or tool execution.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Discovery.FetchTimeout, 10*time.Second)
}

// GetCacheTTL is how long a ranked search result stays cached.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Search.CacheTTL, 60*time.Second)
}

// LoggerConfig maps the logging section onto the logger's options.
func (c *Config) LoggerConfig() common.LoggingConfig {
	return common.LoggingConfig{
		Level:      c.Logging.Level,
		Outputs:    c.Logging.Outputs,
		FilePath:   c.Logging.FilePath,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}
