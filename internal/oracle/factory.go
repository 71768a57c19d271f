package oracle

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names accepted by New.
const (
	ProviderHTTP      = "http"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"
)

// Config selects and parameterises an oracle.
type Config struct {
	Provider    string
	Endpoint    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// New builds the oracle named by cfg.Provider. Provider "none" yields a nil
// oracle, which keeps the ranker in lexical mode.
func New(cfg Config, logger *common.Logger) (interfaces.RelevanceOracle, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderHTTP
	}

	var (
		model llms.Model
		err   error
	)

	switch provider {
	case ProviderNone:
		return nil, nil
	case ProviderHTTP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http oracle requires an endpoint")
		}
		return NewHTTPOracle(cfg.Endpoint, cfg.MaxTokens, cfg.Temperature, cfg.Timeout, logger), nil
	case ProviderOpenAI:
		opts := []openai.Option{}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
		}
		model, err = openai.New(opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		model, err = anthropic.New(opts...)
	case ProviderOllama:
		opts := []ollama.Option{}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, ollama.WithServerURL(cfg.Endpoint))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	common.OrSilent(logger).Info().
		Str("provider", provider).
		Str("model", cfg.Model).
		Msg("relevance oracle configured")

	return NewLangChainOracle(provider, model, cfg.MaxTokens, cfg.Temperature), nil
}
