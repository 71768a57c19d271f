package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// LangChainOracle scores candidates with any langchaingo model.
type LangChainOracle struct {
	provider    string
	model       llms.Model
	maxTokens   int
	temperature float64
}

// NewLangChainOracle wraps an llms.Model. provider is used only in errors.
func NewLangChainOracle(provider string, model llms.Model, maxTokens int, temperature float64) *LangChainOracle {
	return &LangChainOracle{
		provider:    provider,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Score sends one ranking prompt and returns the generated text.
func (o *LangChainOracle) Score(ctx context.Context, query string, candidates []models.CandidateDescription, limit int) (string, error) {
	prompt, err := BuildPrompt(query, candidates, limit)
	if err != nil {
		return "", &OracleError{Provider: o.provider, Err: err}
	}

	opts := []llms.CallOption{llms.WithTemperature(o.temperature)}
	if o.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(o.maxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, o.model, prompt, opts...)
	if err != nil {
		return "", &OracleError{Provider: o.provider, Err: fmt.Errorf("generation failed: %w", err)}
	}
	return strings.TrimSpace(text), nil
}
