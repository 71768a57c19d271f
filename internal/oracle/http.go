package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// maxOracleResponse caps the body read from the oracle endpoint.
const maxOracleResponse = 4 << 20

// HTTPOracle posts the prompt to a plain text-generation endpoint:
// {"prompt","max_tokens","temperature"} in, {"text"} out.
type HTTPOracle struct {
	endpoint    string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      *common.Logger
}

// NewHTTPOracle creates an oracle for a text-generation endpoint.
func NewHTTPOracle(endpoint string, maxTokens int, temperature float64, timeout time.Duration, logger *common.Logger) *HTTPOracle {
	return &HTTPOracle{
		endpoint:    endpoint,
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      common.OrSilent(logger),
	}
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Score sends one ranking prompt and returns the generated text.
func (o *HTTPOracle) Score(ctx context.Context, query string, candidates []models.CandidateDescription, limit int) (string, error) {
	prompt, err := BuildPrompt(query, candidates, limit)
	if err != nil {
		return "", &OracleError{Provider: ProviderHTTP, Err: err}
	}

	payload, err := json.Marshal(generateRequest{
		Prompt:      prompt,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", &OracleError{Provider: ProviderHTTP, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &OracleError{Provider: ProviderHTTP, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return "", &OracleError{Provider: ProviderHTTP, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOracleResponse))
	if err != nil {
		return "", &OracleError{Provider: ProviderHTTP, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	o.logger.Debug().
		Int("status", resp.StatusCode).
		Int64("duration_ms", duration.Milliseconds()).
		Int("candidates", len(candidates)).
		Msg("oracle response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &OracleError{Provider: ProviderHTTP, Err: fmt.Errorf("endpoint returned status %d", resp.StatusCode)}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &OracleError{Provider: ProviderHTTP, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return strings.TrimSpace(out.Text), nil
}
