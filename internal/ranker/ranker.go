// Package ranker orders candidate tools by relevance to a free-text query.
package ranker

import (
	"context"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
	"github.com/bobmcallan/mitm-gateway/internal/models"
)

const (
	defaultOracleTimeout = 30 * time.Second
	// BackfillConfidence is assigned to tools added after the oracle's picks run out.
	BackfillConfidence = 0.5
)

// Option configures a Ranker.
type Option func(*Ranker)

// WithOracleTimeout bounds the single oracle call made per search.
func WithOracleTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Ranker scores tools with a remote oracle and degrades to Fallback when the
// oracle cannot be reached.
type Ranker struct {
	oracle  interfaces.RelevanceOracle
	logger  *common.Logger
	timeout time.Duration
}

// New creates a Ranker. A nil oracle puts it permanently in lexical mode.
func New(oracle interfaces.RelevanceOracle, logger *common.Logger, opts ...Option) *Ranker {
	r := &Ranker{
		oracle:  oracle,
		logger:  common.OrSilent(logger),
		timeout: defaultOracleTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns at most limit tools, most relevant first. It never fails:
// oracle errors fall back to lexical scoring and an unusable ranking is
// backfilled at BackfillConfidence.
func (r *Ranker) Search(ctx context.Context, query string, tools []models.ToolDefinition, limit int) models.SearchResult {
	result, _ := r.Rank(ctx, query, tools, limit)
	return result
}

// Rank is Search that also reports whether the result is degraded: the
// oracle was consulted but failed or answered with an unusable ranking.
// Degraded results should not outlive the call that produced them.
func (r *Ranker) Rank(ctx context.Context, query string, tools []models.ToolDefinition, limit int) (models.SearchResult, bool) {
	result := models.EmptySearchResult()
	if len(tools) == 0 || limit <= 0 {
		return result, false
	}

	if len(tools) <= limit {
		for _, t := range tools {
			if !result.Contains(t.Name) {
				result.Add(t.Clone(), 1.0)
			}
		}
		return result, false
	}

	if r.oracle == nil {
		return Fallback(query, tools, limit), false
	}

	scoreCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.oracle.Score(scoreCtx, query, Describe(tools), limit)
	if err != nil {
		r.logger.Warn().
			Str("query", query).
			Str("error", err.Error()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("relevance oracle failed, using lexical fallback")
		return Fallback(query, tools, limit), true
	}

	rankings := ParseRanking(raw)
	if rankings == nil {
		r.logger.Warn().Str("query", query).Msg("unusable oracle ranking, backfilling")
	}

	index := make(map[string]int, len(tools))
	for i, t := range tools {
		if _, seen := index[t.Name]; !seen {
			index[t.Name] = i
		}
	}

	for _, rk := range rankings {
		if len(result.Tools) >= limit {
			break
		}
		i, ok := index[rk.Name]
		if !ok || result.Contains(rk.Name) {
			continue
		}
		result.Add(tools[i].Clone(), rk.Confidence)
	}
	ranked := len(result.Tools)

	for _, t := range tools {
		if len(result.Tools) >= limit {
			break
		}
		if !result.Contains(t.Name) {
			result.Add(t.Clone(), BackfillConfidence)
		}
	}

	r.logger.Debug().
		Str("query", query).
		Int("candidates", len(tools)).
		Int("ranked", ranked).
		Int("backfilled", len(result.Tools)-ranked).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("oracle search complete")
	return result, rankings == nil
}

// Describe builds the candidate descriptions sent to the oracle.
func Describe(tools []models.ToolDefinition) []models.CandidateDescription {
	out := make([]models.CandidateDescription, len(tools))
	for i, t := range tools {
		params := make(map[string]models.CandidateParam, len(t.Parameters))
		for name, p := range t.Parameters {
			params[name] = models.CandidateParam{Type: p.Type, Description: p.Description}
		}
		out[i] = models.CandidateDescription{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
			ReturnType:  t.ReturnType,
			ServerName:  t.BackendName,
		}
	}
	return out
}
