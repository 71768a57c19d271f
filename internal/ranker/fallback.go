package ranker

import (
	"sort"
	"strings"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// Lexical weights, in tenths so that sums compare exactly.
const (
	nameWeight        = 6
	descriptionWeight = 3
	parameterWeight   = 1
)

// Fallback scores tools by case-insensitive substring match of query:
// 0.6 for the name, 0.3 for the description, 0.1 if any parameter
// description matches. Zero scores are excluded; ties keep input order.
func Fallback(query string, tools []models.ToolDefinition, limit int) models.SearchResult {
	result := models.EmptySearchResult()
	if limit <= 0 || len(tools) == 0 {
		return result
	}
	q := strings.ToLower(query)

	type scored struct {
		tool  models.ToolDefinition
		score int
	}
	matches := make([]scored, 0, len(tools))
	for _, t := range tools {
		score := 0
		if strings.Contains(strings.ToLower(t.Name), q) {
			score += nameWeight
		}
		if strings.Contains(strings.ToLower(t.Description), q) {
			score += descriptionWeight
		}
		for _, p := range t.Parameters {
			if strings.Contains(strings.ToLower(p.Description), q) {
				score += parameterWeight
				break
			}
		}
		if score > 0 {
			matches = append(matches, scored{tool: t, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	for _, m := range matches {
		if len(result.Tools) >= limit {
			break
		}
		if result.Contains(m.tool.Name) {
			continue
		}
		result.Add(m.tool.Clone(), float64(m.score)/10)
	}
	return result
}

// FilterByConfidence drops tools scored below min, keeping order.
func FilterByConfidence(result models.SearchResult, min float64) models.SearchResult {
	filtered := models.EmptySearchResult()
	for _, t := range result.Tools {
		if c := result.ConfidenceScores[t.Name]; c >= min {
			filtered.Add(t, c)
		}
	}
	return filtered
}
