// Package oracle implements the remote relevance scorers used by the ranker.
package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

const promptTemplate = `You are a tool discovery assistant. Your task is to find the most relevant tools for a user's query from a list of available tools.

Available tools (in JSON format):
%s

User query: %q

Please return a JSON array of the top %d most relevant tools, ordered by relevance. For each tool, include the tool name and a confidence score between 0 and 1.

Example format:
[
  {"name": "tool_name_1", "confidence": 0.95},
  {"name": "tool_name_2", "confidence": 0.85}
]

Your response (JSON array only, no other text):`

// BuildPrompt renders the ranking instruction for the given candidates.
func BuildPrompt(query string, candidates []models.CandidateDescription, limit int) (string, error) {
	if candidates == nil {
		candidates = []models.CandidateDescription{}
	}
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal candidates: %w", err)
	}
	return fmt.Sprintf(promptTemplate, data, query, limit), nil
}
