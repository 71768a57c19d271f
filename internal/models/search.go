package models

// SearchResult is an ordered, confidence-scored subset of the catalog.
// Every tool in Tools has an entry in ConfidenceScores.
type SearchResult struct {
	Tools            []ToolDefinition   `json:"tools"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// EmptySearchResult returns a result with non-nil fields so it encodes as [] and {}.
func EmptySearchResult() SearchResult {
	return SearchResult{
		Tools:            []ToolDefinition{},
		ConfidenceScores: map[string]float64{},
	}
}

// Add appends a tool with its confidence.
func (r *SearchResult) Add(tool ToolDefinition, confidence float64) {
	r.Tools = append(r.Tools, tool)
	r.ConfidenceScores[tool.Name] = confidence
}

// Contains reports whether a tool name is already in the result.
func (r *SearchResult) Contains(name string) bool {
	_, ok := r.ConfidenceScores[name]
	return ok
}

// CandidateParam is the part of a parameter shown to the relevance oracle.
type CandidateParam struct {
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
}

// CandidateDescription is the structured description of one tool sent to the relevance oracle.
type CandidateDescription struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Parameters  map[string]CandidateParam `json:"parameters"`
	ReturnType  string                    `json:"return_type"`
	ServerName  string                    `json:"server_name"`
}

// ToolExecutionRequest asks the gateway to run a tool on its owning backend.
type ToolExecutionRequest struct {
	ToolName   string         `json:"tool_name" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}

// ToolExecutionResponse reports the outcome of a forwarded execution.
type ToolExecutionResponse struct {
	ExecutionID   string  `json:"execution_id"`
	Success       bool    `json:"success"`
	Result        any     `json:"result"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
}
