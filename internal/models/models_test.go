package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseParamType(t *testing.T) {
	tests := []struct {
		in      string
		want    ParamType
		wantErr bool
	}{
		{"string", ParamString, false},
		{"STR", ParamString, false},
		{" int ", ParamInteger, false},
		{"float", ParamNumber, false},
		{"bool", ParamBoolean, false},
		{"list", ParamArray, false},
		{"dict", ParamObject, false},
		{"List[Document]", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseParamType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidParamType) {
				t.Errorf("ParseParamType(%q): expected ErrInvalidParamType, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseParamType(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseParamType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParamTypeAccepts(t *testing.T) {
	tests := []struct {
		typ  ParamType
		v    any
		want bool
	}{
		{ParamString, "x", true},
		{ParamString, 1.0, false},
		{ParamInteger, 10.0, true},
		{ParamInteger, 10.5, false},
		{ParamInteger, 3, true},
		{ParamNumber, 10.5, true},
		{ParamNumber, "10", false},
		{ParamBoolean, true, true},
		{ParamArray, []any{"a"}, true},
		{ParamArray, "a", false},
		{ParamObject, map[string]any{}, true},
		{ParamObject, nil, false},
	}

	for _, tt := range tests {
		if got := tt.typ.Accepts(tt.v); got != tt.want {
			t.Errorf("%s.Accepts(%#v) = %v, want %v", tt.typ, tt.v, got, tt.want)
		}
	}
}

func TestParameterSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ParameterSpec
		wantErr bool
	}{
		{"plain", ParameterSpec{Type: ParamString}, false},
		{"unknown type", ParameterSpec{Type: "List[Document]"}, true},
		{"default matches", ParameterSpec{Type: ParamInteger, Default: 10.0}, false},
		{"default wrong type", ParameterSpec{Type: ParamInteger, Default: "10"}, true},
		{"default in enum", ParameterSpec{Type: ParamString, Default: "a", Enum: []any{"a", "b"}}, false},
		{"default outside enum", ParameterSpec{Type: ParamString, Default: "c", Enum: []any{"a", "b"}}, true},
		{"numeric enum mixed kinds", ParameterSpec{Type: ParamInteger, Default: 2, Enum: []any{1.0, 2.0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func sampleTool() ToolDefinition {
	return ToolDefinition{
		Name:        "paperless-ngx_search_documents",
		Description: "Search for documents",
		BackendName: "paperless-ngx",
		Kind:        ToolKindMCP,
		ReturnType:  "List[Document]",
		Parameters: map[string]ParameterSpec{
			"query": {Type: ParamString, Description: "Search query", Required: true},
			"limit": {Type: ParamInteger, Description: "Maximum number of results", Default: 10.0},
			"sort":  {Type: ParamString, Enum: []any{"asc", "desc"}},
		},
	}
}

func TestToolDefinition_LocalName(t *testing.T) {
	tool := sampleTool()
	if got := tool.LocalName(); got != "search_documents" {
		t.Errorf("expected search_documents, got %s", got)
	}
	if got := CanonicalToolName("paperless-ngx", "get_document"); got != "paperless-ngx_get_document" {
		t.Errorf("unexpected canonical name %s", got)
	}
}

func TestToolDefinition_Validate(t *testing.T) {
	tool := sampleTool()
	if err := tool.Validate(); err != nil {
		t.Fatalf("expected valid tool, got %v", err)
	}

	bad := sampleTool()
	bad.Name = "search_documents"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for tool not namespaced under its backend")
	}

	bad = sampleTool()
	bad.Kind = "plugin"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}

	bad = sampleTool()
	bad.Parameters["limit"] = ParameterSpec{Type: ParamInteger, Default: "ten"}
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "limit") {
		t.Errorf("expected parameter error naming limit, got %v", err)
	}
}

func TestToolDefinition_CloneIsDeep(t *testing.T) {
	tool := sampleTool()
	clone := tool.Clone()

	clone.Parameters["query"] = ParameterSpec{Type: ParamBoolean}
	clone.Parameters["sort"].Enum[0] = "changed"

	if tool.Parameters["query"].Type != ParamString {
		t.Error("mutating clone parameters changed the original")
	}
	if tool.Parameters["sort"].Enum[0] != "asc" {
		t.Error("mutating clone enum changed the original")
	}
}

func TestToolDefinition_ValidateArguments(t *testing.T) {
	tool := sampleTool()

	if err := tool.ValidateArguments(map[string]any{"query": "invoice", "limit": 5.0}); err != nil {
		t.Errorf("expected valid arguments, got %v", err)
	}

	err := tool.ValidateArguments(map[string]any{"limit": 1.5, "sort": "sideways", "extra": true})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected *ArgumentError, got %v", err)
	}
	want := []string{"limit:", "query: required", "sort:", "extra: unknown parameter"}
	if len(argErr.Issues) != len(want) {
		t.Fatalf("expected %d issues, got %v", len(want), argErr.Issues)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(argErr.Issues[i], prefix) {
			t.Errorf("issue %d: expected prefix %q, got %q", i, prefix, argErr.Issues[i])
		}
	}
}

func TestBackendRef_EffectiveTransport(t *testing.T) {
	tests := []struct {
		ref  BackendRef
		want Transport
	}{
		{BackendRef{Name: "a"}, TransportSimulated},
		{BackendRef{Name: "a", URL: "http://x"}, TransportHTTP},
		{BackendRef{Name: "a", URL: "http://x", Transport: TransportMCP}, TransportMCP},
	}
	for _, tt := range tests {
		if got := tt.ref.EffectiveTransport(); got != tt.want {
			t.Errorf("%+v: got %s, want %s", tt.ref, got, tt.want)
		}
	}
}

func TestBackendRecord_OrderedToolsAndInfo(t *testing.T) {
	now := time.Now()
	a := sampleTool()
	b := sampleTool()
	b.Name = "paperless-ngx_get_document"

	rec := &BackendRecord{
		Name:          "paperless-ngx",
		Tools:         map[string]ToolDefinition{a.Name: a, b.Name: b},
		ToolOrder:     []string{b.Name, a.Name},
		LastRefreshed: &now,
		LastRefreshOK: true,
	}

	tools := rec.OrderedTools()
	if len(tools) != 2 || tools[0].Name != b.Name || tools[1].Name != a.Name {
		t.Errorf("expected insertion order, got %v", tools)
	}

	info := rec.Info()
	if info.ToolsCount != 2 {
		t.Errorf("expected tools_count 2, got %d", info.ToolsCount)
	}
	if info.Transport != TransportSimulated {
		t.Errorf("expected simulated transport, got %s", info.Transport)
	}
	if info.LastRefreshed == rec.LastRefreshed {
		t.Error("expected LastRefreshed to be copied")
	}
}

func TestSearchResult_Add(t *testing.T) {
	r := EmptySearchResult()
	r.Add(sampleTool(), 0.7)
	if !r.Contains("paperless-ngx_search_documents") {
		t.Error("expected tool in result")
	}
	if r.ConfidenceScores["paperless-ngx_search_documents"] != 0.7 {
		t.Error("expected confidence to be recorded")
	}
}
