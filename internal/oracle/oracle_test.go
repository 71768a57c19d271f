package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/tmc/langchaingo/llms"
)

func candidates() []models.CandidateDescription {
	return []models.CandidateDescription{
		{
			Name:        "docs_get_document",
			Description: "Get a document by ID",
			Parameters: map[string]models.CandidateParam{
				"document_id": {Type: models.ParamString, Description: "ID of the document"},
			},
			ReturnType: "Document",
			ServerName: "docs",
		},
	}
}

// --- Prompt ---

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("find invoices", candidates(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"find invoices"`, "top 3 most relevant", `"name": "docs_get_document"`, `"server_name": "docs"`, "JSON array only"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

// --- HTTP oracle ---

func TestHTTPOracle_PostsPromptAndReturnsText(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  [{\"name\":\"docs_get_document\",\"confidence\":0.9}]\n"}`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, 1000, 0.7, 5*time.Second, common.NewSilentLogger())
	text, err := o.Score(t.Context(), "invoice", candidates(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `[{"name":"docs_get_document","confidence":0.9}]` {
		t.Errorf("unexpected text %q", text)
	}
	if got.MaxTokens != 1000 || got.Temperature != 0.7 {
		t.Errorf("unexpected generation params %+v", got)
	}
	if !strings.Contains(got.Prompt, "docs_get_document") {
		t.Error("expected prompt to carry candidates")
	}
}

func TestHTTPOracle_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"unreadable body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>oops</html>"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			o := NewHTTPOracle(srv.URL, 10, 0, time.Second, nil)
			_, err := o.Score(t.Context(), "q", candidates(), 1)
			var oerr *OracleError
			if !errors.As(err, &oerr) {
				t.Fatalf("expected *OracleError, got %v", err)
			}
			if oerr.Provider != ProviderHTTP {
				t.Errorf("expected provider http, got %s", oerr.Provider)
			}
		})
	}
}

func TestHTTPOracle_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, 10, 0, 50*time.Millisecond, nil)
	if _, err := o.Score(t.Context(), "q", candidates(), 1); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHTTPOracle_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o := NewHTTPOracle(url, 10, 0, time.Second, nil)
	if _, err := o.Score(t.Context(), "q", candidates(), 1); err == nil {
		t.Fatal("expected error for closed endpoint")
	}
}

// --- LangChain oracle ---

type fakeModel struct {
	prompt string
	opts   llms.CallOptions
	reply  string
	err    error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&m.opts)
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompt += text.Text
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainOracle_Score(t *testing.T) {
	model := &fakeModel{reply: "\n[]\n"}
	o := NewLangChainOracle(ProviderOllama, model, 256, 0.2)

	text, err := o.Score(t.Context(), "invoice", candidates(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "[]" {
		t.Errorf("expected trimmed reply, got %q", text)
	}
	if !strings.Contains(model.prompt, "docs_get_document") {
		t.Error("expected the ranking prompt to reach the model")
	}
	if model.opts.MaxTokens != 256 || model.opts.Temperature != 0.2 {
		t.Errorf("unexpected call options %+v", model.opts)
	}
}

func TestLangChainOracle_WrapsErrors(t *testing.T) {
	cause := errors.New("model offline")
	o := NewLangChainOracle(ProviderOpenAI, &fakeModel{err: cause}, 0, 0)

	_, err := o.Score(t.Context(), "q", candidates(), 1)
	var oerr *OracleError
	if !errors.As(err, &oerr) || oerr.Provider != ProviderOpenAI {
		t.Fatalf("expected openai *OracleError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the model error to be wrapped")
	}
}

// --- Factory ---

func TestNew(t *testing.T) {
	o, err := New(Config{Provider: "none"}, nil)
	if err != nil || o != nil {
		t.Errorf("expected nil oracle for none, got %v %v", o, err)
	}

	o, err = New(Config{Endpoint: "http://localhost:5000/generate"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := o.(*HTTPOracle); !ok {
		t.Errorf("expected default provider to be http, got %T", o)
	}

	if _, err := New(Config{Provider: "http"}, nil); err == nil {
		t.Error("expected error for http provider without endpoint")
	}

	o, err = New(Config{Provider: "Ollama", Model: "llama3", Endpoint: "http://localhost:11434"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := o.(*LangChainOracle); !ok {
		t.Errorf("expected *LangChainOracle, got %T", o)
	}

	if _, err := New(Config{Provider: "oracle-of-delphi"}, nil); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}
