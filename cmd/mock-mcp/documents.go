package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

var errUnknownTool = errors.New("tool not found")

// notFoundError marks lookups for documents that do not exist.
type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return fmt.Sprintf("Document '%s' not found", e.id) }

// Document is one entry of the in-memory document store.
type Document struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// documentStore is a small document archive that the mock tools operate on.
type documentStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func newDocumentStore() *documentStore {
	return &documentStore{docs: map[string]Document{
		"doc1": {ID: "doc1", Title: "Sample Document 1", Content: "This is a sample document with some content.", Tags: []string{"sample", "test"}},
		"doc2": {ID: "doc2", Title: "Sample Document 2", Content: "This is another sample document with different content.", Tags: []string{"sample", "important"}},
		"doc3": {ID: "doc3", Title: "Important Document", Content: "This document contains important information.", Tags: []string{"important"}},
	}}
}

// sorted returns documents ordered by ID so results are stable.
func (s *documentStore) sorted() []Document {
	out := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *documentStore) get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, &notFoundError{id: id}
	}
	return d, nil
}

func (s *documentStore) search(query string, limit int) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	results := make([]Document, 0)
	for _, d := range s.sorted() {
		if len(results) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(d.Title), q) || strings.Contains(strings.ToLower(d.Content), q) {
			results = append(results, d)
		}
	}
	return results
}

func (s *documentStore) byTag(tag string) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]Document, 0)
	for _, d := range s.sorted() {
		for _, t := range d.Tags {
			if strings.EqualFold(t, tag) {
				results = append(results, d)
				break
			}
		}
	}
	return results
}

func (s *documentStore) create(title, content string, tags []string) Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tags == nil {
		tags = []string{}
	}
	d := Document{ID: fmt.Sprintf("doc%d", len(s.docs)+1), Title: title, Content: content, Tags: tags}
	s.docs[d.ID] = d
	return d
}

// documentTools describes the tools served by the mock backend.
func documentTools() []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Name:        "get_document",
			Description: "Get a document by ID",
			Parameters: map[string]models.ParameterSpec{
				"document_id": {Type: models.ParamString, Description: "ID of the document to retrieve", Required: true},
			},
			ReturnType: "Document",
		},
		{
			Name:        "search_documents",
			Description: "Search for documents matching a query",
			Parameters: map[string]models.ParameterSpec{
				"query": {Type: models.ParamString, Description: "Search query", Required: true},
				"limit": {Type: models.ParamInteger, Description: "Maximum number of results to return", Default: float64(10)},
			},
			ReturnType: "List[Document]",
		},
		{
			Name:        "list_documents_by_tag",
			Description: "List all documents with a specific tag",
			Parameters: map[string]models.ParameterSpec{
				"tag": {Type: models.ParamString, Description: "Tag to filter by", Required: true},
			},
			ReturnType: "List[Document]",
		},
		{
			Name:        "create_document",
			Description: "Create a new document",
			Parameters: map[string]models.ParameterSpec{
				"title":   {Type: models.ParamString, Description: "Document title", Required: true},
				"content": {Type: models.ParamString, Description: "Document content", Required: true},
				"tags":    {Type: models.ParamArray, Description: "List of tags"},
			},
			ReturnType: "Document",
		},
	}
}

// toolbox binds the tool definitions to the store.
type toolbox struct {
	store *documentStore
	tools map[string]models.ToolDefinition
	order []models.ToolDefinition
}

func newToolbox(store *documentStore) *toolbox {
	tb := &toolbox{store: store, tools: make(map[string]models.ToolDefinition), order: documentTools()}
	for _, t := range tb.order {
		tb.tools[t.Name] = t
	}
	return tb
}

// execute validates params against the tool and runs it. Validation
// failures are returned as *models.ArgumentError.
func (tb *toolbox) execute(name string, params map[string]any) (any, error) {
	tool, ok := tb.tools[name]
	if !ok {
		return nil, errUnknownTool
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := tool.ValidateArguments(params); err != nil {
		return nil, err
	}

	switch name {
	case "get_document":
		return tb.store.get(params["document_id"].(string))
	case "search_documents":
		limit := 10
		switch v := params["limit"].(type) {
		case float64:
			limit = int(v)
		case int:
			limit = v
		}
		return tb.store.search(params["query"].(string), limit), nil
	case "list_documents_by_tag":
		return tb.store.byTag(params["tag"].(string)), nil
	case "create_document":
		var tags []string
		if raw, ok := params["tags"].([]any); ok {
			for _, t := range raw {
				tags = append(tags, fmt.Sprint(t))
			}
		}
		return tb.store.create(params["title"].(string), params["content"].(string), tags), nil
	}
	return nil, errUnknownTool
}
