package models

import "time"

// Transport selects how the gateway talks to a backend.
type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportMCP       Transport = "mcp"
	TransportSimulated Transport = "simulated"
)

// BackendRef is what a tool source or executor needs to reach a backend.
type BackendRef struct {
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	Transport Transport `json:"transport,omitempty"`
}

// EffectiveTransport resolves an unset transport: backends without a URL are simulated.
func (r BackendRef) EffectiveTransport() Transport {
	if r.Transport != "" {
		return r.Transport
	}
	if r.URL == "" {
		return TransportSimulated
	}
	return TransportHTTP
}

// BackendSpec is the input to a registration.
type BackendSpec struct {
	Name        string    `json:"name" validate:"required,max=64,excludesall=/ "`
	Description string    `json:"description"`
	URL         string    `json:"url,omitempty" validate:"omitempty,url"`
	Transport   Transport `json:"transport,omitempty" validate:"omitempty,oneof=http mcp simulated"`
	Version     string    `json:"version,omitempty"`
}

// BackendRecord is the registry's state for one backend. Tools is replaced
// wholesale on every successful refresh; ToolOrder keeps insertion order.
type BackendRecord struct {
	Name          string
	Description   string
	URL           string
	Transport     Transport
	Version       string
	Tools         map[string]ToolDefinition
	ToolOrder     []string
	LastRefreshed *time.Time
	LastRefreshOK bool
	LastError     string
	RegisteredAt  time.Time
}

// Ref returns the connection details of the record.
func (b *BackendRecord) Ref() BackendRef {
	return BackendRef{Name: b.Name, URL: b.URL, Transport: b.Transport}
}

// OrderedTools returns the record's tools in insertion order.
func (b *BackendRecord) OrderedTools() []ToolDefinition {
	tools := make([]ToolDefinition, 0, len(b.ToolOrder))
	for _, name := range b.ToolOrder {
		if t, ok := b.Tools[name]; ok {
			tools = append(tools, t.Clone())
		}
	}
	return tools
}

// Info summarises the record for listing.
func (b *BackendRecord) Info() BackendInfo {
	info := BackendInfo{
		Name:         b.Name,
		Description:  b.Description,
		URL:          b.URL,
		Transport:    b.Ref().EffectiveTransport(),
		Version:      b.Version,
		ToolsCount:   len(b.Tools),
		Healthy:      b.LastRefreshOK,
		LastError:    b.LastError,
		RegisteredAt: b.RegisteredAt,
	}
	if b.LastRefreshed != nil {
		t := *b.LastRefreshed
		info.LastRefreshed = &t
	}
	return info
}

// BackendInfo is the read-only view of a backend returned to callers.
type BackendInfo struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	URL           string     `json:"url,omitempty"`
	Transport     Transport  `json:"transport"`
	Version       string     `json:"version,omitempty"`
	ToolsCount    int        `json:"tools_count"`
	Healthy       bool       `json:"healthy"`
	LastRefreshed *time.Time `json:"last_refreshed,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	RegisteredAt  time.Time  `json:"registered_at"`
}
