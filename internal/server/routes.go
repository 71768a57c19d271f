package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Service description; also answers unmatched non-API paths with 404.
	mux.Handle("/", s.app.RootHandler)

	// MCP endpoint (JSON-RPC over HTTP)
	if s.app.MCPHandler != nil {
		mux.Handle("/mcp", s.app.MCPHandler)
	}

	// API routes
	mux.HandleFunc("/api/health", s.app.HealthHandler.ServeHTTP)
	mux.HandleFunc("/api/version", s.app.VersionHandler.ServeHTTP)
	mux.HandleFunc("/api/servers", s.handleServers)
	mux.HandleFunc("/api/servers/", s.handleServerItem)
	mux.HandleFunc("/api/tools", s.app.ToolsHandler.List)
	mux.HandleFunc("/api/tools/", s.handleToolItem)
	mux.HandleFunc("/api/execute", s.app.ExecuteHandler.ServeHTTP)
	mux.HandleFunc("/api/schema", s.app.SchemaHandler.Index)
	mux.HandleFunc("/api/schema/", s.handleSchemaItem)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

// handleServers routes GET/POST /api/servers.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.ServersHandler.List, s.app.ServersHandler.Register)
}

// handleServerItem routes /api/servers/refresh, /api/servers/{name} and
// /api/servers/{name}/refresh.
func (s *Server) handleServerItem(w http.ResponseWriter, r *http.Request) {
	h := s.app.ServersHandler
	rest := strings.TrimPrefix(r.URL.Path, "/api/servers/")
	name, action, _ := strings.Cut(rest, "/")

	switch {
	case name == "":
		s.handleNotFound(w, r)
	case action == "" && name == "refresh":
		RouteAction(w, r, "POST", h.RefreshAll)
	case action == "":
		RouteResourceItem(w, r,
			func(w http.ResponseWriter, r *http.Request) { h.Get(w, r, name) },
			func(w http.ResponseWriter, r *http.Request) { h.Delete(w, r, name) },
		)
	case action == "refresh":
		RouteAction(w, r, "POST", func(w http.ResponseWriter, r *http.Request) { h.Refresh(w, r, name) })
	default:
		s.handleNotFound(w, r)
	}
}

// handleToolItem routes /api/tools/search, /api/tools/local and
// /api/tools/{name}. Tool names never contain a slash.
func (s *Server) handleToolItem(w http.ResponseWriter, r *http.Request) {
	h := s.app.ToolsHandler
	name := strings.TrimPrefix(r.URL.Path, "/api/tools/")

	switch {
	case name == "" || strings.Contains(name, "/"):
		s.handleNotFound(w, r)
	case name == "search":
		h.Search(w, r)
	case name == "local":
		h.Local(w, r)
	default:
		h.Get(w, r, name)
	}
}

// handleSchemaItem routes /api/schema/{type}.
func (s *Server) handleSchemaItem(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/schema/")
	if name == "" {
		s.app.SchemaHandler.Index(w, r)
		return
	}
	RouteAction(w, r, "GET", func(w http.ResponseWriter, r *http.Request) { s.app.SchemaHandler.Get(w, r, name) })
}

// handleNotFound returns a JSON 404 for unmatched API routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
