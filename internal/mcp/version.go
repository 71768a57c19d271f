package mcp

import (
	"context"

	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/bobmcallan/mitm-gateway/internal/interfaces"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// versionStatus is the get_version payload.
type versionStatus struct {
	config.VersionInfo
	Backends        int `json:"backends"`
	HealthyBackends int `json:"healthy_backends"`
	Tools           int `json:"tools"`
}

// VersionTool returns the mcp.Tool definition for get_version.
func VersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the gateway version and catalog status. Use this to verify connectivity."),
	)
}

// VersionToolHandler reports the build alongside backend and tool counts.
func VersionToolHandler(catalog interfaces.Catalog) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := versionStatus{VersionInfo: config.GetVersionInfo()}
		if catalog != nil {
			backends := catalog.ListBackends()
			status.Backends = len(backends)
			for _, b := range backends {
				if b.Healthy {
					status.HealthyBackends++
				}
			}
			status.Tools = len(catalog.ListAllTools())
		}
		return jsonResult(status), nil
	}
}
