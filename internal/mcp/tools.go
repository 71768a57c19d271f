package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/mitm-gateway/internal/gateway"
	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterGatewayTools registers the gateway's own tools on s and returns
// how many were added.
func RegisterGatewayTools(s *server.MCPServer, gw *gateway.Gateway) int {
	tools := []server.ServerTool{
		{Tool: SearchToolsTool(), Handler: SearchToolsHandler(gw)},
		{Tool: ListToolsTool(), Handler: ListToolsHandler(gw)},
		{Tool: GetToolTool(), Handler: GetToolHandler(gw)},
		{Tool: ExecuteToolTool(), Handler: ExecuteToolHandler(gw)},
		{Tool: ListBackendsTool(), Handler: ListBackendsHandler(gw)},
		{Tool: VersionTool(), Handler: VersionToolHandler(gw.Catalog())},
	}
	s.AddTools(tools...)
	return len(tools)
}

// SearchToolsTool returns the search_tools definition.
func SearchToolsTool() mcp.Tool {
	return mcp.NewTool("search_tools",
		mcp.WithDescription("Find the backend tools most relevant to a natural-language query, ranked by confidence."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What you want to do, in plain language")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tools to return")),
		mcp.WithNumber("min_confidence", mcp.Description("Drop tools scored below this confidence (0 to 1)")),
	)
}

// SearchToolsHandler ranks the catalog against the query.
func SearchToolsHandler(gw *gateway.Gateway) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := r.GetArguments()
		minConfidence := floatArg(args, "min_confidence", gw.MinConfidence())
		if minConfidence < 0 || minConfidence > 1 {
			return errorResult("Error: min_confidence must be between 0 and 1"), nil
		}
		result, err := gw.Search(ctx, r.GetString("query", ""), intArg(args, "limit", gw.DefaultLimit()), minConfidence)
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return jsonResult(result), nil
	}
}

// ListToolsTool returns the list_tools definition.
func ListToolsTool() mcp.Tool {
	return mcp.NewTool("list_tools",
		mcp.WithDescription("List every tool in the gateway catalog, one page at a time."),
		mcp.WithNumber("offset", mcp.Description("Number of tools to skip")),
		mcp.WithNumber("limit", mcp.Description("Page size")),
	)
}

// ListToolsHandler pages through the catalog.
func ListToolsHandler(gw *gateway.Gateway) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := r.GetArguments()
		return jsonResult(gw.ListTools(intArg(args, "offset", 0), intArg(args, "limit", gw.PageSize()))), nil
	}
}

// GetToolTool returns the get_tool definition.
func GetToolTool() mcp.Tool {
	return mcp.NewTool("get_tool",
		mcp.WithDescription("Get the full definition of one tool, including its parameters."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Canonical tool name, {backend}_{tool}")),
	)
}

// GetToolHandler looks up one tool.
func GetToolHandler(gw *gateway.Gateway) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := r.GetString("name", "")
		if name == "" {
			return errorResult("Error: name parameter is required"), nil
		}
		tool, err := gw.GetTool(name)
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return jsonResult(tool), nil
	}
}

// ExecuteToolTool returns the execute_tool definition.
func ExecuteToolTool() mcp.Tool {
	return mcp.NewTool("execute_tool",
		mcp.WithDescription("Run a tool on the backend that owns it. Use search_tools or get_tool first to learn its parameters."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Canonical tool name, {backend}_{tool}")),
		mcp.WithObject("parameters", mcp.Description("Arguments for the tool")),
	)
}

// ExecuteToolHandler forwards an execution through the gateway. A backend
// failure is an error result carrying the execution response.
func ExecuteToolHandler(gw *gateway.Gateway) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params, err := objectArg(r.GetArguments(), "parameters")
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		resp, err := gw.Execute(ctx, models.ToolExecutionRequest{
			ToolName:   r.GetString("tool_name", ""),
			Parameters: params,
		})
		if err != nil {
			var argErr *models.ArgumentError
			if errors.As(err, &argErr) {
				return jsonErrorResult(argErr), nil
			}
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		result := jsonResult(resp)
		result.IsError = !resp.Success
		return result, nil
	}
}

// jsonErrorResult reports argument problems as a structured error result.
func jsonErrorResult(argErr *models.ArgumentError) *mcp.CallToolResult {
	result := jsonResult(map[string]any{
		"error":  fmt.Sprintf("invalid arguments for %s", argErr.Tool),
		"issues": argErr.Issues,
	})
	result.IsError = true
	return result
}

// ListBackendsTool returns the list_backends definition.
func ListBackendsTool() mcp.Tool {
	return mcp.NewTool("list_backends",
		mcp.WithDescription("List the registered backends with their health and tool counts."),
	)
}

// ListBackendsHandler lists every backend.
func ListBackendsHandler(gw *gateway.Gateway) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(gw.ListBackends()), nil
	}
}
