package mcp

import (
	"fmt"

	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// BuildMCPTool converts a ToolDefinition into an mcp.Tool published as name.
// Parameters are added in sorted order so the schema is stable.
func BuildMCPTool(name string, td models.ToolDefinition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(td.Description)}
	for _, pname := range td.ParameterNames() {
		opts = append(opts, buildParamOption(pname, td.Parameters[pname]))
	}
	return mcp.NewTool(name, opts...)
}

// buildParamOption maps a ParameterSpec to the matching mcp-go tool option.
func buildParamOption(name string, p models.ParameterSpec) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if p.Description != "" {
		opts = append(opts, mcp.Description(p.Description))
	}
	if p.Required {
		opts = append(opts, mcp.Required())
	}
	if len(p.Enum) > 0 && p.Type == models.ParamString {
		values := make([]string, 0, len(p.Enum))
		for _, v := range p.Enum {
			values = append(values, fmt.Sprint(v))
		}
		opts = append(opts, mcp.Enum(values...))
	}

	switch p.Type {
	case models.ParamInteger, models.ParamNumber:
		if f, ok := p.Default.(float64); ok {
			opts = append(opts, mcp.DefaultNumber(f))
		}
		return mcp.WithNumber(name, opts...)
	case models.ParamBoolean:
		if b, ok := p.Default.(bool); ok {
			opts = append(opts, mcp.DefaultBool(b))
		}
		return mcp.WithBoolean(name, opts...)
	case models.ParamArray:
		return mcp.WithArray(name, opts...)
	case models.ParamObject:
		return mcp.WithObject(name, opts...)
	default:
		if s, ok := p.Default.(string); ok {
			opts = append(opts, mcp.DefaultString(s))
		}
		return mcp.WithString(name, opts...)
	}
}
