package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/spf13/cobra"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List registered backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		servers, err := newClient().ListServers(cmd.Context())
		if err != nil {
			return err
		}
		renderServers(cmd.OutOrStdout(), servers)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [name]",
	Short: "Register a backend with the gateway",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister [name]",
	Short: "Remove a backend and its tools",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().UnregisterServer(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unregistered %s\n", nameStyle.Render(args[0]))
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [name]",
	Short: "Re-fetch the tool catalog of a backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient().RefreshServer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderServers(cmd.OutOrStdout(), []models.BackendInfo{info})
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "List tools, or show one tool in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTools,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Rank tools against a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var callCmd = &cobra.Command{
	Use:   "call [tool] [json-parameters]",
	Short: "Execute a tool through the gateway",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCall,
}

var (
	registerURL         string
	registerTransport   string
	registerDescription string
	registerVersion     string

	toolsOffset int
	toolsLimit  int
	toolsQuery  string

	searchLimit         int
	searchMinConfidence float64
)

func init() {
	registerCmd.Flags().StringVar(&registerURL, "url", "", "Backend base URL (or MCP endpoint)")
	registerCmd.Flags().StringVar(&registerTransport, "transport", "", "Backend transport: http, mcp or simulated")
	registerCmd.Flags().StringVar(&registerDescription, "description", "", "Human-readable description")
	registerCmd.Flags().StringVar(&registerVersion, "version", "", "Backend version")

	toolsCmd.Flags().IntVar(&toolsOffset, "offset", 0, "Index of the first tool to list")
	toolsCmd.Flags().IntVar(&toolsLimit, "limit", 0, "Maximum tools to list (0 uses the gateway default)")
	toolsCmd.Flags().StringVarP(&toolsQuery, "query", "q", "", "Filter tools by a case-insensitive keyword")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results (0 uses the gateway default)")
	searchCmd.Flags().Float64Var(&searchMinConfidence, "min-confidence", -1, "Minimum confidence in [0,1] (negative uses the gateway default)")
}

func runRegister(cmd *cobra.Command, args []string) error {
	spec := models.BackendSpec{
		Name:        args[0],
		Description: registerDescription,
		URL:         registerURL,
		Transport:   models.Transport(registerTransport),
		Version:     registerVersion,
	}
	info, err := newClient().RegisterServer(cmd.Context(), spec)
	if err != nil {
		return err
	}
	renderServers(cmd.OutOrStdout(), []models.BackendInfo{info})
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	c := newClient()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		tool, err := c.GetTool(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderTool(out, tool)
		return nil
	}

	if toolsQuery != "" {
		tools, err := c.SearchLocal(cmd.Context(), toolsQuery, toolsLimit)
		if err != nil {
			return err
		}
		renderTools(out, fmt.Sprintf("Tools matching %q (%d)", toolsQuery, len(tools)), tools, nil)
		return nil
	}

	page, err := c.ListTools(cmd.Context(), toolsOffset, toolsLimit)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Tools %d-%d of %d", page.Offset+1, page.Offset+len(page.Tools), page.Total)
	if len(page.Tools) == 0 {
		title = fmt.Sprintf("Tools (0 of %d)", page.Total)
	}
	renderTools(out, title, page.Tools, nil)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	result, err := newClient().SearchTools(cmd.Context(), query, searchLimit, searchMinConfidence)
	if err != nil {
		return err
	}
	renderTools(cmd.OutOrStdout(), fmt.Sprintf("Results for %q (%d)", query, len(result.Tools)), result.Tools, result.ConfidenceScores)
	return nil
}

func runCall(cmd *cobra.Command, args []string) error {
	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}
	resp, err := newClient().Execute(cmd.Context(), models.ToolExecutionRequest{
		ToolName:   args[0],
		Parameters: params,
	})
	if err != nil {
		return err
	}
	return renderExecution(cmd.OutOrStdout(), resp)
}

// parseParams decodes the optional JSON object argument of call.
func parseParams(args []string) (map[string]any, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(args[0]), &params); err != nil {
		return nil, fmt.Errorf("parameters must be a JSON object: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}
