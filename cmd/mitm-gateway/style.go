package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bobmcallan/mitm-gateway/internal/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99"))
)

func renderServers(w io.Writer, servers []models.BackendInfo) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Backends (%d)", len(servers))))
	for _, s := range servers {
		status := okStyle.Render("healthy")
		if !s.Healthy {
			status = errorStyle.Render("unhealthy")
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", nameStyle.Render(s.Name), status, labelStyle.Render(fmt.Sprintf("%d tools, %s", s.ToolsCount, s.Transport)))
		if s.Description != "" {
			fmt.Fprintf(w, "    %s\n", s.Description)
		}
		if s.LastError != "" {
			fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("last error:"), s.LastError)
		}
	}
}

// renderTools prints tools in the order given. When scores is non-nil the
// confidence of each tool is shown next to its name.
func renderTools(w io.Writer, title string, tools []models.ToolDefinition, scores map[string]float64) {
	fmt.Fprintln(w, headerStyle.Render(title))
	for _, t := range tools {
		line := "  " + nameStyle.Render(t.Name)
		if scores != nil {
			line += "  " + scoreStyle.Render(fmt.Sprintf("%.2f", scores[t.Name]))
		}
		line += "  " + labelStyle.Render(t.BackendName)
		fmt.Fprintln(w, line)
		if t.Description != "" {
			fmt.Fprintf(w, "    %s\n", t.Description)
		}
	}
}

func renderTool(w io.Writer, t models.ToolDefinition) {
	fmt.Fprintln(w, headerStyle.Render(t.Name))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("backend:"), t.BackendName)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("description:"), t.Description)
	if t.ReturnType != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("returns:"), t.ReturnType)
	}
	if len(t.Parameters) == 0 {
		return
	}
	fmt.Fprintln(w, labelStyle.Render("parameters:"))

	names := make([]string, 0, len(t.Parameters))
	for name := range t.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := t.Parameters[name]
		var flags []string
		if p.Required {
			flags = append(flags, "required")
		}
		if p.Default != nil {
			flags = append(flags, fmt.Sprintf("default=%v", p.Default))
		}
		extra := ""
		if len(flags) > 0 {
			extra = " (" + strings.Join(flags, ", ") + ")"
		}
		fmt.Fprintf(w, "  %s %s%s  %s\n", nameStyle.Render(name), string(p.Type), extra, p.Description)
	}
}

func renderExecution(w io.Writer, resp models.ToolExecutionResponse) error {
	status := okStyle.Render("success")
	if !resp.Success {
		status = errorStyle.Render("failed")
	}
	fmt.Fprintf(w, "%s %s  %s\n", status, labelStyle.Render(resp.ExecutionID), labelStyle.Render(fmt.Sprintf("%.3fs", resp.ExecutionTime)))
	if !resp.Success {
		fmt.Fprintln(w, resp.Error)
		return nil
	}
	out, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}
