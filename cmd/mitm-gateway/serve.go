package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/app"
	"github.com/bobmcallan/mitm-gateway/internal/common"
	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/bobmcallan/mitm-gateway/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP and MCP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	configFiles []string
	servePort   int
	serveHost   string
)

func init() {
	serveCmd.Flags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Server port (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Server host (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	files := configFiles
	if len(files) == 0 {
		if path := discoverConfig(configSearchPaths()); path != "" {
			files = append(files, path)
		}
	}

	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	config.ApplyFlagOverrides(cfg, servePort, serveHost)

	if issues := cfg.Validate(); len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, errorStyle.Render("Configuration error: fields are missing or invalid"))
		fmt.Fprintln(os.Stderr, "")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Values can be set via TOML file, MITM_* environment variables, or CLI flags.")
		fmt.Fprintln(os.Stderr, "")
		return fmt.Errorf("%d configuration issue(s)", len(issues))
	}

	logger := common.NewLoggerFromConfig(cfg.LoggerConfig())

	logger.Info().
		Int("port", cfg.Server.Port).
		Str("host", cfg.Server.Host).
		Str("oracle", cfg.Oracle.Provider).
		Int("backends", len(cfg.Backends)).
		Str("config_files", fmt.Sprintf("%v", files)).
		Msg("configuration loaded")

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error().Str("error", err.Error()).Msg("application shutdown failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application.Start(ctx)

	if cfg.Discovery.WatchConfig {
		if err := application.WatchConfig(files); err != nil {
			logger.Warn().Str("error", err.Error()).Msg("config watch disabled")
		}
	}

	srv := server.New(application)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("mcp", fmt.Sprintf("http://%s:%d/mcp", cfg.Server.Host, cfg.Server.Port)).
		Msg("server ready")

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Str("error", err.Error()).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// configSearchPaths returns TOML files to auto-discover (first match wins).
// Binary-relative paths are tried first, with CWD and Docker fallbacks after.
func configSearchPaths() []string {
	candidates := []string{
		"mitm-gateway.toml",
		"config/mitm-gateway.toml",
		"docker/mitm-gateway.toml",
	}

	exe, err := os.Executable()
	if err != nil {
		return candidates
	}
	binDir := filepath.Dir(exe)

	paths := []string{
		filepath.Join(binDir, "mitm-gateway.toml"),
		filepath.Join(binDir, "config", "mitm-gateway.toml"),
	}
	return dedupePaths(append(paths, candidates...))
}

// dedupePaths drops entries that resolve to the same absolute path.
func dedupePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	deduped := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		deduped = append(deduped, p)
	}
	return deduped
}

func discoverConfig(paths []string) string {
	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
