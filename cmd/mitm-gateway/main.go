package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/client"
	"github.com/bobmcallan/mitm-gateway/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mitm-gateway",
	Short: "mitm-gateway - MCP tool gateway",
	Long: `mitm-gateway aggregates the tools of many MCP backends into one catalog,
ranks them against natural-language queries and forwards executions to the
backend that owns each tool.`,
	Version:       config.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	gatewayURL     string
	requestTimeout time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", envOr("MITM_GATEWAY_URL", "http://localhost:8000"), "Gateway address used by client commands")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "Request timeout for client commands")
	rootCmd.SetVersionTemplate(fmt.Sprintf("mitm-gateway version %s\n", config.GetFullVersion()))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serversCmd, registerCmd, unregisterCmd, refreshCmd)
	rootCmd.AddCommand(toolsCmd, searchCmd, callCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func newClient() *client.GatewayClient {
	return client.NewGatewayClient(gatewayURL, requestTimeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
