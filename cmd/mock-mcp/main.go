// Command mock-mcp runs a small document backend that speaks both the plain
// HTTP tool protocol and MCP. It is used to exercise mitm-gateway locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/common"
)

var (
	port     = flag.Int("port", 8001, "Listen port")
	host     = flag.String("host", "0.0.0.0", "Listen host")
	logLevel = flag.String("log-level", "info", "Log level")
)

func main() {
	flag.Parse()

	logger := common.NewLogger(*logLevel)
	tb := newToolbox(newDocumentStore())

	addr := fmt.Sprintf("%s:%d", *host, *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(tb, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("address", addr).Int("tools", len(tb.order)).Msg("mock backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Str("error", err.Error()).Msg("mock backend failed")
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Str("error", err.Error()).Msg("shutdown failed")
	}
}
