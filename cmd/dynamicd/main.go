// Command dynamicd serves a small application behind a dynamic handler
// registry and exposes an admin API to switch its handlers at runtime.
//
// Configuration is read from DYNAMIC_* environment variables.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

func main() {
	opts := NewOptions()
	if err := opts.Update(); err != nil {
		fmt.Fprintln(os.Stderr, "dynamicd:", err)
		os.Exit(2)
	}
	if err := opts.Verify(); err != nil {
		fmt.Fprintln(os.Stderr, "dynamicd: invalid configuration:", err)
		os.Exit(2)
	}

	logger := newLogger(opts.LogLevel, opts.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           newServer(opts, logger).handler(os.Stdout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", opts.Addr, "features", opts.Features)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
