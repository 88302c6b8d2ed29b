// Package main is the entry point for the promo studio server.
//
// MAIN PACKAGE IN GO:
// The main package is kept minimal. Its job is to:
// 1. Read configuration (.env file, then environment variables)
// 2. Create the logger
// 3. Hand both to internal/server and block until shutdown
//
// All actual logic lives in imported packages (internal/server, internal/session, etc.).
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/promo-studio/internal/config"
	"github.com/sakif/promo-studio/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Values in .env are loaded first; real environment variables win.
	// See internal/config for every supported key.
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL picks the minimum level (debug, info, warn, error).
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
