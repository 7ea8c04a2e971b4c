package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lcalzada-xor/iotguard/internal/app"
	"github.com/lcalzada-xor/iotguard/internal/config"
	"github.com/lcalzada-xor/iotguard/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// load config
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	// Setup Structured Logging
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize Tracing
	if cfg.Trace {
		shutdownTracer, err := telemetry.InitTracer(os.Stderr, version)
		if err != nil {
			slog.Error("Failed to init tracer", "error", err)
		} else {
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					slog.Error("Failed to shutdown tracer", "error", err)
				}
			}()
		}
	}

	// Initialize Application
	application, err := app.New(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// Root Context with cancellation on Interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("iotguard starting", "version", version)

	// Run Application
	if err := application.Run(ctx); err != nil {
		slog.Error("Application error", "error", err)
		cancel()
	}
}
