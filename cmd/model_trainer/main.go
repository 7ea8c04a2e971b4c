package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/lcalzada-xor/iotguard/internal/adapters/storage"
	"github.com/lcalzada-xor/iotguard/internal/config"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/audit"
	"github.com/lcalzada-xor/iotguard/internal/core/services/riskmodel"
)

const actor = "model_trainer"

// Retrains the risk model from scan history and prints the resulting
// model metadata. Takes the same flags, file and environment as iotguard.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	store, err := storage.Open(storage.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.DSN(),
		Debug:  cfg.Database.Debug,
	})
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	model := riskmodel.New(store, store, riskmodel.Config{
		MinSamples: cfg.Model.MinSamples,
		MaxDepth:   cfg.Model.MaxDepth,
		Seed:       cfg.Model.Seed,
	}, logger)

	ctx := context.Background()
	slog.Info("Retraining risk model", "db", cfg.Database.Driver, "min_samples", cfg.Model.MinSamples, "max_depth", cfg.Model.MaxDepth)

	err = model.Retrain(ctx)
	info := model.Info()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(info); encErr != nil {
		slog.Warn("Failed to print model info", "error", encErr)
	}

	switch {
	case errors.Is(err, domain.ErrInsufficientHistory):
		slog.Warn("Not enough scan history to train", "error", err)
		os.Exit(3)
	case err != nil:
		slog.Error("Retrain failed", "error", err)
		os.Exit(1)
	}

	details := "samples=" + strconv.Itoa(info.SampleCount)
	if err := audit.NewAuditService(store).Log(ctx, actor, domain.ActionModelRetrained, "risk_model", details); err != nil {
		slog.Warn("Failed to write audit log", "error", err)
	}
	slog.Info("Risk model saved", "samples", info.SampleCount, "nodes", info.Nodes)
}
