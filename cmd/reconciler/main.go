package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/app"
	"github.com/frcoutreach/outreachnet/pkg/config"
	"github.com/frcoutreach/outreachnet/pkg/logging"
	"github.com/frcoutreach/outreachnet/pkg/telemetry"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting OutreachNet Reconciler")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	if *once {
		report, err := a.Reconciler.RunOnce(ctx)
		if err != nil {
			logger.Error("Reconciliation failed", zap.Error(err))
			return
		}
		logger.Info("Reconciliation complete",
			zap.Int("threads", report.Threads),
			zap.Int("repaired", len(report.Repaired)),
			zap.Int("failed", report.Failed))
		return
	}

	if err := a.Reconciler.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Reconciler stopped", zap.Error(err))
	}
	logger.Info("Reconciler exited")
}
