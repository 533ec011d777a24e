package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/app"
	"github.com/frcoutreach/outreachnet/internal/seed"
	"github.com/frcoutreach/outreachnet/pkg/config"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

func main() {
	var opts seed.Options
	flag.IntVar(&opts.Users, "users", 10, "accounts to create")
	flag.IntVar(&opts.ThreadsPerUser, "threads", 2, "threads per account")
	flag.IntVar(&opts.CommentsPerThread, "comments", 3, "comments per thread")
	flag.StringVar(&opts.Password, "password", "outreach123", "password for every seeded account")
	flag.Int64Var(&opts.Seed, "seed", 0, "random seed, 0 for a random run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()
	logger := logging.GetLogger()

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	summary, err := seed.New(a.Backend, a.Profiles, a.Forum).Run(ctx, opts)
	if err != nil {
		logger.Fatal("Seed failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("Failed to write summary", zap.Error(err))
	}
}
