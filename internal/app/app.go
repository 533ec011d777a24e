// Package app wires the store, cache, identity backend and repositories
// shared by every command.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/reconcile"
	"github.com/frcoutreach/outreachnet/internal/repository"
	"github.com/frcoutreach/outreachnet/pkg/config"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// App holds the initialized dependencies.
type App struct {
	Config     *config.Config
	Store      docstore.Store
	Cache      *cache.Cache
	Backend    identity.Backend
	Threads    *repository.ThreadRepository
	Comments   *repository.CommentRepository
	Profiles   *repository.ProfileStore
	Reconciler *reconcile.Reconciler
	Forum      *forum.Service
}

// New opens the store and cache, migrates collections and builds the
// repositories. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.WithComponent("app")

	store, err := docstore.Open(ctx, &cfg.Store, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	repo := repository.NewRepository(store, cfg.Forum.ConflictRetries)
	if err := repo.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		// The cache is optional; run without it.
		logger.Warn("Failed to connect to Redis, continuing without cache", zap.Error(err))
		redisCache = nil
	}

	backend, err := identity.NewBackend(ctx, &cfg.Auth, store, redisCache)
	if err != nil {
		redisCache.Close()
		store.Close()
		return nil, fmt.Errorf("failed to initialize identity backend: %w", err)
	}

	threads := repository.NewThreadRepository(repo)
	profiles := repository.NewProfileStore(repo, redisCache, cfg.Forum.ProfileCacheTTL)
	comments := repository.NewCommentRepository(repo, threads, profiles)
	reconciler := reconcile.New(threads, cfg.Forum.ReconcileInterval)

	logger.Info("Application initialized",
		zap.String("store", store.Driver()),
		zap.String("auth_provider", cfg.Auth.Provider),
		zap.Bool("cache", redisCache != nil))

	return &App{
		Config:     cfg,
		Store:      store,
		Cache:      redisCache,
		Backend:    backend,
		Threads:    threads,
		Comments:   comments,
		Profiles:   profiles,
		Reconciler: reconciler,
		Forum:      forum.NewService(threads, comments, profiles, reconciler),
	}, nil
}

// Close closes the cache and the store.
func (a *App) Close() {
	logger := logging.WithComponent("app")
	if err := a.Cache.Close(); err != nil {
		logger.Warn("Failed to close cache", zap.Error(err))
	}
	if err := a.Store.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}
