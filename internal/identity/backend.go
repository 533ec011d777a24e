package identity

import (
	"context"
	"fmt"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/pkg/config"
)

// NewBackend returns the backend selected by cfg.Provider. The local
// backend's credentials collection is migrated before it is returned.
func NewBackend(ctx context.Context, cfg *config.AuthConfig, store docstore.Store, c *cache.Cache) (Backend, error) {
	switch cfg.Provider {
	case "local", "":
		local := NewLocal(store, cfg.JWTSecret, cfg.TokenTTL, c)
		if err := local.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate credentials: %w", err)
		}
		return local, nil
	case "toolkit":
		return NewToolkit(cfg, c)
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}
