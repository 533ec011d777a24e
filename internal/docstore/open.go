package docstore

import (
	"context"
	"fmt"

	"github.com/frcoutreach/outreachnet/pkg/config"
)

// Open returns the driver selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.StoreConfig, logLevel string) (Store, error) {
	switch cfg.Driver {
	case "postgres", "sqlite":
		return OpenGorm(cfg, logLevel)
	case "mongo":
		return OpenMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
