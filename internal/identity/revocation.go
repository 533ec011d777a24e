package identity

import (
	"context"
	"sync"
	"time"

	"github.com/frcoutreach/outreachnet/internal/cache"
)

// revocations remembers revoked token ids until the tokens would have
// expired anyway. Redis is used when available, otherwise an in-process map.
type revocations struct {
	cache *cache.Cache

	mu    sync.Mutex
	local map[string]time.Time
	now   func() time.Time
}

func newRevocations(c *cache.Cache) *revocations {
	return &revocations{cache: c, local: make(map[string]time.Time), now: time.Now}
}

func revokedKey(id string) string {
	return "revoked:" + id
}

func (r *revocations) add(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if r.cache != nil {
		return r.cache.Set(ctx, revokedKey(id), "1", ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[id] = until
	for k, exp := range r.local {
		if !exp.After(r.now()) {
			delete(r.local, k)
		}
	}
	return nil
}

func (r *revocations) contains(ctx context.Context, id string) (bool, error) {
	if r.cache != nil {
		return r.cache.Exists(ctx, revokedKey(id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.local[id]
	return ok && exp.After(r.now()), nil
}
