package identity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// Client is a Provider backed by a Backend.
type Client struct {
	backend Backend
	logger  *zap.Logger

	mu        sync.Mutex
	current   *Identity
	nextID    int
	listeners map[int]func(*Identity)
}

// NewClient creates a signed-out client.
func NewClient(backend Backend) *Client {
	return &Client{
		backend:   backend,
		logger:    logging.WithComponent("identity"),
		listeners: make(map[int]func(*Identity)),
	}
}

// Resume restores a previously issued token. It fails if the backend no
// longer accepts the token.
func (c *Client) Resume(ctx context.Context, token string) (*Identity, error) {
	id, err := c.backend.Verify(ctx, token)
	if err != nil {
		return nil, authErr("resume", err)
	}
	id.Token = token
	c.set(id)
	return id, nil
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	id, err := c.backend.SignUp(ctx, email, password)
	if err != nil {
		return nil, authErr("create_account", err)
	}
	c.set(id)
	return id, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	id, err := c.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, authErr("sign_in", err)
	}
	c.set(id)
	return id, nil
}

// SignOut revokes the current token and notifies listeners. The local
// state is cleared even if revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil
	}

	err := c.backend.Revoke(ctx, cur.Token)
	c.set(nil)
	if err != nil {
		return authErr("sign_out", err)
	}
	return nil
}

func (c *Client) UpdateDisplayName(ctx context.Context, id *Identity, name string) error {
	if id == nil {
		return &AuthError{Op: "update_display_name", Err: ErrNotSignedIn}
	}
	if err := c.backend.UpdateDisplayName(ctx, id.Token, name); err != nil {
		return authErr("update_display_name", err)
	}
	id.DisplayName = name

	c.mu.Lock()
	if c.current != nil && c.current.UID == id.UID {
		c.current.DisplayName = name
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) OnIdentityChange(fn func(*Identity)) func() {
	c.mu.Lock()
	key := c.nextID
	c.nextID++
	c.listeners[key] = fn
	cur := c.current
	c.mu.Unlock()

	fn(copyIdentity(cur))

	return func() {
		c.mu.Lock()
		delete(c.listeners, key)
		c.mu.Unlock()
	}
}

// Current returns a copy of the signed-in identity, or nil.
func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyIdentity(c.current)
}

func (c *Client) set(id *Identity) {
	c.mu.Lock()
	c.current = id
	fns := make([]func(*Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if id != nil {
		c.logger.Debug("Identity changed", zap.String("uid", id.UID))
	} else {
		c.logger.Debug("Identity cleared")
	}
	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
