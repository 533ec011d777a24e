// Package session tracks who is signed in. A Context follows one identity
// provider and resolves each identity to a stored profile; a Resolver does
// the same for a bearer token on a single request.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// State is the resolution state of a session.
type State int

const (
	Unresolved State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a session. User is set only when
// State is Authenticated.
type Snapshot struct {
	State   State        `json:"state"`
	Loading bool         `json:"loading"`
	User    *models.User `json:"user,omitempty"`
}

// Profiles is the profile storage a session needs.
type Profiles interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	Create(ctx context.Context, p *models.Profile) error
}

var (
	ErrNotStarted     = errors.New("session not started")
	ErrAlreadyStarted = errors.New("session already started")
)

// Context is the session state of one client. The owner creates it with
// New, calls Start once and Close when done.
type Context struct {
	provider identity.Provider
	profiles Profiles
	logger   *zap.Logger

	mu          sync.Mutex
	snap        Snapshot
	seq         uint64
	gen         uint64
	changed     chan struct{}
	base        context.Context
	stop        context.CancelFunc
	cancel      context.CancelFunc
	unsubscribe func()
	held        int
	closed      bool
	subs        map[int]*subscriber
	nextSub     int

	// notifyMu serialises delivery; it is taken before mu.
	notifyMu sync.Mutex

	wg sync.WaitGroup
}

// subscriber tracks the newest snapshot delivered to fn.
type subscriber struct {
	fn   func(Snapshot)
	seen uint64
}

// New creates an unresolved session. A nil logger uses the global logger.
func New(provider identity.Provider, profiles Profiles, logger *zap.Logger) *Context {
	if logger == nil {
		logger = logging.WithComponent("session")
	}
	return &Context{
		provider: provider,
		profiles: profiles,
		logger:   logger,
		snap:     Snapshot{State: Unresolved, Loading: true},
		changed:  make(chan struct{}),
		subs:     make(map[int]*subscriber),
	}
}

// Start begins following the provider. Profile lookups run under ctx.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.base != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.base, c.stop = context.WithCancel(ctx)
	c.mu.Unlock()

	// The provider reports the current identity synchronously.
	unsubscribe := c.provider.OnIdentityChange(c.onIdentity)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return nil
}

// Close stops following the provider and waits for in-flight lookups.
func (c *Context) Close() {
	c.mu.Lock()
	unsubscribe, stop := c.unsubscribe, c.stop
	c.unsubscribe = nil
	c.closed = true
	c.gen++
	c.cancelLookup()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		stop()
	}
	c.wg.Wait()
}

// Snapshot returns the current session state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn to receive state changes. fn is called once with
// the current state before Subscribe returns. Calls may come from any
// goroutine but never overlap, and fn never sees a snapshot older than one
// it already received; a superseded state may be skipped. fn must not call
// Login, Logout or Register.
func (c *Context) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	key := c.nextSub
	c.nextSub++
	sub := &subscriber{fn: fn, seen: c.seq}
	c.subs[key] = sub
	snap := c.snap
	c.mu.Unlock()

	fn(snap)

	return func() {
		c.mu.Lock()
		delete(c.subs, key)
		c.mu.Unlock()
	}
}

// Wait blocks until the session is resolved or ctx is done.
func (c *Context) Wait(ctx context.Context) (Snapshot, error) {
	return c.waitFor(ctx, 0)
}

// waitFor blocks until the session is resolved at a generation after gen.
func (c *Context) waitFor(ctx context.Context, gen uint64) (Snapshot, error) {
	for {
		c.mu.Lock()
		if c.base == nil {
			c.mu.Unlock()
			return Snapshot{}, ErrNotStarted
		}
		if c.gen > gen && c.snap.State != Unresolved {
			snap := c.snap
			c.mu.Unlock()
			return snap, nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// Login signs in and waits for the resulting session.
func (c *Context) Login(ctx context.Context, email, password string) (Snapshot, error) {
	gen := c.generation()
	if _, err := c.provider.SignIn(ctx, email, password); err != nil {
		return c.Snapshot(), err
	}
	return c.waitFor(ctx, gen)
}

// Logout signs out of the provider and forces the session anonymous even if
// sign-out fails or a profile lookup is still running.
func (c *Context) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.cancelLookup()
	c.mu.Unlock()

	err := c.provider.SignOut(ctx)
	if err != nil {
		c.logger.Warn("Provider sign-out failed", zap.Error(err))
	}

	c.mu.Lock()
	c.gen++
	c.cancelLookup()
	c.setLocked(Snapshot{State: Anonymous})
	seq, snap := c.seq, c.snap
	c.mu.Unlock()
	c.notify(seq, snap)
	return err
}

// Register creates an account, sets its display name and writes its profile.
// The steps are not transactional: a failure after the account is created
// leaves the account without a complete profile. Identity events are held
// until the profile exists so the new user resolves in one step.
func (c *Context) Register(ctx context.Context, email, password, displayName string) (Snapshot, error) {
	c.mu.Lock()
	c.held++
	c.mu.Unlock()

	gen := c.generation()
	err := c.register(ctx, email, password, displayName)

	c.mu.Lock()
	c.held--
	c.mu.Unlock()

	c.onIdentity(c.provider.Current())
	if err != nil {
		return c.Snapshot(), err
	}
	return c.waitFor(ctx, gen)
}

func (c *Context) register(ctx context.Context, email, password, displayName string) error {
	id, err := c.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.provider.UpdateDisplayName(ctx, id, displayName); err != nil {
		c.logger.Error("Failed to set display name", zap.String("uid", id.UID), zap.Error(err))
		return err
	}
	if err := c.profiles.Create(ctx, NewProfile(id, displayName)); err != nil {
		c.logger.Error("Failed to create profile", zap.String("uid", id.UID), zap.Error(err))
		return err
	}
	c.logger.Info("User registered", zap.String("uid", id.UID))
	return nil
}

func (c *Context) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// onIdentity handles a provider event. Every event supersedes the lookup
// started by the previous one.
func (c *Context) onIdentity(id *identity.Identity) {
	c.mu.Lock()
	if c.base == nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.cancelLookup()

	switch {
	case c.held > 0:
		c.setLocked(Snapshot{State: Unresolved, Loading: true})
	case id == nil:
		c.setLocked(Snapshot{State: Anonymous})
	default:
		ctx, cancel := context.WithCancel(c.base)
		c.cancel = cancel
		c.setLocked(Snapshot{State: Unresolved, Loading: true})
		c.wg.Add(1)
		go c.resolve(ctx, gen, id)
	}
	seq, snap := c.seq, c.snap
	c.mu.Unlock()
	c.notify(seq, snap)
}

func (c *Context) resolve(ctx context.Context, gen uint64, id *identity.Identity) {
	defer c.wg.Done()

	p, err := c.profiles.Get(ctx, id.UID)

	c.mu.Lock()
	if gen != c.gen || ctx.Err() != nil {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale profile lookup", zap.String("uid", id.UID))
		return
	}
	c.cancelLookup()
	if err != nil {
		c.logger.Error("Profile lookup failed", zap.String("uid", id.UID), zap.Error(err))
		c.setLocked(Snapshot{State: Anonymous})
	} else {
		c.setLocked(Snapshot{State: Authenticated, User: Merge(id, p)})
	}
	seq, snap := c.seq, c.snap
	c.mu.Unlock()
	c.notify(seq, snap)
}

func (c *Context) cancelLookup() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Context) setLocked(s Snapshot) {
	c.snap = s
	c.seq++
	close(c.changed)
	c.changed = make(chan struct{})
}

// notify delivers snapshot seq to every subscriber that has not yet seen it
// or a newer one.
func (c *Context) notify(seq uint64, snap Snapshot) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	subs := make([]*subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		if seq <= sub.seen {
			continue
		}
		sub.seen = seq
		sub.fn(snap)
	}
}
