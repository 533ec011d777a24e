package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeBackend accepts any password equal to "pw" and tracks revoked tokens.
type fakeBackend struct {
	mu      sync.Mutex
	revoked map[string]bool
	names   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{revoked: map[string]bool{}, names: map[string]string{}}
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	return f.SignIn(ctx, email, password)
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*Identity, error) {
	if password != "pw" {
		return nil, &AuthError{Op: "sign_in", Err: ErrInvalidCredentials}
	}
	return &Identity{UID: "uid-" + email, Email: email, Token: "tok-" + email}, nil
}

func (f *fakeBackend) UpdateDisplayName(_ context.Context, token, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[token] = name
	return nil
}

func (f *fakeBackend) Verify(_ context.Context, token string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked[token] || token == "" {
		return nil, &AuthError{Op: "verify", Err: ErrTokenRevoked}
	}
	return &Identity{UID: "uid-resumed", Token: token}, nil
}

func (f *fakeBackend) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = true
	return nil
}

func TestClientListeners(t *testing.T) {
	c := NewClient(newFakeBackend())
	ctx := context.Background()

	var events []*Identity
	unsubscribe := c.OnIdentityChange(func(id *Identity) {
		events = append(events, id)
	})

	if len(events) != 1 || events[0] != nil {
		t.Fatalf("initial event = %v, want [nil]", events)
	}

	if _, err := c.SignIn(ctx, "a@example.org", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SignIn(ctx, "a@example.org", "wrong"); err == nil {
		t.Fatal("expected sign-in failure")
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatal(err)
	}

	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[1] == nil || events[1].UID != "uid-a@example.org" {
		t.Errorf("sign-in event = %+v", events[1])
	}
	if events[2] != nil {
		t.Errorf("sign-out event = %+v, want nil", events[2])
	}

	unsubscribe()
	c.SignIn(ctx, "b@example.org", "pw")
	if len(events) != 3 {
		t.Error("listener called after unsubscribe")
	}
}

func TestClientLateListenerSeesCurrent(t *testing.T) {
	c := NewClient(newFakeBackend())
	c.CreateAccount(context.Background(), "late@example.org", "pw")

	var got *Identity
	c.OnIdentityChange(func(id *Identity) { got = id })
	if got == nil || got.Email != "late@example.org" {
		t.Errorf("late listener got %+v", got)
	}
}

func TestClientSignOutRevokes(t *testing.T) {
	backend := newFakeBackend()
	c := NewClient(backend)
	ctx := context.Background()

	id, _ := c.SignIn(ctx, "s@example.org", "pw")
	if err := c.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if !backend.revoked[id.Token] {
		t.Error("token not revoked on sign-out")
	}
	if c.Current() != nil {
		t.Error("Current() not cleared")
	}
	if _, err := c.Resume(ctx, id.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Resume(revoked) error = %v", err)
	}

	// signing out twice is harmless
	if err := c.SignOut(ctx); err != nil {
		t.Errorf("second SignOut() error = %v", err)
	}
}

func TestClientUpdateDisplayName(t *testing.T) {
	backend := newFakeBackend()
	c := NewClient(backend)
	ctx := context.Background()

	if err := c.UpdateDisplayName(ctx, nil, "x"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("UpdateDisplayName(nil) error = %v", err)
	}

	id, _ := c.SignIn(ctx, "n@example.org", "pw")
	if err := c.UpdateDisplayName(ctx, id, "Robo Rangers"); err != nil {
		t.Fatal(err)
	}
	if c.Current().DisplayName != "Robo Rangers" || backend.names[id.Token] != "Robo Rangers" {
		t.Errorf("display name not propagated: %+v", c.Current())
	}
}
