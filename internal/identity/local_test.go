package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/pkg/config"
)

func newTestLocal(t *testing.T, c *cache.Cache) *Local {
	t.Helper()
	store, err := docstore.OpenGorm(&config.StoreConfig{Driver: "sqlite", URL: ":memory:"}, "error")
	if err != nil {
		t.Fatalf("OpenGorm() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	l := NewLocal(store, "test-secret", time.Hour, c)
	l.cost = bcrypt.MinCost
	if err := l.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return l
}

func TestLocalSignUpSignIn(t *testing.T) {
	l := newTestLocal(t, nil)
	ctx := context.Background()

	id, err := l.SignUp(ctx, " Coach@Example.org ", "hunter22")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if id.UID == "" || id.Email != "coach@example.org" || id.Token == "" {
		t.Errorf("SignUp() = %+v", id)
	}

	signedIn, err := l.SignIn(ctx, "coach@example.org", "hunter22")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.UID != id.UID {
		t.Errorf("SignIn() uid = %s, want %s", signedIn.UID, id.UID)
	}

	verified, err := l.Verify(ctx, signedIn.Token)
	if err != nil || verified.UID != id.UID {
		t.Errorf("Verify() = %+v, %v", verified, err)
	}
}

func TestLocalErrors(t *testing.T) {
	l := newTestLocal(t, nil)
	ctx := context.Background()
	if _, err := l.SignUp(ctx, "mentor@example.org", "secret1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"duplicate email", func() error { _, err := l.SignUp(ctx, "MENTOR@example.org", "secret1"); return err }, ErrEmailExists},
		{"weak password", func() error { _, err := l.SignUp(ctx, "new@example.org", "123"); return err }, ErrWeakPassword},
		{"bad email", func() error { _, err := l.SignUp(ctx, "not-an-email", "secret1"); return err }, ErrInvalidEmail},
		{"wrong password", func() error { _, err := l.SignIn(ctx, "mentor@example.org", "nope!!"); return err }, ErrInvalidCredentials},
		{"unknown user", func() error { _, err := l.SignIn(ctx, "ghost@example.org", "secret1"); return err }, ErrInvalidCredentials},
		{"garbage token", func() error { _, err := l.Verify(ctx, "abc.def.ghi"); return err }, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var ae *AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("error = %v, want AuthError", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLocalTokenExpiry(t *testing.T) {
	l := newTestLocal(t, nil)
	ctx := context.Background()
	id, err := l.SignUp(ctx, "old@example.org", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	l.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := l.Verify(ctx, id.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify(expired) error = %v", err)
	}
	if err := l.Revoke(ctx, id.Token); err != nil {
		t.Errorf("Revoke(expired) error = %v", err)
	}
}

func TestLocalForeignSignature(t *testing.T) {
	l := newTestLocal(t, nil)
	other := NewLocal(l.store, "different-secret", time.Hour, nil)
	other.cost = bcrypt.MinCost
	id, err := other.SignUp(context.Background(), "x@example.org", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Verify(context.Background(), id.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(foreign) error = %v", err)
	}
}

func TestLocalRevoke(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	for name, c := range map[string]*cache.Cache{
		"memory": nil,
		"redis":  cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
	} {
		t.Run(name, func(t *testing.T) {
			l := newTestLocal(t, c)
			ctx := context.Background()
			email := name + "@example.org"
			id, err := l.SignUp(ctx, email, "secret1")
			if err != nil {
				t.Fatal(err)
			}
			second, _ := l.SignIn(ctx, email, "secret1")

			if err := l.Revoke(ctx, id.Token); err != nil {
				t.Fatal(err)
			}
			if _, err := l.Verify(ctx, id.Token); !errors.Is(err, ErrTokenRevoked) {
				t.Errorf("Verify(revoked) error = %v", err)
			}
			if _, err := l.Verify(ctx, second.Token); err != nil {
				t.Errorf("other session affected: %v", err)
			}
		})
	}
}

func TestLocalUpdateDisplayName(t *testing.T) {
	l := newTestLocal(t, nil)
	ctx := context.Background()
	id, _ := l.SignUp(ctx, "named@example.org", "secret1")

	if err := l.UpdateDisplayName(ctx, id.Token, "Team 254"); err != nil {
		t.Fatal(err)
	}
	verified, err := l.Verify(ctx, id.Token)
	if err != nil || verified.DisplayName != "Team 254" {
		t.Errorf("Verify() = %+v, %v", verified, err)
	}
}
