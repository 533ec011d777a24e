package seed

import (
	"context"
	"testing"
	"time"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/repository"
	"github.com/frcoutreach/outreachnet/pkg/config"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	store, err := docstore.OpenGorm(&config.StoreConfig{Driver: "sqlite", URL: ":memory:"}, "error")
	if err != nil {
		t.Fatalf("OpenGorm() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	repo := repository.NewRepository(store, 3)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	backend, err := identity.NewBackend(ctx, &config.AuthConfig{Provider: "local", JWTSecret: "seed-secret", TokenTTL: time.Hour}, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	threads := repository.NewThreadRepository(repo)
	profiles := repository.NewProfileStore(repo, nil, time.Minute)
	comments := repository.NewCommentRepository(repo, threads, profiles)
	svc := forum.NewService(threads, comments, profiles, nil)

	summary, err := New(backend, profiles, svc).Run(ctx, Options{
		Users:             3,
		ThreadsPerUser:    2,
		CommentsPerThread: 2,
		Seed:              42,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(summary.Users) != 3 || summary.Threads != 6 || summary.Comments != 12 {
		t.Errorf("summary = %+v", summary)
	}

	page, err := threads.GetThreads(ctx, "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Threads) != 6 {
		t.Fatalf("stored threads = %d, want 6", len(page.Threads))
	}
	for _, th := range page.Threads {
		if th.CommentCount != 2 {
			t.Errorf("thread %s commentCount = %d, want 2", th.ID, th.CommentCount)
		}
		if th.Author.PhotoURL == nil {
			t.Errorf("thread %s has no author photo", th.ID)
		}
	}

	if _, err := backend.SignIn(ctx, summary.Users[0], "outreach123"); err != nil {
		t.Errorf("SignIn(seeded user) error = %v", err)
	}
}
