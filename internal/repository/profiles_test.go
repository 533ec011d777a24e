package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/frcoutreach/outreachnet/internal/cache"
	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/models"
)

func TestProfileCreateGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := &models.Profile{DisplayName: "Mentor Mo", Email: "mo@example.org"}
	p.ID = "uid-mo"
	if err := f.profiles.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := f.profiles.Get(ctx, "uid-mo")
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != models.RoleUser || got.Status != models.StatusActive || got.Email != "mo@example.org" {
		t.Errorf("Get() = %+v", got)
	}

	dup := &models.Profile{DisplayName: "Imposter"}
	dup.ID = "uid-mo"
	var we *WriteError
	if err := f.profiles.Create(ctx, dup); !errors.As(err, &we) || !errors.Is(err, docstore.ErrDuplicate) {
		t.Errorf("duplicate Create() error = %v", err)
	}

	_, err = f.profiles.Get(ctx, "nobody")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "user" {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestProfileAdminEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &models.Profile{DisplayName: "Bea", Email: "bea@example.org"}
	p.ID = "uid-bea"
	f.profiles.Create(ctx, p)

	admin, err := f.profiles.SetRole(ctx, "uid-bea", models.RoleAdmin)
	if err != nil || admin.Role != models.RoleAdmin {
		t.Fatalf("SetRole() = %+v, %v", admin, err)
	}
	if _, err := f.profiles.SetRole(ctx, "uid-bea", "overlord"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("SetRole(invalid) error = %v", err)
	}

	banned, err := f.comments.BanUser(ctx, "uid-bea")
	if err != nil || banned.Status != models.StatusBanned {
		t.Fatalf("BanUser() = %+v, %v", banned, err)
	}
	active, err := f.comments.UnbanUser(ctx, "uid-bea")
	if err != nil || active.Status != models.StatusActive {
		t.Fatalf("UnbanUser() = %+v, %v", active, err)
	}
	if _, err := f.comments.BanUser(ctx, "ghost"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("BanUser(missing) error = %v", err)
	}

	name := "Bea B."
	photo := "https://example.org/bea.png"
	edited, err := f.profiles.UpdateProfile(ctx, "uid-bea", ProfileUpdate{DisplayName: &name, PhotoURL: &photo})
	if err != nil {
		t.Fatal(err)
	}
	if edited.DisplayName != name || edited.PhotoURL == nil || *edited.PhotoURL != photo || edited.Email != "bea@example.org" {
		t.Errorf("UpdateProfile() = %+v", edited)
	}

	all, err := f.profiles.List(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("List() = %v, %v", all, err)
	}
}

func TestProfileCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	f := newFixture(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	profiles := NewProfileStore(f.profiles.Repository, c, time.Minute)
	ctx := context.Background()

	p := &models.Profile{DisplayName: "Cached", Email: "c@example.org"}
	p.ID = "uid-c"
	if err := profiles.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	if _, err := profiles.Get(ctx, "uid-c"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("outreachnet:profile:uid-c") {
		t.Fatal("profile not cached after read")
	}

	if _, err := profiles.SetStatus(ctx, "uid-c", models.StatusSuspended); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("outreachnet:profile:uid-c") {
		t.Error("cache not invalidated by write")
	}

	got, err := profiles.Get(ctx, "uid-c")
	if err != nil || got.Status != models.StatusSuspended {
		t.Errorf("Get() after write = %+v, %v", got, err)
	}

	// a cached entry is served without touching the store
	f.store.Store.Update(ctx, models.CollectionUsers, "uid-c", docstore.Patch{Set: map[string]interface{}{"display_name": "Changed"}})
	cached, _ := profiles.Get(ctx, "uid-c")
	if cached.DisplayName != "Cached" {
		t.Errorf("DisplayName = %q, want cached value", cached.DisplayName)
	}
}
