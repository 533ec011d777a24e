package docstore_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/pkg/config"
)

func openSQLite(t *testing.T) docstore.Store {
	t.Helper()
	store, err := docstore.OpenGorm(&config.StoreConfig{Driver: "sqlite", URL: ":memory:"}, "error")
	if err != nil {
		t.Fatalf("OpenGorm() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	migrate(t, store)
	return store
}

func migrate(t *testing.T, store docstore.Store) {
	t.Helper()
	err := store.Migrate(context.Background(),
		docstore.Collection{Name: models.CollectionThreads, Model: &models.Thread{}, Indexes: [][]string{{"category", "created_at"}}},
	)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
}

// stores returns every driver available in this environment.
func stores(t *testing.T) map[string]docstore.Store {
	out := map[string]docstore.Store{"sqlite": openSQLite(t)}
	if uri := os.Getenv("OUTREACH_TEST_MONGO_URI"); uri != "" {
		db := "outreach_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		m, err := docstore.OpenMongo(context.Background(), &config.StoreConfig{Driver: "mongo", MongoURI: uri, MongoDatabase: db})
		if err != nil {
			t.Fatalf("OpenMongo() error = %v", err)
		}
		t.Cleanup(func() { m.Close() })
		migrate(t, m)
		out["mongo"] = m
	}
	return out
}

func newThread(title string, cat models.Category) *models.Thread {
	return &models.Thread{
		Title:    title,
		Content:  "content for " + title,
		Category: cat,
		Tags:     models.StringList{"robots"},
		UserID:   "u1",
		Author:   models.Author{DisplayName: "Ada"},
		Likes:    models.StringSet{},
	}
}

func TestCreateGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			th := newThread("first", models.CategoryFundraising)
			id, err := store.Create(ctx, models.CollectionThreads, th)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if id == "" || th.ID != id || th.Version != 1 || th.CreatedAt.IsZero() {
				t.Fatalf("Meta not stamped: %+v", th.Meta)
			}

			var got models.Thread
			if err := store.Get(ctx, models.CollectionThreads, id, &got); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Title != "first" || got.Author.DisplayName != "Ada" || len(got.Tags) != 1 {
				t.Errorf("Get() = %+v", got)
			}
			if !got.CreatedAt.Equal(th.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, th.CreatedAt)
			}

			err = store.Get(ctx, models.CollectionThreads, "missing", &got)
			if !errors.Is(err, docstore.ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			dup := newThread("dup", models.CategoryOther)
			if err := store.Put(ctx, models.CollectionThreads, id, dup); !errors.Is(err, docstore.ErrDuplicate) {
				t.Errorf("Put(existing) error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestFindKeyset(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var ids []string
			for i := 0; i < 5; i++ {
				cat := models.CategoryMentorship
				if i%2 == 1 {
					cat = models.CategoryOther
				}
				id, err := store.Create(ctx, models.CollectionThreads, newThread("t", cat))
				if err != nil {
					t.Fatal(err)
				}
				ids = append(ids, id)
			}

			var page []models.Thread
			if err := store.Find(ctx, models.CollectionThreads, docstore.Query{Desc: true, Limit: 2}, &page); err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(page) != 2 || page[0].ID != ids[4] || page[1].ID != ids[3] {
				t.Fatalf("first page = %v", threadIDs(page))
			}

			cur := docstore.CursorOf(&page[1])
			decoded, err := docstore.DecodeCursor(cur.Encode())
			if err != nil {
				t.Fatalf("DecodeCursor() error = %v", err)
			}

			var next []models.Thread
			if err := store.Find(ctx, models.CollectionThreads, docstore.Query{Desc: true, Limit: 2, After: decoded}, &next); err != nil {
				t.Fatal(err)
			}
			if len(next) != 2 || next[0].ID != ids[2] || next[1].ID != ids[1] {
				t.Fatalf("second page = %v", threadIDs(next))
			}

			var asc []models.Thread
			q := docstore.Query{Filters: []docstore.Eq{{Field: "category", Value: models.CategoryMentorship}}}
			if err := store.Find(ctx, models.CollectionThreads, q, &asc); err != nil {
				t.Fatal(err)
			}
			if len(asc) != 3 || asc[0].ID != ids[0] || asc[2].ID != ids[4] {
				t.Errorf("filtered asc = %v", threadIDs(asc))
			}

			n, err := store.Count(ctx, models.CollectionThreads, docstore.Eq{Field: "category", Value: models.CategoryOther})
			if err != nil || n != 2 {
				t.Errorf("Count() = %d, %v", n, err)
			}
		})
	}
}

func TestFindRejectsBadField(t *testing.T) {
	store := openSQLite(t)
	var out []models.Thread
	q := docstore.Query{Filters: []docstore.Eq{{Field: "title; DROP TABLE threads", Value: 1}}}
	if err := store.Find(context.Background(), models.CollectionThreads, q, &out); !errors.Is(err, docstore.ErrInvalidQuery) {
		t.Errorf("Find() error = %v, want ErrInvalidQuery", err)
	}
	if err := store.Find(context.Background(), models.CollectionThreads, docstore.Query{}, out); !errors.Is(err, docstore.ErrInvalidQuery) {
		t.Errorf("Find(non-pointer) error = %v, want ErrInvalidQuery", err)
	}
}

func TestUpdateVersioning(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			th := newThread("versioned", models.CategoryOther)
			id, err := store.Create(ctx, models.CollectionThreads, th)
			if err != nil {
				t.Fatal(err)
			}

			touched, err := store.Update(ctx, models.CollectionThreads, id, docstore.Patch{
				Set:       map[string]interface{}{"view_count": 1, "likes": models.StringSet{"u2"}},
				IfVersion: 1,
				Touch:     true,
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			var got models.Thread
			if err := store.Get(ctx, models.CollectionThreads, id, &got); err != nil {
				t.Fatal(err)
			}
			if !got.UpdatedAt.Equal(touched) {
				t.Errorf("UpdatedAt = %v, Update() returned %v", got.UpdatedAt, touched)
			}
			if got.Version != 2 || got.ViewCount != 1 || !got.Likes.Contains("u2") {
				t.Errorf("after update = %+v", got)
			}
			if !got.UpdatedAt.After(got.CreatedAt) {
				t.Errorf("UpdatedAt %v not after CreatedAt %v", got.UpdatedAt, got.CreatedAt)
			}

			stale := docstore.Patch{Set: map[string]interface{}{"view_count": 9}, IfVersion: 1}
			if _, err := store.Update(ctx, models.CollectionThreads, id, stale); !errors.Is(err, docstore.ErrConflict) {
				t.Errorf("stale Update() error = %v, want ErrConflict", err)
			}
			if _, err := store.Update(ctx, models.CollectionThreads, "missing", stale); !errors.Is(err, docstore.ErrNotFound) {
				t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
			}

			bad := docstore.Patch{Set: map[string]interface{}{"version": 7}}
			if _, err := store.Update(ctx, models.CollectionThreads, id, bad); !errors.Is(err, docstore.ErrInvalidQuery) {
				t.Errorf("Update(version) error = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	store := openSQLite(t)
	if err := store.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
	if store.Driver() != "sqlite" {
		t.Errorf("Driver() = %q", store.Driver())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := docstore.Open(context.Background(), &config.StoreConfig{Driver: "dbase"}, "error")
	if err == nil {
		t.Error("expected error for unknown driver")
	}
}

func threadIDs(ts []models.Thread) []string {
	out := make([]string, len(ts))
	for i := range ts {
		out[i] = ts[i].ID
	}
	return out
}
