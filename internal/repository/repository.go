package repository

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/models"
	"github.com/frcoutreach/outreachnet/pkg/logging"
	"github.com/frcoutreach/outreachnet/pkg/telemetry"
)

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 10

// Repository provides document store access shared by the forum repositories
type Repository struct {
	store   docstore.Store
	retries int
	logger  *zap.Logger
}

// NewRepository creates a new repository. conflictRetries bounds how often a
// read-modify-write is re-applied after a version conflict.
func NewRepository(store docstore.Store, conflictRetries int) *Repository {
	if conflictRetries < 0 {
		conflictRetries = 0
	}
	return &Repository{
		store:   store,
		retries: conflictRetries,
		logger:  logging.WithComponent("repository"),
	}
}

// Store returns the underlying document store.
func (r *Repository) Store() docstore.Store {
	return r.store
}

// Collections lists every collection the repositories read or write.
func Collections() []docstore.Collection {
	return []docstore.Collection{
		{Name: models.CollectionUsers, Model: &models.Profile{}},
		{
			Name:    models.CollectionThreads,
			Model:   &models.Thread{},
			Indexes: [][]string{{"category", "created_at"}, {"user_id", "created_at"}},
		},
		{
			Name:    models.CollectionComments,
			Model:   &models.Comment{},
			Indexes: [][]string{{"thread_id", "created_at"}},
		},
	}
}

// Migrate prepares the forum collections.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.store.Migrate(ctx, Collections()...)
}

func (r *Repository) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, op, trace.WithAttributes(attrs...))
}

// end records err on the span and logs it. Missing documents are expected
// and are not logged.
func (r *Repository) end(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	telemetry.RecordError(span, err)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return
	}
	r.logger.Error("Store operation failed", zap.String("op", op), zap.Error(err))
}

// mutate performs a versioned read-modify-write of one document and moves
// its updated_at. apply changes doc in place and returns the fields to write,
// or nil to skip the write. On a version conflict the document is re-read and
// apply runs again.
func (r *Repository) mutate(ctx context.Context, op, kind, collection, id string, doc docstore.Document, apply func() map[string]interface{}) error {
	return r.readModifyWrite(ctx, op, kind, collection, id, true, doc, apply)
}

// mutateQuiet is mutate for bookkeeping fields such as view counts; updated_at
// is left alone.
func (r *Repository) mutateQuiet(ctx context.Context, op, kind, collection, id string, doc docstore.Document, apply func() map[string]interface{}) error {
	return r.readModifyWrite(ctx, op, kind, collection, id, false, doc, apply)
}

func (r *Repository) readModifyWrite(ctx context.Context, op, kind, collection, id string, touch bool, doc docstore.Document, apply func() map[string]interface{}) error {
	for attempt := 0; ; attempt++ {
		if err := r.store.Get(ctx, collection, id, doc); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &NotFoundError{Kind: kind, ID: id}
			}
			return &ReadError{Op: op, Err: err}
		}

		set := apply()
		if set == nil {
			return nil
		}

		meta := doc.DocMeta()
		at, err := r.store.Update(ctx, collection, id, docstore.Patch{Set: set, IfVersion: meta.Version, Touch: touch})
		switch {
		case err == nil:
			meta.Version++
			if touch {
				meta.UpdatedAt = at
			}
			return nil
		case errors.Is(err, docstore.ErrNotFound):
			return &NotFoundError{Kind: kind, ID: id}
		case !errors.Is(err, docstore.ErrConflict):
			return &WriteError{Op: op, Err: err}
		case attempt >= r.retries:
			return &WriteError{Op: op, Err: err}
		}

		r.logger.Debug("Version conflict, retrying",
			zap.String("op", op),
			zap.String("id", id),
			zap.Int("attempt", attempt+1),
		)
	}
}

func pageSizeOrDefault(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}
