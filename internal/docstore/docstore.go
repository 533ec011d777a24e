// Package docstore is the document-store boundary of the forum: named
// collections of documents with create, read, equality-filtered queries
// ordered by creation time, keyset cursors and versioned partial updates.
// Drivers exist for gorm (postgres, sqlite) and MongoDB.
package docstore

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when an update's version precondition fails.
	ErrConflict = errors.New("docstore: version conflict")
	// ErrDuplicate is returned when a document id or unique field already exists.
	ErrDuplicate = errors.New("docstore: duplicate document")
	// ErrInvalidQuery is returned for malformed field names or patches.
	ErrInvalidQuery = errors.New("docstore: invalid query")
)

// Meta is embedded by every stored document. The driver owns all four fields:
// it assigns the id (unless preset), the version and both timestamps.
type Meta struct {
	ID        string    `gorm:"primaryKey;type:varchar(128);column:id" bson:"_id" json:"id"`
	Version   int64     `gorm:"not null;column:version" bson:"version" json:"-"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at" bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" bson:"updated_at" json:"updatedAt"`
}

// DocMeta gives drivers access to the embedded metadata.
func (m *Meta) DocMeta() *Meta { return m }

// Document is any struct embedding Meta.
type Document interface {
	DocMeta() *Meta
}

// Eq is a field-equality filter.
type Eq struct {
	Field string
	Value interface{}
}

// Query selects documents of one collection. Results are always ordered by
// created_at, ties broken by id, in the direction given by Desc.
type Query struct {
	Filters []Eq
	Desc    bool
	Limit   int
	After   *Cursor
}

// Patch is a partial update. Set maps field names to new values.
// IfVersion, when non-zero, makes the update conditional on the stored
// version. Touch sets updated_at to the store clock.
type Patch struct {
	Set       map[string]interface{}
	IfVersion int64
	Touch     bool
}

// Collection describes a collection for Migrate.
type Collection struct {
	Name    string
	Model   Document
	Indexes [][]string
	Unique  [][]string
}

// Store is implemented by every driver.
type Store interface {
	// Create inserts doc and returns its id. doc's Meta is filled in place.
	Create(ctx context.Context, collection string, doc Document) (string, error)
	// Put inserts doc under a caller-chosen id.
	Put(ctx context.Context, collection, id string, doc Document) error
	// Get decodes the document with the given id into dest.
	Get(ctx context.Context, collection, id string, dest Document) error
	// Find decodes matching documents into dest, a pointer to a slice.
	Find(ctx context.Context, collection string, q Query, dest interface{}) error
	// Count returns the number of documents matching every filter.
	Count(ctx context.Context, collection string, filters ...Eq) (int64, error)
	// Update applies a patch and bumps the document version. It returns the
	// updated_at value written, or the zero time when the patch does not touch.
	Update(ctx context.Context, collection, id string, p Patch) (time.Time, error)
	// Migrate prepares collections and indexes.
	Migrate(ctx context.Context, collections ...Collection) error
	Health(ctx context.Context) error
	Close() error
	Driver() string
}

var fieldName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validField(name string) bool {
	return fieldName.MatchString(name)
}

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		if !validField(f.Field) {
			return ErrInvalidQuery
		}
	}
	if q.Limit < 0 {
		return ErrInvalidQuery
	}
	return nil
}

func validatePatch(p Patch) error {
	for k := range p.Set {
		if !validField(k) || reserved(k) {
			return ErrInvalidQuery
		}
	}
	return nil
}

// reserved fields are owned by the driver and cannot be patched.
func reserved(field string) bool {
	switch field {
	case "id", "_id", "version", "created_at":
		return true
	}
	return false
}

// stamp fills Meta for a new document.
func stamp(doc Document, id string, now time.Time) *Meta {
	m := doc.DocMeta()
	m.ID = id
	m.Version = 1
	m.CreatedAt = now
	m.UpdatedAt = now
	return m
}
