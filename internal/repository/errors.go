package repository

import (
	"errors"
	"fmt"

	"github.com/frcoutreach/outreachnet/internal/docstore"
)

// ErrInvalidValue is wrapped in a WriteError when a field value is outside its enum.
var ErrInvalidValue = errors.New("invalid field value")

// NotFoundError reports a referenced document that does not exist
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is lets callers match with errors.Is(err, docstore.ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == docstore.ErrNotFound
}

// ReadError reports a failed or rejected store read
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed or rejected store write
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PartialWriteError is a WriteError raised after an earlier write of the
// same operation succeeded. ID names the document that was persisted.
type PartialWriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("write %s: %s persisted, follow-up write failed: %v", e.Op, e.ID, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return &WriteError{Op: e.Op, Err: e.Err}
}
