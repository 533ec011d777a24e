package api

import (
	"errors"
	"fmt"

	"github.com/frcoutreach/outreachnet/internal/docstore"
	"github.com/frcoutreach/outreachnet/internal/forum"
	"github.com/frcoutreach/outreachnet/internal/identity"
	"github.com/frcoutreach/outreachnet/internal/repository"
)

// Standard JSON-RPC error codes
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
)

// Application error codes
const (
	ErrServerError   = -32000
	ErrUnauthorized  = -32001
	ErrForbidden     = -32003
	ErrNotFoundError = -32004
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// errorCode maps a handler error to its JSON-RPC code and message.
func errorCode(err error) (int, string) {
	var (
		apiErr  *Error
		nf      *repository.NotFoundError
		ve      *forum.ValidationError
		authErr *identity.AuthError
		azErr   *forum.AuthorizationError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code, apiErr.Message
	case errors.As(err, &nf), errors.Is(err, docstore.ErrNotFound):
		return ErrNotFoundError, "Not found"
	case errors.As(err, &ve), errors.Is(err, docstore.ErrInvalidQuery):
		return ErrInvalidParams, "Invalid params"
	case errors.Is(err, identity.ErrUnavailable):
		return ErrServerError, "Server error"
	case errors.As(err, &authErr):
		return ErrUnauthorized, "Unauthorized"
	case errors.As(err, &azErr):
		return ErrForbidden, "Forbidden"
	default:
		return ErrServerError, "Server error"
	}
}

// errorData is the error detail returned to the client. Partial writes also
// report the id of the document that was stored.
func errorData(err error) interface{} {
	if err == nil {
		return nil
	}
	var pw *repository.PartialWriteError
	if errors.As(err, &pw) {
		return map[string]string{"message": err.Error(), "id": pw.ID}
	}
	var ve *forum.ValidationError
	if errors.As(err, &ve) {
		return map[string]string{"message": err.Error(), "field": ve.Field}
	}
	return err.Error()
}
