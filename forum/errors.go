// forum/errors.go
package forum

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a failure so the request layer can map it to a status
// code without inspecting store-specific errors.
type Kind string

const (
	KindValidation  Kind = "VALIDATION_ERROR"
	KindNotFound    Kind = "NOT_FOUND"
	KindForbidden   Kind = "FORBIDDEN"
	KindConflict    Kind = "CONFLICT"
	KindTimeout     Kind = "TIMEOUT"
	KindUnavailable Kind = "STORE_UNAVAILABLE"
)

// Error is the only error type that crosses the forum package boundary.
// The wrapped cause stays server-side; Message is safe for clients.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func NewValidation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NewNotFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func NewForbidden(msg string) *Error  { return &Error{Kind: KindForbidden, Message: msg} }
func NewConflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }

// KindOf extracts the Kind from err, or KindUnavailable for anything the
// store surfaced that we did not classify.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnavailable
}

// Postgres error codes we branch on.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// storeErr wraps an unclassified store failure, folding context expiry into
// the Timeout kind so callers see a stable taxonomy.
func storeErr(err error, msg string) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Message: msg, cause: err}
	}
	return &Error{Kind: KindUnavailable, Message: msg, cause: err}
}
