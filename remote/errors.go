package remote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKind classifies remote store failures for callers that must decide
// between retrying and giving up.
type ErrKind string

const (
	// KindReferentialIntegrity means the write referenced a row that does
	// not exist server-side (typically a demo venue id). Retrying can never
	// succeed.
	KindReferentialIntegrity ErrKind = "referential_integrity"

	// KindTransient covers network and server failures unrelated to the
	// payload. The same write may succeed on a later attempt.
	KindTransient ErrKind = "transient"
)

// sqlstateForeignKeyViolation is the Postgres class the store reports when a
// referenced row is missing.
const sqlstateForeignKeyViolation = "23503"

// Error is a classified remote store failure
type Error struct {
	Kind       ErrKind
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote store: %s (status %d, code %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("remote store: %s (status %d)", e.Message, e.StatusCode)
}

// IsReferentialIntegrity reports whether err is a remote referential
// integrity violation
func IsReferentialIntegrity(err error) bool {
	var remoteErr *Error
	return errors.As(err, &remoteErr) && remoteErr.Kind == KindReferentialIntegrity
}

// classify maps a store error response to a typed kind. The SQLSTATE code is
// authoritative; the message text fallback covers proxies that strip it.
func classify(statusCode int, code, message string) ErrKind {
	if code == sqlstateForeignKeyViolation {
		return KindReferentialIntegrity
	}
	if statusCode == 409 && strings.Contains(message, "foreign key") {
		return KindReferentialIntegrity
	}
	return KindTransient
}
