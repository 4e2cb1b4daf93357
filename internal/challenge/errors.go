package challenge

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can branch without string matching.
type Kind string

const (
	KindAuthentication   Kind = "authentication"
	KindAccessDenied     Kind = "access_denied"
	KindNotFound         Kind = "not_found"
	KindInvalidReference Kind = "invalid_reference"
	KindMalformedPayload Kind = "malformed_payload"
	KindStorage          Kind = "storage"
	KindFetch            Kind = "fetch"
	KindInvalidInput     Kind = "invalid_input"
)

// Error is the domain error carried through fetch, mapping and storage.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on kind, so errors.Is(err, ErrNotFound) holds for any
// not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrAuthentication   = &Error{Kind: KindAuthentication, Message: "authentication required"}
	ErrAccessDenied     = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "challenge not found"}
	ErrInvalidReference = &Error{Kind: KindInvalidReference, Message: "invalid challenge reference"}
	ErrMalformedPayload = &Error{Kind: KindMalformedPayload, Message: "malformed payload"}
	ErrStorage          = &Error{Kind: KindStorage, Message: "storage failure"}
	ErrFetch            = &Error{Kind: KindFetch, Message: "fetch failed"}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput, Message: "invalid input"}

	// ErrNoResults means the challenge exists but nobody has a recorded result yet.
	ErrNoResults = &Error{Kind: KindNotFound, Message: "challenge has no results"}
)

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindFetch for
// anything unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFetch
}

// Level is the presentation class a caller should use for a message.
type Level string

const (
	LevelNote    Level = "note"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is an informational message that accompanies a successful result.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Severity picks the presentation class for an error. Storage failures are
// warnings: the in-memory result is still usable, it just won't survive a reload.
func Severity(err error) Level {
	switch KindOf(err) {
	case "":
		return LevelNote
	case KindStorage:
		return LevelWarning
	default:
		return LevelError
	}
}
