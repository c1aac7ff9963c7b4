// Package fault defines the error taxonomy shared by the pipeline and its transports.
//
// Errors are classified by Kind at the point of detection and carry a
// user-facing message. Transports map kinds to status codes; nothing in the
// pipeline needs to inspect error strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error.
type Kind string

const (
	// KindInput covers empty questions and image questions without an image.
	KindInput Kind = "input"

	// KindRecognitionEmpty means speech was captured but could not be understood.
	KindRecognitionEmpty Kind = "recognition_empty"

	// KindServiceUnavailable means a speech or synthesis service could not be reached.
	KindServiceUnavailable Kind = "service_unavailable"

	// KindExtraction means an uploaded image could not be read.
	KindExtraction Kind = "extraction"

	// KindSynthesis means speech synthesis failed.
	KindSynthesis Kind = "synthesis"

	// KindInvalidTransition means the action is not allowed in the current mode.
	KindInvalidTransition Kind = "invalid_transition"

	// KindNotFound means the session does not exist or has expired.
	KindNotFound Kind = "not_found"
)

// Error is a classified pipeline error.
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

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so kind sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// New returns a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns a classified error with a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInput              = &Error{Kind: KindInput}
	ErrRecognitionEmpty   = &Error{Kind: KindRecognitionEmpty}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrExtraction         = &Error{Kind: KindExtraction}
	ErrSynthesis          = &Error{Kind: KindSynthesis}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Message returns the user-facing message of err. Unclassified errors yield err.Error().
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
