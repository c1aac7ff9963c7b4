// Package outcome provides the tagged result type returned by external service adapters.
//
// An Outcome is exactly one of Success, Empty or Error. Empty is an expected,
// recoverable "nothing usable" result (e.g., unintelligible speech) and is kept
// apart from Error so callers can report the two differently.
package outcome

import "fmt"

// Tag identifies which variant an Outcome holds.
type Tag int

const (
	TagSuccess Tag = iota
	TagEmpty
	TagError
)

func (t Tag) String() string {
	switch t {
	case TagSuccess:
		return "success"
	case TagEmpty:
		return "empty"
	case TagError:
		return "error"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// Outcome is the result of one external call.
type Outcome[T any] struct {
	tag    Tag
	value  T
	reason string
	err    error
}

// Success wraps a usable value.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{tag: TagSuccess, value: v}
}

// Empty records a recoverable absence of a value.
func Empty[T any](reason string) Outcome[T] {
	return Outcome[T]{tag: TagEmpty, reason: reason}
}

// Fail records an error. A nil err is replaced with a generic one so the
// Error variant always carries a cause.
func Fail[T any](err error) Outcome[T] {
	if err == nil {
		err = fmt.Errorf("unspecified failure")
	}
	return Outcome[T]{tag: TagError, err: err}
}

// Tag returns the populated variant.
func (o Outcome[T]) Tag() Tag { return o.tag }

// Value returns the value and whether the outcome is Success.
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.tag == TagSuccess
}

// Reason returns the Empty reason, or "" for other variants.
func (o Outcome[T]) Reason() string {
	if o.tag != TagEmpty {
		return ""
	}
	return o.reason
}

// Err returns the Error cause, or nil for other variants.
func (o Outcome[T]) Err() error {
	if o.tag != TagError {
		return nil
	}
	return o.err
}

func (o Outcome[T]) String() string {
	switch o.tag {
	case TagEmpty:
		return "empty: " + o.reason
	case TagError:
		return "error: " + o.err.Error()
	default:
		return "success"
	}
}
