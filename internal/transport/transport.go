// Package transport defines the interface for pluggable request transports.
//
// Each transport (HTTP, gRPC) implements this interface and forwards every
// request to the dispatcher's Handler. The dispatcher doesn't care how
// requests arrive; it only works with the Transport contract.
package transport

import (
	"context"

	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
)

// Handler processes one request and returns its result.
// The dispatcher provides this handler to each transport.
type Handler func(ctx context.Context, req *message.Request) (*message.Result, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Status classifies a result for transports that report a status code.
type Status int

const (
	StatusOK Status = iota
	StatusBadRequest
	StatusUnprocessable
	StatusNotFound
	StatusUpstream
	StatusInternal
)

// StatusOf maps the error kind recorded on res to a Status.
func StatusOf(res *message.Result) Status {
	if res == nil {
		return StatusInternal
	}
	if res.Error == "" && res.ErrorKind == "" {
		return StatusOK
	}
	switch fault.Kind(res.ErrorKind) {
	case fault.KindInput, fault.KindInvalidTransition:
		return StatusBadRequest
	case fault.KindRecognitionEmpty:
		return StatusUnprocessable
	case fault.KindNotFound:
		return StatusNotFound
	case fault.KindServiceUnavailable, fault.KindExtraction, fault.KindSynthesis:
		return StatusUpstream
	default:
		return StatusInternal
	}
}
