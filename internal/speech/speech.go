// Package speech captures one utterance and turns it into text.
//
// The capture resource (a microphone process or an uploaded clip) is acquired
// and released inside a single Transcribe call. Recognition results are
// reported as an outcome.Outcome: an utterance that cannot be understood is
// Empty, an unreachable device or service is an Error.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nadzzz/qadesk/internal/outcome"
)

// ErrUnintelligible is returned (possibly wrapped) by recognizers that received
// audio but could not extract any speech from it.
var ErrUnintelligible = errors.New("speech not recognized")

// Reasons reported with Empty outcomes.
const (
	ReasonUnintelligible = "could not understand the audio"
	ReasonSilence        = "no audio was captured"
)

// TranscribeOpts controls transcription behavior.
type TranscribeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string

	// Model overrides the default transcription model.
	Model string
}

// Recognizer converts one encoded audio clip into text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, contentType string, opts TranscribeOpts) (string, error)
}

// Stream is an open capture. Close releases the underlying device, reports
// whether the capture itself failed, and must be safe to call twice.
type Stream interface {
	io.Reader
	// ContentType returns the MIME type of the captured audio, or "" if unknown.
	ContentType() string
	Close() error
}

// Device opens a capture of a single utterance.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Transcriber runs capture then recognition under one timeout.
type Transcriber struct {
	recognizer Recognizer
	timeout    time.Duration
	maxBytes   int64
	opts       TranscribeOpts
}

// NewTranscriber creates a Transcriber. A zero timeout or maxBytes disables that limit.
func NewTranscriber(r Recognizer, timeout time.Duration, maxBytes int64, opts TranscribeOpts) *Transcriber {
	return &Transcriber{recognizer: r, timeout: timeout, maxBytes: maxBytes, opts: opts}
}

// Transcribe captures one utterance from dev and recognizes it.
func (t *Transcriber) Transcribe(ctx context.Context, dev Device) outcome.Outcome[string] {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	audio, contentType, err := t.capture(ctx, dev)
	if err != nil {
		return outcome.Fail[string](err)
	}
	if len(audio) == 0 {
		return outcome.Empty[string](ReasonSilence)
	}

	slog.Debug("recognizing utterance", "bytes", len(audio), "content_type", contentType)
	text, err := t.recognizer.Recognize(ctx, audio, contentType, t.opts)
	if errors.Is(err, ErrUnintelligible) {
		return outcome.Empty[string](ReasonUnintelligible)
	}
	if err != nil {
		return outcome.Fail[string](fmt.Errorf("recognizing speech: %w", err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return outcome.Empty[string](ReasonUnintelligible)
	}
	slog.Debug("utterance recognized", "text_length", len(text))
	return outcome.Success(text)
}

// capture reads the whole utterance and always releases the device.
func (t *Transcriber) capture(ctx context.Context, dev Device) ([]byte, string, error) {
	stream, err := dev.Open(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("opening capture device: %w", err)
	}
	defer stream.Close()

	var r io.Reader = stream
	if t.maxBytes > 0 {
		r = io.LimitReader(stream, t.maxBytes+1)
	}
	audio, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("capturing audio: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, "", fmt.Errorf("releasing capture device: %w", err)
	}
	if t.maxBytes > 0 && int64(len(audio)) > t.maxBytes {
		return nil, "", fmt.Errorf("captured audio exceeds %d bytes", t.maxBytes)
	}

	contentType := stream.ContentType()
	if contentType == "" && len(audio) > 0 {
		contentType = mimetype.Detect(audio).String()
	}
	return audio, contentType, nil
}
