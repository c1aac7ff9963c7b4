// Package query turns raw input from any modality into the canonical query
// consumed by answer generation.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/outcome"
	"github.com/nadzzz/qadesk/internal/speech"
)

// User-facing messages for rejected input.
const (
	MsgEmptyQuestion  = "Please enter a question."
	MsgNoImage        = "Please upload an image first."
	MsgUnintelligible = "Could not understand the audio"
	MsgRequestFailed  = "Could not request results; check your network connection"
	MsgNoRecognizer   = "Speech recognition is not configured"
)

// Transcriber captures and recognizes one utterance.
type Transcriber interface {
	Transcribe(ctx context.Context, dev speech.Device) outcome.Outcome[string]
}

// Input is the raw material of one submission. Device is set for spoken
// questions; Text carries typed questions.
type Input struct {
	Text   string
	Device speech.Device
}

// Normalizer builds queries. It holds no state between calls.
type Normalizer struct {
	transcriber Transcriber
}

// NewNormalizer creates a normalizer. transcriber may be nil when no speech
// backend is configured; spoken input then fails as unavailable.
func NewNormalizer(transcriber Transcriber) *Normalizer {
	return &Normalizer{transcriber: transcriber}
}

// Normalize converts input for mode into a query. imageContext is nil until an
// image has been uploaded; an empty string is still valid context.
func (n *Normalizer) Normalize(ctx context.Context, mode message.Mode, in Input, imageContext *string) (message.Query, error) {
	switch mode {
	case message.ModeTextQuestion:
		if in.Device != nil {
			return n.voice(ctx, in.Device)
		}
		if strings.TrimSpace(in.Text) == "" {
			return message.Query{}, fault.New(fault.KindInput, MsgEmptyQuestion)
		}
		return message.Query{Text: in.Text}, nil

	case message.ModeImageQuestion:
		if imageContext == nil {
			return message.Query{}, fault.New(fault.KindInput, MsgNoImage)
		}
		if in.Device != nil {
			return message.Query{}, fault.New(fault.KindInvalidTransition, "spoken questions are only accepted in text mode")
		}
		if strings.TrimSpace(in.Text) == "" {
			return message.Query{}, fault.New(fault.KindInput, MsgEmptyQuestion)
		}
		return message.Query{Text: in.Text, Context: *imageContext, HasContext: true}, nil

	case message.ModeLanding:
		return message.Query{}, fault.New(fault.KindInvalidTransition, "choose a question mode first")

	default:
		return message.Query{}, fault.New(fault.KindInvalidTransition, fmt.Sprintf("unhandled mode %s", mode))
	}
}

func (n *Normalizer) voice(ctx context.Context, dev speech.Device) (message.Query, error) {
	if n.transcriber == nil {
		return message.Query{}, fault.New(fault.KindServiceUnavailable, MsgNoRecognizer)
	}

	out := n.transcriber.Transcribe(ctx, dev)
	switch out.Tag() {
	case outcome.TagSuccess:
		text, _ := out.Value()
		slog.Debug("voice input recognized", "text_length", len(text))
		return message.Query{Text: text}, nil
	case outcome.TagEmpty:
		slog.Info("voice input not understood", "reason", out.Reason())
		return message.Query{}, fault.New(fault.KindRecognitionEmpty, MsgUnintelligible)
	default:
		slog.Warn("voice input failed", "error", out.Err())
		return message.Query{}, fault.Wrap(fault.KindServiceUnavailable, MsgRequestFailed, out.Err())
	}
}
