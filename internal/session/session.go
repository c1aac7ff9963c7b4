// Package session holds the state of one user session and the orchestrator
// that drives it through input, generation and playback.
package session

import (
	"slices"

	"github.com/nadzzz/qadesk/internal/message"
)

// Session is the state of one continuous interaction sequence. It is owned by
// exactly one Orchestrator and is not safe for concurrent use.
type Session struct {
	id   string
	mode message.Mode

	history    []message.Entry
	maxHistory int

	textResponse  string
	imageResponse string

	// imageContext is nil until the first upload. An empty string is a valid
	// extraction result.
	imageContext *string

	showHistory bool
}

// New creates a session in landing mode. maxHistory <= 0 keeps every entry.
func New(id string, maxHistory int) *Session {
	return &Session{id: id, mode: message.ModeLanding, maxHistory: maxHistory}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the active mode.
func (s *Session) Mode() message.Mode { return s.mode }

// History returns a copy of the recorded entries, oldest first.
func (s *Session) History() []message.Entry { return slices.Clone(s.history) }

// ImageContext returns the text extracted from the last uploaded image.
func (s *Session) ImageContext() (string, bool) {
	if s.imageContext == nil {
		return "", false
	}
	return *s.imageContext, true
}

// LastResponse returns the last response recorded for mode.
func (s *Session) LastResponse(mode message.Mode) string {
	switch mode {
	case message.ModeTextQuestion:
		return s.textResponse
	case message.ModeImageQuestion:
		return s.imageResponse
	default:
		return ""
	}
}

// ShowHistory reports whether the presentation layer should list history.
func (s *Session) ShowHistory() bool { return s.showHistory }

func (s *Session) record(e message.Entry) {
	s.history = append(s.history, e)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = slices.Clone(s.history[len(s.history)-s.maxHistory:])
	}
}

func (s *Session) setImageContext(text string) {
	s.imageContext = &text
}

// View renders the session for the presentation layer.
func (s *Session) View() *message.View {
	v := &message.View{
		SessionID:     s.id,
		Mode:          s.mode,
		TextResponse:  s.textResponse,
		ImageResponse: s.imageResponse,
		History:       s.History(),
		ShowHistory:   s.showHistory,
	}
	if v.History == nil {
		v.History = []message.Entry{}
	}
	v.ImageContext, v.HasImageContext = s.ImageContext()
	return v
}
