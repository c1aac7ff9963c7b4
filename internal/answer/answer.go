// Package answer turns a question, optionally grounded by context text, into
// displayable answer text.
//
// The generation capability can answer, refuse on safety grounds, return a
// structure with nothing usable in it, or fail outright. Generate collapses all
// four into an Answer whose Text is always safe to show and record; it never
// returns an error.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/qadesk/internal/message"
)

// Fixed texts for the non-answer outcomes.
const (
	RefusedText   = "The response was blocked due to safety concerns."
	MalformedText = "No valid response was generated."
	FailedText    = "An error occurred while generating the response."
)

// Response is the structured reply of a generation capability.
type Response struct {
	Candidates []Candidate

	// PromptBlocked is set when the request itself was refused and no
	// candidate was produced.
	PromptBlocked bool
	BlockReason   string
}

// Candidate is one generated alternative.
type Candidate struct {
	// Parts are the text segments in the order the model produced them.
	Parts []string

	// FinishReason is the backend's raw stop reason, kept for logging.
	FinishReason string

	// Blocked is set when a safety filter stopped this candidate.
	Blocked bool
}

// Model is a generation capability. Parts are sent as one multi-part input in order.
type Model interface {
	GenerateContent(ctx context.Context, parts ...string) (*Response, error)
}

// Kind classifies an Answer.
type Kind int

const (
	KindWellFormed Kind = iota
	KindRefused
	KindMalformed
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindWellFormed:
		return "well_formed"
	case KindRefused:
		return "refused"
	case KindMalformed:
		return "malformed"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Answer is the normalized generation result.
type Answer struct {
	Kind Kind
	Text string

	// Err is the underlying failure for KindFailed.
	Err error
}

// Notice returns the notice the caller should surface alongside the answer, if any.
func (a Answer) Notice() (message.Notice, bool) {
	switch a.Kind {
	case KindRefused:
		return message.Notice{Level: message.NoticeWarning, Message: RefusedText}, true
	case KindFailed:
		msg := "An error occurred"
		if a.Err != nil {
			msg += ": " + a.Err.Error()
		}
		return message.Notice{Level: message.NoticeError, Message: msg}, true
	default:
		return message.Notice{}, false
	}
}

// Classify maps a raw response onto an Answer. Only the first candidate is considered.
func Classify(resp *Response) Answer {
	if resp == nil {
		return Answer{Kind: KindMalformed, Text: MalformedText}
	}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		if text := strings.Join(c.Parts, " "); len(c.Parts) > 0 && strings.TrimSpace(text) != "" {
			return Answer{Kind: KindWellFormed, Text: text}
		}
		if c.Blocked {
			return Answer{Kind: KindRefused, Text: RefusedText}
		}
	}
	if resp.PromptBlocked {
		return Answer{Kind: KindRefused, Text: RefusedText}
	}
	return Answer{Kind: KindMalformed, Text: MalformedText}
}

// Generator is the answer generation boundary.
type Generator struct {
	model   Model
	timeout time.Duration
}

// NewGenerator creates a Generator. A zero timeout leaves the call unbounded.
func NewGenerator(model Model, timeout time.Duration) *Generator {
	return &Generator{model: model, timeout: timeout}
}

// Generate answers q. With context present the model receives the question
// followed by the context; otherwise the question alone.
func (g *Generator) Generate(ctx context.Context, q message.Query) (ans Answer) {
	logger := slog.With("has_context", q.HasContext, "query_length", len(q.Text))

	defer func() {
		if r := recover(); r != nil {
			ans = Answer{Kind: KindFailed, Text: FailedText, Err: fmt.Errorf("generation panicked: %v", r)}
		}
		switch ans.Kind {
		case KindRefused:
			logger.Warn("generation refused by safety filter")
		case KindFailed:
			logger.Error("generation failed", "error", ans.Err)
		case KindMalformed:
			logger.Warn("generation returned no usable content")
		default:
			logger.Debug("generation complete", "text_length", len(ans.Text))
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	parts := []string{q.Text}
	if q.HasContext {
		parts = append(parts, q.Context)
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Answer{Kind: KindFailed, Text: FailedText, Err: err}
	}
	return Classify(resp)
}
