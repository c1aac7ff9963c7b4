package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/qadesk/internal/answer"
	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/outcome"
	"github.com/nadzzz/qadesk/internal/query"
	"github.com/nadzzz/qadesk/internal/speech"
	"github.com/nadzzz/qadesk/internal/tts"
)

// User-facing messages for orchestrator failures.
const (
	MsgNoResponse      = "There is no response to read yet."
	MsgSynthesisFailed = "Error in text-to-speech conversion"
	MsgExtraction      = "Could not read text from the uploaded image"
)

// Generator produces a displayable answer for a query. It never fails.
type Generator interface {
	Generate(ctx context.Context, q message.Query) answer.Answer
}

// Extractor reads text from an uploaded image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// Speaker renders text as playable audio.
type Speaker interface {
	Speak(ctx context.Context, text string) outcome.Outcome[tts.Audio]
}

// Deps are the collaborators shared by every orchestrator of a process.
type Deps struct {
	Normalizer *query.Normalizer
	Generator  Generator
	Extractor  Extractor
	Speaker    Speaker
}

// Turn is one answered question.
type Turn struct {
	Question string
	Answer   answer.Answer
}

// Orchestrator drives one session. Calls must not overlap; the dispatcher
// serializes them per session.
type Orchestrator struct {
	session *Session
	deps    Deps
	logger  *slog.Logger
}

// NewOrchestrator binds s to deps.
func NewOrchestrator(s *Session, deps Deps) *Orchestrator {
	if deps.Normalizer == nil {
		deps.Normalizer = query.NewNormalizer(nil)
	}
	return &Orchestrator{
		session: s,
		deps:    deps,
		logger:  slog.With("session_id", s.ID()),
	}
}

// Session returns the owned session for read access.
func (o *Orchestrator) Session() *Session { return o.session }

// View renders the current state.
func (o *Orchestrator) View() *message.View { return o.session.View() }

// ChooseText moves from landing to text mode.
func (o *Orchestrator) ChooseText() error {
	return o.transition(message.ActionChooseText)
}

// ChooseImage moves from landing to image mode.
func (o *Orchestrator) ChooseImage() error {
	return o.transition(message.ActionChooseImage)
}

// Back returns to landing. History and image context are kept.
func (o *Orchestrator) Back() error {
	return o.transition(message.ActionBack)
}

func (o *Orchestrator) transition(action message.Action) error {
	from := o.session.mode
	var to message.Mode

	switch from {
	case message.ModeLanding:
		switch action {
		case message.ActionChooseText:
			to = message.ModeTextQuestion
		case message.ActionChooseImage:
			to = message.ModeImageQuestion
		default:
			return invalidTransition(from, action)
		}
	case message.ModeTextQuestion, message.ModeImageQuestion:
		if action != message.ActionBack {
			return invalidTransition(from, action)
		}
		to = message.ModeLanding
	default:
		return invalidTransition(from, action)
	}

	o.session.mode = to
	o.logger.Debug("mode changed", "from", from, "to", to)
	return nil
}

func invalidTransition(from message.Mode, action message.Action) error {
	return fault.New(fault.KindInvalidTransition, fmt.Sprintf("cannot %s from %s mode", action, from))
}

func (o *Orchestrator) requireMode(want message.Mode, action message.Action) error {
	if o.session.mode != want {
		return invalidTransition(o.session.mode, action)
	}
	return nil
}

// SubmitText answers a typed question in text mode and records it.
func (o *Orchestrator) SubmitText(ctx context.Context, question string) (Turn, error) {
	if err := o.requireMode(message.ModeTextQuestion, message.ActionSubmitText); err != nil {
		return Turn{}, err
	}
	return o.answerText(ctx, query.Input{Text: question})
}

// SubmitVoice captures one utterance from dev, answers it in text mode and
// records it.
func (o *Orchestrator) SubmitVoice(ctx context.Context, dev speech.Device) (Turn, error) {
	if err := o.requireMode(message.ModeTextQuestion, message.ActionSubmitVoice); err != nil {
		return Turn{}, err
	}
	if dev == nil {
		return Turn{}, fault.New(fault.KindInput, "no audio was provided")
	}
	return o.answerText(ctx, query.Input{Device: dev})
}

func (o *Orchestrator) answerText(ctx context.Context, in query.Input) (Turn, error) {
	q, err := o.deps.Normalizer.Normalize(ctx, message.ModeTextQuestion, in, nil)
	if err != nil {
		o.logger.Info("question rejected", "kind", fault.KindOf(err), "reason", fault.Message(err))
		return Turn{}, err
	}

	ans := o.deps.Generator.Generate(ctx, q)
	o.session.textResponse = ans.Text
	o.session.record(message.Entry{Question: q.Text, Response: ans.Text})

	o.logger.Info("question answered", "mode", message.ModeTextQuestion, "answer_kind", ans.Kind, "history", len(o.session.history))
	return Turn{Question: q.Text, Answer: ans}, nil
}

// UploadImage extracts text from image and replaces the image context, even
// when no text was found.
func (o *Orchestrator) UploadImage(ctx context.Context, image []byte) (string, error) {
	if err := o.requireMode(message.ModeImageQuestion, message.ActionUploadImage); err != nil {
		return "", err
	}
	if o.deps.Extractor == nil {
		return "", fault.New(fault.KindExtraction, "image text extraction is not configured")
	}

	text, err := o.deps.Extractor.Extract(ctx, image)
	if err != nil {
		o.logger.Warn("image extraction failed", "error", err, "bytes", len(image))
		return "", fault.Wrap(fault.KindExtraction, MsgExtraction, err)
	}

	o.session.setImageContext(text)
	o.logger.Info("image context replaced", "text_length", len(text), "bytes", len(image))
	return text, nil
}

// SubmitImageQuestion answers a question about the uploaded image. The answer
// goes to the image response slot and is not added to history.
func (o *Orchestrator) SubmitImageQuestion(ctx context.Context, question string) (Turn, error) {
	if err := o.requireMode(message.ModeImageQuestion, message.ActionSubmitImageQuestion); err != nil {
		return Turn{}, err
	}

	q, err := o.deps.Normalizer.Normalize(ctx, message.ModeImageQuestion, query.Input{Text: question}, o.session.imageContext)
	if err != nil {
		o.logger.Info("image question rejected", "kind", fault.KindOf(err), "reason", fault.Message(err))
		return Turn{}, err
	}

	ans := o.deps.Generator.Generate(ctx, q)
	o.session.imageResponse = ans.Text

	o.logger.Info("question answered", "mode", message.ModeImageQuestion, "answer_kind", ans.Kind)
	return Turn{Question: q.Text, Answer: ans}, nil
}

// HearResponse synthesizes the last response of the active mode. It never
// changes session state.
func (o *Orchestrator) HearResponse(ctx context.Context) (tts.Audio, error) {
	mode := o.session.mode
	switch mode {
	case message.ModeTextQuestion, message.ModeImageQuestion:
	default:
		return tts.Audio{}, invalidTransition(mode, message.ActionHearResponse)
	}

	text := o.session.LastResponse(mode)
	if text == "" {
		return tts.Audio{}, fault.New(fault.KindInput, MsgNoResponse)
	}
	if o.deps.Speaker == nil {
		return tts.Audio{}, fault.Wrap(fault.KindSynthesis, MsgSynthesisFailed, tts.ErrDisabled)
	}

	out := o.deps.Speaker.Speak(ctx, text)
	audio, ok := out.Value()
	if !ok {
		o.logger.Error("speech synthesis failed", "error", out.Err())
		return tts.Audio{}, fault.Wrap(fault.KindSynthesis, MsgSynthesisFailed, out.Err())
	}
	return audio, nil
}

// SetShowHistory toggles history display.
func (o *Orchestrator) SetShowHistory(show bool) {
	o.session.showHistory = show
}
