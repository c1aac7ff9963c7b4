// Package dispatch routes requests from every transport to the session they
// belong to.
//
// Each session has its own orchestrator held in a TTL cache. Requests for
// the same session are serialized so every interaction runs to completion
// before the next one starts; different sessions proceed independently.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/nadzzz/qadesk/internal/config"
	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/session"
	"github.com/nadzzz/qadesk/internal/speech"
)

// MsgNoTextFound is the notice shown when an uploaded image has no readable text.
const MsgNoTextFound = "No text was found in the image; questions will be answered without context."

type entry struct {
	mu   sync.Mutex
	orch *session.Orchestrator
}

// Dispatcher is the transport.Handler shared by all transports.
type Dispatcher struct {
	deps       session.Deps
	sessions   *cache.Cache
	maxHistory int
	capture    speech.Device // used for submit_voice without an uploaded clip
	newID      func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCaptureDevice lets submit_voice requests without audio record from dev.
func WithCaptureDevice(dev speech.Device) Option {
	return func(d *Dispatcher) { d.capture = dev }
}

// New creates a Dispatcher whose sessions expire after cfg.TTL of inactivity.
func New(deps session.Deps, cfg config.SessionConfig, opts ...Option) *Dispatcher {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	d := &Dispatcher{
		deps:       deps,
		sessions:   cache.New(ttl, cfg.CleanupInterval),
		maxHistory: cfg.MaxHistory,
		newID:      func() string { return uuid.NewString() },
	}
	d.sessions.OnEvicted(func(id string, _ any) {
		slog.Info("session closed", "session_id", id)
	})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sessions returns the number of live sessions.
func (d *Dispatcher) Sessions() int { return d.sessions.ItemCount() }

// Handle runs one request to completion. Pipeline failures are reported in the
// result; the returned error is reserved for requests that cannot be routed.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) (*message.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	start := time.Now()
	res := &message.Result{Action: req.Action}

	if req.Action == message.ActionCreateSession {
		res.View = d.create()
		slog.Info("session created", "session_id", res.View.SessionID)
		return res, nil
	}

	logger := slog.With("session_id", req.SessionID, "action", req.Action)

	if req.Action == message.ActionEndSession {
		if _, ok := d.sessions.Get(req.SessionID); !ok {
			d.fail(res, notFound(req.SessionID))
			return res, nil
		}
		d.sessions.Delete(req.SessionID)
		return res, nil
	}

	e, ok := d.lookup(req.SessionID)
	if !ok {
		d.fail(res, notFound(req.SessionID))
		logger.Info("unknown session")
		return res, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := d.apply(ctx, e.orch, req, res); err != nil {
		d.fail(res, err)
		logger.Info("action rejected", "kind", res.ErrorKind, "error", err, "duration", time.Since(start))
	} else {
		logger.Info("action complete", "duration", time.Since(start))
	}
	res.View = e.orch.View()
	return res, nil
}

func (d *Dispatcher) apply(ctx context.Context, o *session.Orchestrator, req *message.Request, res *message.Result) error {
	switch req.Action {
	case message.ActionView:
		return nil

	case message.ActionChooseText:
		return o.ChooseText()

	case message.ActionChooseImage:
		return o.ChooseImage()

	case message.ActionBack:
		return o.Back()

	case message.ActionSetHistoryVisibility:
		o.SetShowHistory(req.ShowHistory)
		return nil

	case message.ActionSubmitText:
		turn, err := o.SubmitText(ctx, req.Question)
		if err != nil {
			return err
		}
		addTurn(res, turn)
		return nil

	case message.ActionSubmitVoice:
		var dev speech.Device
		switch {
		case len(req.Audio) > 0:
			dev = speech.ClipDevice{Audio: req.Audio, ContentType: req.AudioContentType}
		case d.capture != nil:
			dev = d.capture
		default:
			return fault.New(fault.KindInput, "no audio was provided")
		}
		turn, err := o.SubmitVoice(ctx, dev)
		if err != nil {
			return err
		}
		res.Transcript = turn.Question
		addTurn(res, turn)
		return nil

	case message.ActionUploadImage:
		text, err := o.UploadImage(ctx, req.Image)
		if err != nil {
			return err
		}
		if text == "" {
			res.AddNotice(message.NoticeInfo, MsgNoTextFound)
		}
		return nil

	case message.ActionSubmitImageQuestion:
		turn, err := o.SubmitImageQuestion(ctx, req.Question)
		if err != nil {
			return err
		}
		addTurn(res, turn)
		return nil

	case message.ActionHearResponse:
		audio, err := o.HearResponse(ctx)
		if err != nil {
			return err
		}
		res.SetAudioBytes(audio.Data)
		res.AudioContentType = audio.ContentType
		return nil

	default:
		return fault.New(fault.KindInput, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func addTurn(res *message.Result, turn session.Turn) {
	res.Response = turn.Answer.Text
	if n, ok := turn.Answer.Notice(); ok {
		res.Notices = append(res.Notices, n)
	}
}

func (d *Dispatcher) create() *message.View {
	id := d.newID()
	e := &entry{orch: session.NewOrchestrator(session.New(id, d.maxHistory), d.deps)}
	d.sessions.Set(id, e, cache.DefaultExpiration)
	return e.orch.View()
}

// lookup fetches a session and slides its expiry.
func (d *Dispatcher) lookup(id string) (*entry, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := d.sessions.Get(id)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	d.sessions.Set(id, e, cache.DefaultExpiration)
	return e, true
}

func notFound(id string) error {
	return fault.New(fault.KindNotFound, fmt.Sprintf("session %q not found or expired", id))
}

// fail records err on res as a classified error and a notice.
func (d *Dispatcher) fail(res *message.Result, err error) {
	kind := fault.KindOf(err)
	res.ErrorKind = string(kind)
	res.Error = fault.Message(err)

	level := message.NoticeError
	switch kind {
	case fault.KindInput, fault.KindRecognitionEmpty:
		level = message.NoticeWarning
	}
	res.AddNotice(level, errorNotice(err))
}

// errorNotice includes the cause for service failures so the user sees why.
func errorNotice(err error) string {
	switch fault.KindOf(err) {
	case fault.KindServiceUnavailable, fault.KindSynthesis, fault.KindExtraction:
		return err.Error()
	default:
		return fault.Message(err)
	}
}
