// Package message defines the core data types flowing through the qadesk pipeline.
package message

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Mode is the active page of a session. Exactly one mode is active at any time.
type Mode int

const (
	// ModeLanding is the entry menu; no question can be submitted from it.
	ModeLanding Mode = iota

	// ModeTextQuestion accepts typed or spoken questions.
	ModeTextQuestion

	// ModeImageQuestion accepts an image upload and questions about its text.
	ModeImageQuestion
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLanding:
		return "landing"
	case ModeTextQuestion:
		return "text"
	case ModeImageQuestion:
		return "image"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a wire name produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "landing":
		return ModeLanding, nil
	case "text":
		return ModeTextQuestion, nil
	case "image":
		return ModeImageQuestion, nil
	default:
		return ModeLanding, fmt.Errorf("unknown mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so modes travel as names.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Entry is one recorded question/answer pair. Entries are never mutated after creation.
type Entry struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

// Query is the canonical input to answer generation.
type Query struct {
	// Text is the question itself.
	Text string

	// Context is optional grounding text (image-extracted text).
	// HasContext distinguishes an absent context from an empty one.
	Context    string
	HasContext bool
}

// Action names one user interaction handled by the dispatcher.
type Action string

const (
	ActionCreateSession        Action = "create_session"
	ActionView                 Action = "view"
	ActionChooseText           Action = "choose_text"
	ActionChooseImage          Action = "choose_image"
	ActionBack                 Action = "back"
	ActionSubmitText           Action = "submit_text"
	ActionSubmitVoice          Action = "submit_voice"
	ActionUploadImage          Action = "upload_image"
	ActionSubmitImageQuestion  Action = "submit_image_question"
	ActionHearResponse         Action = "hear_response"
	ActionSetHistoryVisibility Action = "set_history_visibility"
	ActionEndSession           Action = "end_session"
)

// Request is one interaction arriving from any transport.
type Request struct {
	// SessionID identifies the session. Empty only for create_session.
	SessionID string `json:"session_id,omitempty"`

	// Action selects the interaction.
	Action Action `json:"action"`

	// Question is the typed question for submit_text and submit_image_question.
	Question string `json:"question,omitempty"`

	// Audio is a captured utterance for submit_voice.
	Audio []byte `json:"audio,omitempty"`

	// AudioContentType is the MIME type of Audio (e.g., "audio/wav").
	AudioContentType string `json:"audio_content_type,omitempty"`

	// Image is the uploaded image for upload_image.
	Image []byte `json:"image,omitempty"`

	// ShowHistory is the desired visibility for set_history_visibility.
	ShowHistory bool `json:"show_history,omitempty"`
}

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a message the presentation layer shows next to the result.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// View is the state the presentation layer renders after every interaction.
type View struct {
	SessionID       string  `json:"session_id"`
	Mode            Mode    `json:"mode"`
	TextResponse    string  `json:"text_response,omitempty"`
	ImageResponse   string  `json:"image_response,omitempty"`
	History         []Entry `json:"history"`
	HasImageContext bool    `json:"has_image_context"`
	ImageContext    string  `json:"image_context,omitempty"`
	ShowHistory     bool    `json:"show_history"`
}

// Result is the outcome of dispatching a Request.
type Result struct {
	Action Action `json:"action"`

	// View is the session state after the action.
	View *View `json:"view,omitempty"`

	// Transcript is the recognized utterance for submit_voice.
	Transcript string `json:"transcript,omitempty"`

	// Response is the answer produced by this action, if any.
	Response string `json:"response,omitempty"`

	// Audio is the synthesized speech as a base64-encoded string.
	Audio string `json:"audio,omitempty"`

	// AudioContentType is the MIME type of Audio (e.g., "audio/wav").
	AudioContentType string `json:"audio_content_type,omitempty"`

	Notices []Notice `json:"notices,omitempty"`

	// ErrorKind classifies Error (e.g., "input", "recognition_empty").
	ErrorKind string `json:"error_kind,omitempty"`

	// Error is set if the action failed. Session state is unchanged in that case.
	Error string `json:"error,omitempty"`
}

// SetAudioBytes base64-encodes raw audio bytes into Audio.
func (r *Result) SetAudioBytes(audio []byte) {
	if len(audio) > 0 {
		r.Audio = base64.StdEncoding.EncodeToString(audio)
	}
}

// AudioBytes decodes Audio.
func (r *Result) AudioBytes() ([]byte, error) {
	if r.Audio == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(r.Audio)
}

// AddNotice appends a notice when msg is non-empty.
func (r *Result) AddNotice(level NoticeLevel, msg string) {
	if msg == "" {
		return
	}
	r.Notices = append(r.Notices, Notice{Level: level, Message: msg})
}
