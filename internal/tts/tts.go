// Package tts defines the interface for text-to-speech synthesis and the
// adapter the session uses to render answers as playable audio.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/qadesk/internal/outcome"
)

// ErrDisabled is reported when speech synthesis is turned off in configuration.
var ErrDisabled = errors.New("speech synthesis disabled")

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr", "es") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates a playable encoded audio clip from the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded clip (WAV, MP3, ...).
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz, 0 when not known.
	SampleRate int

	// Channels is the number of audio channels, 0 when not known.
	Channels int
}

// Audio is a playable clip handed to the presentation layer.
type Audio struct {
	Data        []byte
	ContentType string
}

// Speaker renders text as speech. Synthesis either produces audio or fails;
// there is no Empty outcome.
type Speaker struct {
	synth   Synthesizer // nil when TTS is disabled
	timeout time.Duration
	opts    SynthesizeOpts
}

// NewSpeaker creates a Speaker. A nil synthesizer yields a Speaker whose
// every call fails with ErrDisabled.
func NewSpeaker(synth Synthesizer, timeout time.Duration, opts SynthesizeOpts) *Speaker {
	return &Speaker{synth: synth, timeout: timeout, opts: opts}
}

// Enabled reports whether a synthesizer is configured.
func (s *Speaker) Enabled() bool { return s.synth != nil }

// Speak synthesizes text.
func (s *Speaker) Speak(ctx context.Context, text string) outcome.Outcome[Audio] {
	if s.synth == nil {
		return outcome.Fail[Audio](ErrDisabled)
	}
	if strings.TrimSpace(text) == "" {
		return outcome.Fail[Audio](errors.New("nothing to synthesize"))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.synth.Synthesize(ctx, text, s.opts)
	if err != nil {
		return outcome.Fail[Audio](fmt.Errorf("synthesizing speech: %w", err))
	}
	if res == nil || len(res.Audio) == 0 {
		return outcome.Fail[Audio](errors.New("synthesizer returned no audio"))
	}
	slog.Debug("speech synthesized", "text_length", len(text), "audio_bytes", len(res.Audio))
	return outcome.Success(Audio{Data: res.Audio, ContentType: res.ContentType})
}

// Close releases the synthesizer.
func (s *Speaker) Close() error {
	if s.synth == nil {
		return nil
	}
	return s.synth.Close()
}
