package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/qadesk/internal/answer"
	"github.com/nadzzz/qadesk/internal/config"
	"github.com/nadzzz/qadesk/internal/dispatch"
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/outcome"
	"github.com/nadzzz/qadesk/internal/query"
	"github.com/nadzzz/qadesk/internal/session"
	"github.com/nadzzz/qadesk/internal/speech"
	"github.com/nadzzz/qadesk/internal/tts"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, q message.Query) answer.Answer {
	if q.HasContext {
		return answer.Answer{Kind: answer.KindWellFormed, Text: "about the image: " + q.Context}
	}
	return answer.Answer{Kind: answer.KindWellFormed, Text: "Photosynthesis is... ...light energy."}
}

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte) (string, error) { return "Chapter 3", nil }

type stubSpeaker struct{}

func (stubSpeaker) Speak(_ context.Context, text string) outcome.Outcome[tts.Audio] {
	return outcome.Success(tts.Audio{Data: []byte("mp3:" + text), ContentType: "audio/mpeg"})
}

type stubTranscriber struct{ out outcome.Outcome[string] }

func (s stubTranscriber) Transcribe(context.Context, speech.Device) outcome.Outcome[string] {
	return s.out
}

func newConsole(t *testing.T, input string, tr stubTranscriber) (*Console, *bytes.Buffer, *dispatch.Dispatcher) {
	t.Helper()
	d := dispatch.New(session.Deps{
		Normalizer: query.NewNormalizer(tr),
		Generator:  stubGenerator{},
		Extractor:  stubExtractor{},
		Speaker:    stubSpeaker{},
	}, config.SessionConfig{TTL: time.Minute, CleanupInterval: time.Minute},
		dispatch.WithCaptureDevice(speech.ClipDevice{Audio: []byte("mic")}))

	out := &bytes.Buffer{}
	c := New(d.Handle, strings.NewReader(input), out)
	return c, out, d
}

func TestConsole_TextFlow(t *testing.T) {
	input := strings.Join([]string{
		"1",
		"What is photosynthesis?",
		":history on",
		":back",
		":quit",
	}, "\n")
	c, out, d := newConsole(t, input, stubTranscriber{})

	require.NoError(t, c.Run(context.Background()))

	s := out.String()
	assert.Contains(t, s, "Welcome to the Q&A Application")
	assert.Contains(t, s, "Response:\nPhotosynthesis is... ...light energy.")
	assert.Contains(t, s, "Q1: What is photosynthesis?\nA1: Photosynthesis is... ...light energy.")
	assert.Equal(t, 0, d.Sessions(), "session ended on quit")
}

func TestConsole_Voice(t *testing.T) {
	c, out, _ := newConsole(t, "1\n:voice\n", stubTranscriber{out: outcome.Success("what is an atom")})
	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "Recognized: what is an atom")

	c, out, _ = newConsole(t, "1\n:voice\n", stubTranscriber{out: outcome.Empty[string](speech.ReasonUnintelligible)})
	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "[warning] Could not understand the audio")
}

func TestConsole_ImageFlow(t *testing.T) {
	input := strings.Join([]string{
		"2",
		"Summarize this",
		":image page.png",
		"Summarize this",
		":hear answer.mp3",
	}, "\n")
	c, out, _ := newConsole(t, input, stubTranscriber{})

	files := map[string][]byte{"page.png": []byte("PNG")}
	c.readFile = func(name string) ([]byte, error) {
		if data, ok := files[name]; ok {
			return data, nil
		}
		return nil, errors.New("no such file")
	}
	c.writeFile = func(name string, data []byte) error {
		files[name] = data
		return nil
	}

	require.NoError(t, c.Run(context.Background()))

	s := out.String()
	assert.Contains(t, s, "[warning] Please upload an image first.")
	assert.Contains(t, s, "Response:\nabout the image: Chapter 3")
	assert.Equal(t, []byte("mp3:about the image: Chapter 3"), files["answer.mp3"])
	assert.Contains(t, s, "Saved 30 bytes of audio/mpeg to answer.mp3")
}

func TestConsole_RejectsBadCommands(t *testing.T) {
	input := strings.Join([]string{
		"3",
		":dance",
		":history maybe",
		"1",
		":image",
		":hear",
		"",
		"   ",
	}, "\n")
	c, out, _ := newConsole(t, input, stubTranscriber{})
	require.NoError(t, c.Run(context.Background()))

	s := out.String()
	assert.Contains(t, s, "choose 1 or 2")
	assert.Contains(t, s, "unknown command :dance")
	assert.Contains(t, s, "usage: :history on|off")
	assert.Contains(t, s, "usage: :image <path>")
	assert.Contains(t, s, "usage: :hear <out-file>")
}

func TestConsole_InvalidTransitionIsReported(t *testing.T) {
	c, out, _ := newConsole(t, ":back\n", stubTranscriber{})
	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "[error] cannot back from landing mode")
}
