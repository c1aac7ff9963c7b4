package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/outcome"
	"github.com/nadzzz/qadesk/internal/speech"
)

type fakeTranscriber struct {
	out   outcome.Outcome[string]
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, speech.Device) outcome.Outcome[string] {
	f.calls++
	return f.out
}

func strPtr(s string) *string { return &s }

func TestNormalize_Text(t *testing.T) {
	n := NewNormalizer(nil)

	q, err := n.Normalize(context.Background(), message.ModeTextQuestion, Input{Text: "What is photosynthesis?"}, strPtr("ignored"))
	require.NoError(t, err)
	assert.Equal(t, message.Query{Text: "What is photosynthesis?"}, q, "text mode never carries context")

	for _, blank := range []string{"", "   ", "\t\n"} {
		_, err := n.Normalize(context.Background(), message.ModeTextQuestion, Input{Text: blank}, nil)
		assert.ErrorIs(t, err, fault.ErrInput)
	}
}

func TestNormalize_Voice(t *testing.T) {
	dev := speech.ClipDevice{Audio: []byte("RIFF"), ContentType: "audio/wav"}

	tests := []struct {
		name     string
		out      outcome.Outcome[string]
		wantText string
		wantErr  error
		wantMsg  string
	}{
		{"recognized", outcome.Success("what is an atom"), "what is an atom", nil, ""},
		{"unintelligible", outcome.Empty[string](speech.ReasonUnintelligible), "", fault.ErrRecognitionEmpty, MsgUnintelligible},
		{"network", outcome.Fail[string](errors.New("dial tcp: timeout")), "", fault.ErrServiceUnavailable, MsgRequestFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := &fakeTranscriber{out: tc.out}
			q, err := NewNormalizer(tr).Normalize(context.Background(), message.ModeTextQuestion, Input{Device: dev}, nil)
			assert.Equal(t, 1, tr.calls)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.wantMsg, fault.Message(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantText, q.Text)
			assert.False(t, q.HasContext)
		})
	}
}

func TestNormalize_VoiceWithoutRecognizer(t *testing.T) {
	_, err := NewNormalizer(nil).Normalize(context.Background(), message.ModeTextQuestion, Input{Device: speech.ClipDevice{}}, nil)
	assert.ErrorIs(t, err, fault.ErrServiceUnavailable)
}

func TestNormalize_Image(t *testing.T) {
	n := NewNormalizer(nil)

	q, err := n.Normalize(context.Background(), message.ModeImageQuestion, Input{Text: "Summarize this"}, strPtr("Chapter 3"))
	require.NoError(t, err)
	assert.Equal(t, message.Query{Text: "Summarize this", Context: "Chapter 3", HasContext: true}, q)

	q, err = n.Normalize(context.Background(), message.ModeImageQuestion, Input{Text: "Summarize this"}, strPtr(""))
	require.NoError(t, err)
	assert.True(t, q.HasContext, "empty extracted text is still context")
	assert.Equal(t, "", q.Context)

	_, err = n.Normalize(context.Background(), message.ModeImageQuestion, Input{Text: "Summarize this"}, nil)
	assert.ErrorIs(t, err, fault.ErrInput)
	assert.Equal(t, MsgNoImage, fault.Message(err))

	_, err = n.Normalize(context.Background(), message.ModeImageQuestion, Input{Text: " "}, strPtr("ctx"))
	assert.ErrorIs(t, err, fault.ErrInput)

	_, err = n.Normalize(context.Background(), message.ModeImageQuestion, Input{Device: speech.ClipDevice{}}, strPtr("ctx"))
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}

func TestNormalize_LandingAndUnknownModes(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.Normalize(context.Background(), message.ModeLanding, Input{Text: "q"}, nil)
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)

	_, err = n.Normalize(context.Background(), message.Mode(42), Input{Text: "q"}, nil)
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}
