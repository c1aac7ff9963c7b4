package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/qadesk/internal/answer"
	"github.com/nadzzz/qadesk/internal/config"
	"github.com/nadzzz/qadesk/internal/speech"
)

func TestRecognize_OpenAIFlavor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "fr", r.FormValue("language"))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "audio.wav", hdr.Filename)
		_, _ = w.Write([]byte(`{"text":"bonjour","language":"fr"}`))
	}))
	defer srv.Close()

	p := New(config.LocalConfig{WhisperEndpoint: srv.URL + "/v1/audio/transcriptions", Language: "fr"})
	text, err := p.Recognize(context.Background(), []byte("RIFF"), "audio/wav", speech.TranscribeOpts{})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", text)
}

func TestRecognize_ASRFlavor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/asr", r.URL.Path)
		assert.Equal(t, "transcribe", r.URL.Query().Get("task"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "true", r.URL.Query().Get("vad_filter"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("audio_file")
		require.NoError(t, err)
		_, _ = w.Write([]byte(`{"text":"what is an atom"}`))
	}))
	defer srv.Close()

	p := New(config.LocalConfig{WhisperEndpoint: srv.URL + "/asr", WhisperType: "asr", VADFilter: true})
	text, err := p.Recognize(context.Background(), []byte("RIFF"), "audio/wav", speech.TranscribeOpts{Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "what is an atom", text)
}

func TestRecognize_NotConfigured(t *testing.T) {
	_, err := New(config.LocalConfig{}).Recognize(context.Background(), []byte("x"), "", speech.TranscribeOpts{})
	assert.Error(t, err)
}

func TestGenerateContent_Ollama(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3","response":"An atom is...","done":true}`))
	}))
	defer srv.Close()

	p := New(config.LocalConfig{LLMEndpoint: srv.URL + "/api/generate"})
	resp, err := p.GenerateContent(context.Background(), "Summarize this", "Chapter 3")
	require.NoError(t, err)

	assert.Equal(t, "llama3", got["model"])
	assert.Equal(t, "Summarize this\n\nChapter 3", got["prompt"])
	a := answer.Classify(resp)
	assert.Equal(t, answer.KindWellFormed, a.Kind)
	assert.Equal(t, "An atom is...", a.Text)
}

func TestGenerateContent_Chat(t *testing.T) {
	tests := []struct {
		name string
		body string
		want answer.Kind
	}{
		{"answer", `{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"An atom is..."}}]}`, answer.KindWellFormed},
		{"filtered", `{"choices":[{"finish_reason":"content_filter","message":{"role":"assistant","content":""}}]}`, answer.KindRefused},
		{"empty ollama response", `{"response":"","done":true}`, answer.KindMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got struct {
				Messages []map[string]string `json:"messages"`
			}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := New(config.LocalConfig{LLMEndpoint: srv.URL + "/v1/chat/completions", LLMModel: "llama3.2:1b"})
			resp, err := p.GenerateContent(context.Background(), "What is an atom?")
			require.NoError(t, err)
			assert.Equal(t, []map[string]string{{"role": "user", "content": "What is an atom?"}}, got.Messages)
			assert.Equal(t, tc.want, answer.Classify(resp).Kind)
		})
	}
}

func TestGenerateContent_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(config.LocalConfig{LLMEndpoint: srv.URL}).GenerateContent(context.Background(), "q")
	assert.ErrorContains(t, err, "404")

	_, err = New(config.LocalConfig{}).GenerateContent(context.Background(), "q")
	assert.Error(t, err)
}
