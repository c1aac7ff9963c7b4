package gemini

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
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.GeminiConfig{APIKey: "key", Model: "gemini-1.5-flash", BaseURL: srv.URL})
}

func TestGenerateContent_WellFormed(t *testing.T) {
	var gotReq generateRequest
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Photosynthesis is..."},{"text":"...light energy."}]},"finishReason":"STOP"}]}`))
	})

	resp, err := m.GenerateContent(context.Background(), "What is photosynthesis?", "", "context text")
	require.NoError(t, err)

	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, []part{{Text: "What is photosynthesis?"}, {Text: "context text"}}, gotReq.Contents[0].Parts)

	got := answer.Classify(resp)
	assert.Equal(t, answer.KindWellFormed, got.Kind)
	assert.Equal(t, "Photosynthesis is... ...light energy.", got.Text)
}

func TestGenerateContent_SafetyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want answer.Kind
	}{
		{"finish reason safety", `{"candidates":[{"finishReason":"SAFETY","safetyRatings":[{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","probability":"HIGH"}]}]}`, answer.KindRefused},
		{"blocked rating", `{"candidates":[{"finishReason":"OTHER","safetyRatings":[{"category":"HARM_CATEGORY_HARASSMENT","blocked":true}]}]}`, answer.KindRefused},
		{"prompt feedback", `{"promptFeedback":{"blockReason":"SAFETY"}}`, answer.KindRefused},
		{"empty", `{}`, answer.KindMalformed},
		{"content without parts", `{"candidates":[{"content":{"role":"model"},"finishReason":"MAX_TOKENS"}]}`, answer.KindMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			resp, err := m.GenerateContent(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, tc.want, answer.Classify(resp).Kind)
		})
	}
}

func TestGenerateContent_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
		}},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not-json")) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestModel(t, tc.handler).GenerateContent(context.Background(), "q")
			assert.Error(t, err)
		})
	}
}

func TestGenerateContent_NoKeyOrInput(t *testing.T) {
	_, err := New(config.GeminiConfig{}).GenerateContent(context.Background(), "q")
	assert.Error(t, err)

	_, err = New(config.GeminiConfig{APIKey: "k"}).GenerateContent(context.Background(), "", " ")
	assert.Error(t, err)
}
