package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/qadesk/internal/fault"
	"github.com/nadzzz/qadesk/internal/message"
)

type recorder struct {
	reqs   []message.Request
	result *message.Result
	err    error
}

func (rec *recorder) handle(_ context.Context, req *message.Request) (*message.Result, error) {
	rec.reqs = append(rec.reqs, *req)
	if rec.err != nil {
		return nil, rec.err
	}
	if rec.result != nil {
		return rec.result, nil
	}
	return &message.Result{Action: req.Action, View: &message.View{SessionID: req.SessionID}}, nil
}

func newServer(t *testing.T, rec *recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Routes(rec.handle))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResult(t *testing.T, resp *http.Response) message.Result {
	t.Helper()
	var res message.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestRoutes_MapToActions(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		want        message.Request
		wantStatus  int
	}{
		{"create", http.MethodPost, "/sessions", "", "", message.Request{Action: message.ActionCreateSession}, http.StatusCreated},
		{"view", http.MethodGet, "/sessions/s1", "", "", message.Request{SessionID: "s1", Action: message.ActionView}, http.StatusOK},
		{"delete", http.MethodDelete, "/sessions/s1", "", "", message.Request{SessionID: "s1", Action: message.ActionEndSession}, http.StatusNoContent},
		{"choose text", http.MethodPost, "/sessions/s1/mode", "application/json", `{"mode":"text"}`, message.Request{SessionID: "s1", Action: message.ActionChooseText}, http.StatusOK},
		{"choose image", http.MethodPost, "/sessions/s1/mode", "application/json", `{"mode":"image"}`, message.Request{SessionID: "s1", Action: message.ActionChooseImage}, http.StatusOK},
		{"back", http.MethodPost, "/sessions/s1/mode", "application/json", `{"mode":"landing"}`, message.Request{SessionID: "s1", Action: message.ActionBack}, http.StatusOK},
		{"history", http.MethodPut, "/sessions/s1/history-visibility", "application/json", `{"show":true}`, message.Request{SessionID: "s1", Action: message.ActionSetHistoryVisibility, ShowHistory: true}, http.StatusOK},
		{"question", http.MethodPost, "/sessions/s1/questions", "application/json", `{"question":"What is photosynthesis?"}`, message.Request{SessionID: "s1", Action: message.ActionSubmitText, Question: "What is photosynthesis?"}, http.StatusOK},
		{"voice", http.MethodPost, "/sessions/s1/voice", "audio/wav", "RIFF", message.Request{SessionID: "s1", Action: message.ActionSubmitVoice, Audio: []byte("RIFF"), AudioContentType: "audio/wav"}, http.StatusOK},
		{"raw image", http.MethodPost, "/sessions/s1/image", "image/png", "PNGDATA", message.Request{SessionID: "s1", Action: message.ActionUploadImage, Image: []byte("PNGDATA")}, http.StatusOK},
		{"image question", http.MethodPost, "/sessions/s1/image/questions", "application/json", `{"question":"Summarize this"}`, message.Request{SessionID: "s1", Action: message.ActionSubmitImageQuestion, Question: "Summarize this"}, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			srv := newServer(t, rec)

			resp := do(t, tc.method, srv.URL+tc.path, tc.contentType, strings.NewReader(tc.body))
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			require.Len(t, rec.reqs, 1)
			assert.Equal(t, tc.want, rec.reqs[0])
		})
	}
}

func TestUploadImage_Multipart(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, rec)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", "page.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("PNGDATA"))
	require.NoError(t, mw.Close())

	resp := do(t, http.MethodPost, srv.URL+"/sessions/s1/image", mw.FormDataContentType(), body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, []byte("PNGDATA"), rec.reqs[0].Image)
}

func TestBadRequestsNeverReachHandler(t *testing.T) {
	tests := []struct {
		name, method, path, contentType, body string
	}{
		{"bad json", http.MethodPost, "/sessions/s1/questions", "application/json", "{"},
		{"unknown mode", http.MethodPost, "/sessions/s1/mode", "application/json", `{"mode":"video"}`},
		{"empty voice", http.MethodPost, "/sessions/s1/voice", "audio/wav", ""},
		{"empty image", http.MethodPost, "/sessions/s1/image", "image/png", ""},
		{"multipart without field", http.MethodPost, "/sessions/s1/image", "multipart/form-data; boundary=x", "--x--\r\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			srv := newServer(t, rec)
			resp := do(t, tc.method, srv.URL+tc.path, tc.contentType, strings.NewReader(tc.body))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Empty(t, rec.reqs)
		})
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		kind fault.Kind
		want int
	}{
		{fault.KindInput, http.StatusBadRequest},
		{fault.KindInvalidTransition, http.StatusBadRequest},
		{fault.KindRecognitionEmpty, http.StatusUnprocessableEntity},
		{fault.KindNotFound, http.StatusNotFound},
		{fault.KindServiceUnavailable, http.StatusBadGateway},
		{fault.KindExtraction, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			rec := &recorder{result: &message.Result{ErrorKind: string(tc.kind), Error: "nope"}}
			srv := newServer(t, rec)

			resp := do(t, http.MethodPost, srv.URL+"/sessions/s1/questions", "application/json", strings.NewReader(`{"question":"q"}`))
			assert.Equal(t, tc.want, resp.StatusCode)
			res := decodeResult(t, resp)
			assert.Equal(t, string(tc.kind), res.ErrorKind)
			assert.Equal(t, "nope", res.Error)
		})
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	rec := &recorder{result: &message.Result{ErrorKind: string(fault.KindNotFound), Error: "gone"}}
	srv := newServer(t, rec)
	resp := do(t, http.MethodDelete, srv.URL+"/sessions/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHearResponse(t *testing.T) {
	res := &message.Result{Action: message.ActionHearResponse, AudioContentType: "audio/mpeg"}
	res.SetAudioBytes([]byte("ID3audio"))
	rec := &recorder{result: res}
	srv := newServer(t, rec)

	resp := do(t, http.MethodPost, srv.URL+"/sessions/s1/speech", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, []byte("ID3audio"), data)

	resp = do(t, http.MethodPost, srv.URL+"/sessions/s1/speech?format=json", "", nil)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	got := decodeResult(t, resp)
	audio, err := got.AudioBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio)
}

func TestHearResponse_Failure(t *testing.T) {
	rec := &recorder{result: &message.Result{ErrorKind: string(fault.KindSynthesis), Error: "Error in text-to-speech conversion"}}
	srv := newServer(t, rec)

	resp := do(t, http.MethodPost, srv.URL+"/sessions/s1/speech", "", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestHandlerError(t *testing.T) {
	rec := &recorder{err: errors.New("nil request")}
	srv := newServer(t, rec)
	resp := do(t, http.MethodGet, srv.URL+"/sessions/s1", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSwaggerDoc(t *testing.T) {
	srv := newServer(t, &recorder{})
	resp := do(t, http.MethodGet, srv.URL+"/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/sessions/{id}/questions")
}
