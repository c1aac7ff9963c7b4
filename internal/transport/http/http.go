// Package http implements the REST transport for qadesk.
//
// Sessions are resources; every interaction is a request against
// /sessions/{id}. Questions travel as JSON, voice clips and images as raw
// bodies (images may also be multipart uploads). It is best suited for web
// and mobile front ends.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/qadesk/docs" // registers the OpenAPI document
	"github.com/nadzzz/qadesk/internal/message"
	"github.com/nadzzz/qadesk/internal/transport"
)

// maxUploadBytes caps voice and image request bodies.
const maxUploadBytes = 25 << 20

// ModeRequest selects a page. "landing" goes back; "text" and "image" choose a mode.
type ModeRequest struct {
	Mode string `json:"mode" example:"text"`
}

// VisibilityRequest toggles the history listing.
type VisibilityRequest struct {
	Show bool `json:"show"`
}

// QuestionRequest carries a typed question.
type QuestionRequest struct {
	Question string `json:"question" example:"What is photosynthesis?"`
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// Routes builds the REST API around handler.
func Routes(handler transport.Handler) http.Handler {
	a := &api{handler: handler}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", a.createSession)
	mux.HandleFunc("GET /sessions/{id}", a.getSession)
	mux.HandleFunc("DELETE /sessions/{id}", a.deleteSession)
	mux.HandleFunc("POST /sessions/{id}/mode", a.setMode)
	mux.HandleFunc("PUT /sessions/{id}/history-visibility", a.setHistoryVisibility)
	mux.HandleFunc("POST /sessions/{id}/questions", a.submitQuestion)
	mux.HandleFunc("POST /sessions/{id}/voice", a.submitVoice)
	mux.HandleFunc("POST /sessions/{id}/image", a.uploadImage)
	mux.HandleFunc("POST /sessions/{id}/image/questions", a.submitImageQuestion)
	mux.HandleFunc("POST /sessions/{id}/speech", a.hearResponse)

	// Swagger UI serves the registered OpenAPI document.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

type api struct {
	handler transport.Handler
}

// createSession starts a new session.
//
// @Summary     Create a session
// @Description Starts a session in landing mode and returns its initial view.
// @Tags        sessions
// @Produce     json
// @Success     201  {object}  message.Result
// @Router      /sessions [post]
func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	res, ok := a.dispatch(w, r, &message.Request{Action: message.ActionCreateSession})
	if !ok {
		return
	}
	writeResult(w, res, http.StatusCreated)
}

// getSession returns the current view of a session.
//
// @Summary     Get a session
// @Tags        sessions
// @Produce     json
// @Param       id   path      string  true  "Session ID"
// @Success     200  {object}  message.Result
// @Failure     404  {object}  message.Result
// @Router      /sessions/{id} [get]
func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, &message.Request{Action: message.ActionView})
}

// deleteSession ends a session.
//
// @Summary     End a session
// @Tags        sessions
// @Param       id   path      string  true  "Session ID"
// @Success     204
// @Failure     404  {object}  message.Result
// @Router      /sessions/{id} [delete]
func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	res, ok := a.dispatch(w, r, &message.Request{SessionID: r.PathValue("id"), Action: message.ActionEndSession})
	if !ok {
		return
	}
	if transport.StatusOf(res) != transport.StatusOK {
		writeResult(w, res, http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setMode switches between landing, text and image mode.
//
// @Summary     Change mode
// @Description "text" and "image" are accepted from landing; "landing" goes back from either.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       id    path      string       true  "Session ID"
// @Param       mode  body      ModeRequest  true  "Target mode"
// @Success     200   {object}  message.Result
// @Failure     400   {object}  message.Result
// @Router      /sessions/{id}/mode [post]
func (a *api) setMode(w http.ResponseWriter, r *http.Request) {
	var body ModeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	mode, err := message.ParseMode(body.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var action message.Action
	switch mode {
	case message.ModeLanding:
		action = message.ActionBack
	case message.ModeTextQuestion:
		action = message.ActionChooseText
	case message.ModeImageQuestion:
		action = message.ActionChooseImage
	default:
		http.Error(w, "unsupported mode", http.StatusBadRequest)
		return
	}
	a.serve(w, r, &message.Request{Action: action})
}

// setHistoryVisibility toggles the question history listing.
//
// @Summary     Show or hide history
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       id          path      string             true  "Session ID"
// @Param       visibility  body      VisibilityRequest  true  "Visibility"
// @Success     200         {object}  message.Result
// @Router      /sessions/{id}/history-visibility [put]
func (a *api) setHistoryVisibility(w http.ResponseWriter, r *http.Request) {
	var body VisibilityRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	a.serve(w, r, &message.Request{Action: message.ActionSetHistoryVisibility, ShowHistory: body.Show})
}

// submitQuestion answers a typed question in text mode.
//
// @Summary     Ask a question
// @Description The answer is recorded in history. Safety refusals and generation errors are
// @Description returned as answer text with a notice.
// @Tags        questions
// @Accept      json
// @Produce     json
// @Param       id        path      string           true  "Session ID"
// @Param       question  body      QuestionRequest  true  "Question"
// @Success     200       {object}  message.Result
// @Failure     400       {object}  message.Result   "Empty question or wrong mode"
// @Router      /sessions/{id}/questions [post]
func (a *api) submitQuestion(w http.ResponseWriter, r *http.Request) {
	var body QuestionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	a.serve(w, r, &message.Request{Action: message.ActionSubmitText, Question: body.Question})
}

// submitVoice answers a spoken question in text mode.
//
// @Summary     Ask by voice
// @Description POST the recorded utterance as the raw body with its audio Content-Type.
// @Tags        questions
// @Accept      audio/wav
// @Accept      audio/ogg
// @Accept      audio/webm
// @Produce     json
// @Param       id   path      string  true  "Session ID"
// @Success     200  {object}  message.Result
// @Failure     422  {object}  message.Result  "Speech could not be understood"
// @Failure     502  {object}  message.Result  "Speech service unreachable"
// @Router      /sessions/{id}/voice [post]
func (a *api) submitVoice(w http.ResponseWriter, r *http.Request) {
	audio, ok := readBody(w, r)
	if !ok {
		return
	}
	a.serve(w, r, &message.Request{
		Action:           message.ActionSubmitVoice,
		Audio:            audio,
		AudioContentType: r.Header.Get("Content-Type"),
	})
}

// uploadImage extracts text from an image and stores it as the question context.
//
// @Summary     Upload an image
// @Description POST a jpg or png as the raw body, or as multipart field "image".
// @Tags        images
// @Accept      image/png
// @Accept      image/jpeg
// @Accept      multipart/form-data
// @Produce     json
// @Param       id     path      string  true   "Session ID"
// @Param       image  formData  file    false  "Image file (multipart uploads)"
// @Success     200    {object}  message.Result
// @Failure     502    {object}  message.Result  "Text extraction failed"
// @Router      /sessions/{id}/image [post]
func (a *api) uploadImage(w http.ResponseWriter, r *http.Request) {
	var image []byte
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		f, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "reading image field: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		if image, err = io.ReadAll(f); err != nil {
			http.Error(w, "reading image: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		var ok bool
		if image, ok = readBody(w, r); !ok {
			return
		}
	}
	a.serve(w, r, &message.Request{Action: message.ActionUploadImage, Image: image})
}

// submitImageQuestion answers a question about the uploaded image.
//
// @Summary     Ask about the image
// @Tags        images
// @Accept      json
// @Produce     json
// @Param       id        path      string           true  "Session ID"
// @Param       question  body      QuestionRequest  true  "Question"
// @Success     200       {object}  message.Result
// @Failure     400       {object}  message.Result   "No image uploaded or empty question"
// @Router      /sessions/{id}/image/questions [post]
func (a *api) submitImageQuestion(w http.ResponseWriter, r *http.Request) {
	var body QuestionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	a.serve(w, r, &message.Request{Action: message.ActionSubmitImageQuestion, Question: body.Question})
}

// hearResponse synthesizes the last response of the active mode.
//
// @Summary     Hear the response
// @Description Returns the audio clip. With format=json the Result with base64 audio is returned instead.
// @Tags        speech
// @Produce     audio/wav
// @Produce     audio/mpeg
// @Produce     json
// @Param       id      path      string  true   "Session ID"
// @Param       format  query     string  false  "Set to json for a JSON Result"
// @Success     200     {file}    binary
// @Failure     502     {object}  message.Result  "Synthesis failed"
// @Router      /sessions/{id}/speech [post]
func (a *api) hearResponse(w http.ResponseWriter, r *http.Request) {
	res, ok := a.dispatch(w, r, &message.Request{SessionID: r.PathValue("id"), Action: message.ActionHearResponse})
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "json" || transport.StatusOf(res) != transport.StatusOK {
		writeResult(w, res, http.StatusOK)
		return
	}

	audio, err := res.AudioBytes()
	if err != nil {
		http.Error(w, "decoding audio: "+err.Error(), http.StatusInternalServerError)
		return
	}
	ct := res.AudioContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(audio)
}

// serve dispatches req for the session in the path and writes the result.
func (a *api) serve(w http.ResponseWriter, r *http.Request, req *message.Request) {
	req.SessionID = r.PathValue("id")
	res, ok := a.dispatch(w, r, req)
	if !ok {
		return
	}
	writeResult(w, res, http.StatusOK)
}

func (a *api) dispatch(w http.ResponseWriter, r *http.Request, req *message.Request) (*message.Result, bool) {
	res, err := a.handler(r.Context(), req)
	if err != nil {
		slog.Error("dispatch failed", "action", req.Action, "error", err)
		http.Error(w, "dispatch error: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return res, true
}

// writeResult encodes res with the status its error kind maps to, or okStatus.
func writeResult(w http.ResponseWriter, res *message.Result, okStatus int) {
	status := okStatus
	switch transport.StatusOf(res) {
	case transport.StatusOK:
	case transport.StatusBadRequest:
		status = http.StatusBadRequest
	case transport.StatusUnprocessable:
		status = http.StatusUnprocessableEntity
	case transport.StatusNotFound:
		status = http.StatusNotFound
	case transport.StatusUpstream:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	if len(data) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}
