// Package openai implements the qadesk capabilities on OpenAI's APIs.
//
// It uses the Audio Transcription API (Whisper / gpt-4o-transcribe) for
// speech-to-text, the Chat Completions API for answer generation, and the
// Audio Speech API for text-to-speech.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/nadzzz/qadesk/internal/answer"
	"github.com/nadzzz/qadesk/internal/config"
	"github.com/nadzzz/qadesk/internal/speech"
	"github.com/nadzzz/qadesk/internal/tts"
)

const defaultBaseURL = "https://api.openai.com"

// Provider calls OpenAI APIs. One value serves whichever capabilities its
// config section names models for.
type Provider struct {
	apiKey             string
	baseURL            string
	completionModel    string
	transcriptionModel string
	speechModel        string
	voice              string
	client             *http.Client
}

// New creates a new OpenAI provider from config.
func New(cfg config.OpenAIConfig) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Provider{
		apiKey:             cfg.APIKey,
		baseURL:            base,
		completionModel:    cfg.CompletionModel,
		transcriptionModel: cfg.TranscriptionModel,
		speechModel:        cfg.SpeechModel,
		voice:              cfg.Voice,
		client:             &http.Client{},
	}
}

// Name returns the backend identifier.
func (p *Provider) Name() string { return "openai" }

func (p *Provider) do(req *http.Request, what string) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, errors.New("openai api key missing")
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", what, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%s failed (status %d): %s", what, resp.StatusCode, respBody)
	}
	return resp, nil
}

// Recognize sends audio to the OpenAI Transcription API.
func (p *Provider) Recognize(ctx context.Context, audio []byte, contentType string, opts speech.TranscribeOpts) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio"+extFromContentType(contentType))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}

	model := p.transcriptionModel
	if opts.Model != "" {
		model = opts.Model
	}
	_ = writer.WriteField("model", model)
	if opts.Language != "" {
		_ = writer.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		_ = writer.WriteField("prompt", opts.Prompt)
	}
	_ = writer.WriteField("response_format", "json")
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.do(req, "transcription")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("transcription complete", "text_length", len(result.Text))
	return result.Text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateContent sends each part as a user message, in order, to the Chat Completions API.
func (p *Provider) GenerateContent(ctx context.Context, parts ...string) (*answer.Response, error) {
	reqBody := chatRequest{Model: p.completionModel}
	for _, part := range parts {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "user", Content: part})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.do(req, "chat")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	out := &answer.Response{}
	for _, c := range chatResp.Choices {
		ac := answer.Candidate{
			FinishReason: c.FinishReason,
			Blocked:      c.FinishReason == "content_filter" || c.Message.Refusal != nil,
		}
		if c.Message.Content != nil {
			ac.Parts = []string{*c.Message.Content}
		}
		out.Candidates = append(out.Candidates, ac)
	}
	slog.Debug("chat generation complete", "model", p.completionModel, "choices", len(out.Candidates))
	return out, nil
}

// Synthesize renders text with the Audio Speech API as MP3.
func (p *Provider) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, errors.New("empty text for synthesis")
	}
	voice := p.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}
	bodyBytes, err := json.Marshal(map[string]string{
		"model":           p.speechModel,
		"input":           text,
		"voice":           voice,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling speech request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.do(req, "speech")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech audio: %w", err)
	}
	slog.Debug("speech synthesis complete", "audio_bytes", len(audio), "voice", voice)
	return &tts.SynthesizeResult{Audio: audio, ContentType: "audio/mpeg"}, nil
}

// Close is a no-op for the OpenAI provider.
func (p *Provider) Close() error { return nil }

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		return ".wav"
	}
}
