// Package local implements speech recognition and answer generation on
// self-hosted models.
//
// It supports any Whisper-compatible transcription endpoint (e.g., whisper.cpp
// server, faster-whisper, whisper-asr-webservice) and either Ollama's
// /api/generate or any OpenAI-compatible chat endpoint (Ollama, vLLM,
// llama.cpp server).
package local

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
	"net/url"
	"strings"

	"github.com/nadzzz/qadesk/internal/answer"
	"github.com/nadzzz/qadesk/internal/config"
	"github.com/nadzzz/qadesk/internal/speech"
)

// Provider talks to self-hosted Whisper and LLM servers.
type Provider struct {
	whisperEndpoint string
	whisperType     string // "openai" or "asr"
	llmEndpoint     string
	llmModel        string
	vadFilter       bool
	defaultLanguage string
	client          *http.Client
}

// New creates a new local provider from config.
func New(cfg config.LocalConfig) *Provider {
	wt := cfg.WhisperType
	if wt == "" {
		wt = "openai"
	}
	model := cfg.LLMModel
	if model == "" {
		model = "llama3"
	}
	return &Provider{
		whisperEndpoint: cfg.WhisperEndpoint,
		whisperType:     wt,
		llmEndpoint:     cfg.LLMEndpoint,
		llmModel:        model,
		vadFilter:       cfg.VADFilter,
		defaultLanguage: cfg.Language,
		client:          &http.Client{},
	}
}

// Name returns the backend identifier.
func (p *Provider) Name() string { return "local" }

// Recognize sends audio to the local Whisper-compatible endpoint.
// Supports two flavors:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    whisper-asr-webservice (POST /asr with query params)
func (p *Provider) Recognize(ctx context.Context, audio []byte, contentType string, opts speech.TranscribeOpts) (string, error) {
	if p.whisperEndpoint == "" {
		return "", errors.New("local whisper endpoint not configured")
	}

	lang := opts.Language
	if lang == "" {
		lang = p.defaultLanguage
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	field := "file"
	if p.whisperType == "asr" {
		field = "audio_file"
	}
	part, err := writer.CreateFormFile(field, "audio"+extFromContentType(contentType))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}

	reqURL := p.whisperEndpoint
	if p.whisperType == "asr" {
		q := make(url.Values)
		q.Set("task", "transcribe")
		q.Set("output", "json")
		q.Set("encode", "true")
		if lang != "" {
			q.Set("language", lang)
		}
		if opts.Prompt != "" {
			q.Set("initial_prompt", opts.Prompt)
		}
		if p.vadFilter {
			q.Set("vad_filter", "true")
		}
		reqURL += "?" + q.Encode()
	} else {
		if opts.Model != "" {
			_ = writer.WriteField("model", opts.Model)
		}
		if lang != "" {
			_ = writer.WriteField("language", lang)
		}
		_ = writer.WriteField("response_format", "json")
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	slog.Debug("local whisper request", "url", reqURL, "flavor", p.whisperType)

	data, err := p.do(req, "local transcription")
	if err != nil {
		return "", err
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("local transcription complete", "text_length", len(result.Text), "language", result.Language)
	return result.Text, nil
}

// GenerateContent sends parts to the local LLM. Ollama's /api/generate takes a
// single prompt, so parts are joined with blank lines there; chat endpoints
// get one user message per part.
func (p *Provider) GenerateContent(ctx context.Context, parts ...string) (*answer.Response, error) {
	if p.llmEndpoint == "" {
		return nil, errors.New("local llm endpoint not configured")
	}

	var reqBody map[string]any
	if strings.HasSuffix(p.llmEndpoint, "/api/generate") {
		reqBody = map[string]any{
			"model":  p.llmModel,
			"prompt": strings.Join(parts, "\n\n"),
			"stream": false,
		}
	} else {
		msgs := make([]map[string]string, 0, len(parts))
		for _, part := range parts {
			msgs = append(msgs, map[string]string{"role": "user", "content": part})
		}
		reqBody = map[string]any{
			"model":    p.llmModel,
			"messages": msgs,
			"stream":   false,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.llmEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := p.do(req, "local LLM")
	if err != nil {
		return nil, err
	}

	out, err := toResponse(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("local generation complete", "model", p.llmModel, "candidates", len(out.Candidates))
	return out, nil
}

// Close is a no-op for the local provider.
func (p *Provider) Close() error { return nil }

func (p *Provider) do(req *http.Request, what string) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%s failed (status %d): %s", what, resp.StatusCode, respBody)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", what, err)
	}
	return data, nil
}

// toResponse accepts either the OpenAI chat shape or Ollama's generate shape.
func toResponse(data []byte) (*answer.Response, error) {
	var chatResp struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Response *string `json:"response"`
		Done     bool    `json:"done"`
	}
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, fmt.Errorf("decoding LLM response: %w", err)
	}

	out := &answer.Response{}
	switch {
	case chatResp.Response != nil:
		c := answer.Candidate{FinishReason: "stop"}
		if *chatResp.Response != "" {
			c.Parts = []string{*chatResp.Response}
		}
		out.Candidates = append(out.Candidates, c)
	default:
		for _, ch := range chatResp.Choices {
			c := answer.Candidate{
				FinishReason: ch.FinishReason,
				Blocked:      ch.FinishReason == "content_filter",
			}
			if ch.Message.Content != "" {
				c.Parts = []string{ch.Message.Content}
			}
			out.Candidates = append(out.Candidates, c)
		}
	}
	return out, nil
}

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
	default:
		return ".wav"
	}
}
