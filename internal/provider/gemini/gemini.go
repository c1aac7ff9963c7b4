// Package gemini implements answer.Model over the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/qadesk/internal/answer"
	"github.com/nadzzz/qadesk/internal/config"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Finish reasons that mean a safety filter stopped the candidate.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

// Model calls a Gemini model.
type Model struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// New creates a Gemini model client from config.
func New(cfg config.GeminiConfig) *Model {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Model{apiKey: cfg.APIKey, model: model, baseURL: base, client: &http.Client{}}
}

// Name returns the backend identifier.
func (m *Model) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type safetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked"`
}

type candidate struct {
	Content       *content       `json:"content"`
	FinishReason  string         `json:"finishReason"`
	SafetyRatings []safetyRating `json:"safetyRatings"`
}

type generateResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateContent sends parts as a single user turn. Empty parts are dropped
// because the API rejects empty text parameters.
func (m *Model) GenerateContent(ctx context.Context, parts ...string) (*answer.Response, error) {
	if m.apiKey == "" {
		return nil, errors.New("gemini api key missing")
	}

	turn := content{Role: "user"}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		turn.Parts = append(turn.Parts, part{Text: p})
	}
	if len(turn.Parts) == 0 {
		return nil, errors.New("gemini: no non-empty input parts")
	}

	body, err := json.Marshal(generateRequest{Contents: []content{turn}})
	if err != nil {
		return nil, fmt.Errorf("marshalling gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", m.baseURL, m.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating gemini request: %w", err)
	}
	req.Header.Set("x-goog-api-key", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("gemini failed (status %d): %s", resp.StatusCode, respBody)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", err)
	}

	out := toResponse(gr)
	slog.Debug("gemini generation complete", "model", m.model, "candidates", len(out.Candidates), "prompt_blocked", out.PromptBlocked)
	return out, nil
}

func toResponse(gr generateResponse) *answer.Response {
	out := &answer.Response{}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		out.PromptBlocked = true
		out.BlockReason = gr.PromptFeedback.BlockReason
	}
	for _, c := range gr.Candidates {
		ac := answer.Candidate{FinishReason: c.FinishReason, Blocked: blockedFinishReasons[c.FinishReason]}
		for _, r := range c.SafetyRatings {
			if r.Blocked {
				ac.Blocked = true
			}
		}
		if c.Content != nil {
			for _, p := range c.Content.Parts {
				ac.Parts = append(ac.Parts, p.Text)
			}
		}
		out.Candidates = append(out.Candidates, ac)
	}
	return out
}
