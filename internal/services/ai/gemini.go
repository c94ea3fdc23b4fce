package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
)

// Gemini calls the generateContent endpoint. It is the only multimodal
// provider in the cascade.
type Gemini struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewGemini(cfg config.ProviderConfig, client *http.Client) *Gemini {
	return &Gemini{cfg: cfg, client: client}
}

func (g *Gemini) Name() string { return NameGemini }

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Attempt(ctx context.Context, req models.GenerationRequest) models.ProviderResponse {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimSuffix(g.cfg.BaseURL, "/"), g.cfg.Model)
	headers := map[string]string{"x-goog-api-key": g.cfg.APIKey}

	parts := []geminiPart{{Text: req.Prompt}}
	if req.Image != "" {
		parts = append(parts, geminiPart{InlineData: &geminiBlob{MimeType: "image/jpeg", Data: req.Image}})
	}
	body := geminiRequest{Contents: []geminiContent{{Parts: parts}}}

	var resp geminiResponse
	if err := postJSON(ctx, g.client, endpoint, headers, body, &resp); err != nil {
		return models.Failure(NameGemini, err.Error())
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return models.Failure(NameGemini, "response missing candidates[0].content.parts[0].text")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return models.Failure(NameGemini, "empty reply")
	}
	return models.Success(NameGemini, text)
}
