package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/sashabaranov/go-openai"
)

// Groq speaks the OpenAI chat completions protocol
type Groq struct {
	client *openai.Client
	model  string
}

func NewGroq(cfg config.ProviderConfig, httpClient *http.Client) *Groq {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	return &Groq{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}
}

func (g *Groq) Name() string { return NameGroq }

func (g *Groq) Attempt(ctx context.Context, req models.GenerationRequest) models.ProviderResponse {
	if req.Image != "" {
		return models.Failure(NameGroq, reasonImageUnsupported)
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return models.Failure(NameGroq, err.Error())
	}

	if len(resp.Choices) == 0 {
		return models.Failure(NameGroq, "response missing choices[0].message.content")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return models.Failure(NameGroq, "empty reply")
	}
	return models.Success(NameGroq, text)
}
