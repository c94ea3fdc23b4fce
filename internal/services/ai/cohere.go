package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
)

// Cohere calls the v1 chat endpoint
type Cohere struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewCohere(cfg config.ProviderConfig, client *http.Client) *Cohere {
	return &Cohere{cfg: cfg, client: client}
}

func (c *Cohere) Name() string { return NameCohere }

type cohereRequest struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}

type cohereResponse struct {
	Text *string `json:"text"`
}

func (c *Cohere) Attempt(ctx context.Context, req models.GenerationRequest) models.ProviderResponse {
	if req.Image != "" {
		return models.Failure(NameCohere, reasonImageUnsupported)
	}

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/chat"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var resp cohereResponse
	if err := postJSON(ctx, c.client, endpoint, headers, cohereRequest{Model: c.cfg.Model, Message: req.Prompt}, &resp); err != nil {
		return models.Failure(NameCohere, err.Error())
	}

	if resp.Text == nil {
		return models.Failure(NameCohere, "response missing text")
	}
	if strings.TrimSpace(*resp.Text) == "" {
		return models.Failure(NameCohere, "empty reply")
	}
	return models.Success(NameCohere, *resp.Text)
}
