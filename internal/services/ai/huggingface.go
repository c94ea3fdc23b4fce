package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
)

// HuggingFace calls the hosted inference API with an instruct-format prompt
type HuggingFace struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewHuggingFace(cfg config.ProviderConfig, client *http.Client) *HuggingFace {
	return &HuggingFace{cfg: cfg, client: client}
}

func (h *HuggingFace) Name() string { return NameHuggingFace }

type hfRequest struct {
	Inputs string `json:"inputs"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (h *HuggingFace) Attempt(ctx context.Context, req models.GenerationRequest) models.ProviderResponse {
	if req.Image != "" {
		return models.Failure(NameHuggingFace, reasonImageUnsupported)
	}

	endpoint := strings.TrimSuffix(h.cfg.BaseURL, "/") + "/models/" + h.cfg.Model
	headers := map[string]string{"Authorization": "Bearer " + h.cfg.APIKey}
	inputs := "<s>[INST] " + req.Prompt + " [/INST]"

	var resp []hfGeneration
	if err := postJSON(ctx, h.client, endpoint, headers, hfRequest{Inputs: inputs}, &resp); err != nil {
		return models.Failure(NameHuggingFace, err.Error())
	}

	if len(resp) == 0 {
		return models.Failure(NameHuggingFace, "response missing [0].generated_text")
	}

	// Text generation echoes the input unless told otherwise
	text := strings.TrimPrefix(resp[0].GeneratedText, inputs)
	if strings.TrimSpace(text) == "" {
		return models.Failure(NameHuggingFace, "empty reply")
	}
	return models.Success(NameHuggingFace, strings.TrimSpace(text))
}
