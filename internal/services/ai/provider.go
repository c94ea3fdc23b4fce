package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Provider is one upstream model. Attempt makes exactly one call and folds
// every error into a Failure response. Text-only providers fail requests
// that carry an image without calling out.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, req models.GenerationRequest) models.ProviderResponse
}

// Provider names in cascade priority order
const (
	NameGemini      = "gemini"
	NameGroq        = "groq"
	NameCohere      = "cohere"
	NameHuggingFace = "huggingface"
)

const reasonImageUnsupported = "image not supported"

// maxErrorBody bounds how much of an error response ends up in a reason
const maxErrorBody = 512

// NewProviders builds the adapters whose API key is set, in priority order.
// A nil client gets one bounded by cfg.Timeout.
func NewProviders(cfg *config.ProvidersConfig, client *http.Client, logger *logrus.Logger) []Provider {
	if client == nil {
		client = newHTTPClient(cfg.Timeout)
	}

	var providers []Provider

	if cfg.Gemini.APIKey != "" {
		providers = append(providers, NewGemini(cfg.Gemini, client))
	}
	if cfg.Groq.APIKey != "" {
		providers = append(providers, NewGroq(cfg.Groq, client))
	}
	if cfg.Cohere.APIKey != "" {
		providers = append(providers, NewCohere(cfg.Cohere, client))
	}
	if cfg.HuggingFace.APIKey != "" {
		providers = append(providers, NewHuggingFace(cfg.HuggingFace, client))
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	logger.WithField("providers", names).Info("AI providers configured")

	return providers
}

// postJSON sends body as JSON and decodes a 2xx response into out
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		// Drop the request URL, it may carry credentials
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
