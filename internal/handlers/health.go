package handlers

import (
	"net/http"
	"strings"
	"time"
)

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type rateLimitInfo struct {
	Enabled bool   `json:"enabled"`
	Limit   int    `json:"limit"`
	Window  string `json:"window"`
}

type diagnostics struct {
	Status           string          `json:"status"`
	Backend          string          `json:"backend"`
	Keys             map[string]bool `json:"keys"`
	Providers        []string        `json:"providers"`
	Sessions         int             `json:"sessions"`
	Uptime           string          `json:"uptime"`
	OCRLanguages     []string        `json:"ocr_languages"`
	MemoryBudget     int             `json:"memory_budget"`
	RateLimit        rateLimitInfo   `json:"rate_limit"`
	LibraryDocuments int             `json:"library_documents"`
}

// Diagnostics handles GET /diagnostics
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	d := diagnostics{
		Status:       "ok",
		Backend:      h.Config.Chat.Backend,
		Keys:         h.Cascade.Configured(),
		Providers:    h.Cascade.Providers(),
		Uptime:       h.Now().Sub(h.started).Truncate(time.Second).String(),
		OCRLanguages: strings.Split(h.Config.OCR.Languages, "+"),
		MemoryBudget: h.Sessions.Budget(),
		RateLimit: rateLimitInfo{
			Enabled: h.Config.RateLimit.Enabled,
			Limit:   h.Config.RateLimit.RequestsPerMinute,
			Window:  h.Config.RateLimit.Window.String(),
		},
	}
	if len(d.Providers) == 0 {
		d.Status = "degraded"
	}

	count, err := h.Sessions.CountSessions(r.Context())
	if err != nil {
		h.Logger.WithError(err).Warn("Failed to count sessions")
		d.Status = "degraded"
	}
	d.Sessions = count

	if h.Library != nil {
		d.LibraryDocuments = h.Library.Count()
	}

	JSON(w, http.StatusOK, d)
}
