package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/middleware"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/appana-ai/appana-backend/internal/services/cache"
	"github.com/appana-ai/appana-backend/internal/services/postprocess"
	"github.com/appana-ai/appana-backend/internal/services/prompt"
	"github.com/appana-ai/appana-backend/internal/services/storage"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Generator produces a reply for a prompt and optional image
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) models.ProviderResponse
	Configured() map[string]bool
	Providers() []string
}

// Extractor turns uploads into text
type Extractor interface {
	ExtractImage(ctx context.Context, data []byte) (*models.OCRResult, error)
	ExtractPDF(ctx context.Context, data []byte) (*models.OCRResult, error)
}

// Library supplies server-side reference documents for a subject
type Library interface {
	Match(subject string, limit int) []models.ReferenceDoc
	Count() int
}

// Localizer looks up user-facing texts
type Localizer interface {
	Get(lang, messageID string, data map[string]interface{}) string
}

// Dependencies are everything the HTTP surface needs. Metrics, OCRLimiter,
// Proxies, OCRCache, Library and Now are optional; a nil Proxies keys the
// upload limiter on the connection peer.
type Dependencies struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Metrics    *middleware.Metrics
	Limiter    middleware.RateLimiter
	OCRLimiter middleware.RateLimiter
	Proxies    *middleware.TrustedProxies
	Sessions   *storage.Manager
	Cascade    Generator
	Prompts    *prompt.Builder
	Post       *postprocess.Processor
	Extractor  Extractor
	OCRCache   cache.Service
	Library    Library
	Localizer  Localizer
	Now        func() time.Time
}

// Handler serves the public API
type Handler struct {
	Dependencies
	security *middleware.SecurityMiddleware
	started  time.Time
}

// NewHandler creates the API handler
func NewHandler(deps Dependencies) *Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		Dependencies: deps,
		security:     middleware.NewSecurityMiddleware(deps.Config.Chat.MaxMessageLength, deps.Logger),
		started:      deps.Now(),
	}
}

// NewRouter registers every route. POST routes also accept OPTIONS so CORS
// preflight requests match and are answered by the CORS middleware.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recover(h.Logger))
	router.Use(middleware.RequestLogger(h.Logger, h.Metrics))
	router.Use(middleware.CORS(h.Config.Server.AllowedOrigins))

	router.HandleFunc("/api/ai-chat", h.Chat).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/memory/save", h.SaveMemory).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/memory/clear", h.ClearMemory).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/memory/get", h.GetMemory).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/diagnostics", h.Diagnostics).Methods(http.MethodGet)

	ocr := router.PathPrefix("/ocr").Subrouter()
	if h.OCRLimiter != nil {
		ocr.Use(middleware.LimitByIP(h.OCRLimiter, h.Proxies, h.Metrics, h.rejectOCR))
	}
	ocr.HandleFunc("/image", h.OCRImage).Methods(http.MethodPost, http.MethodOptions)
	ocr.HandleFunc("/pdf", h.OCRPDF).Methods(http.MethodPost, http.MethodOptions)

	return router
}
