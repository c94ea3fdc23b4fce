package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/handlers"
	"github.com/appana-ai/appana-backend/internal/i18n"
	"github.com/appana-ai/appana-backend/internal/middleware"
	"github.com/appana-ai/appana-backend/internal/services/ai"
	"github.com/appana-ai/appana-backend/internal/services/cache"
	"github.com/appana-ai/appana-backend/internal/services/knowledge"
	"github.com/appana-ai/appana-backend/internal/services/ocr"
	"github.com/appana-ai/appana-backend/internal/services/ocr/engine"
	"github.com/appana-ai/appana-backend/internal/services/postprocess"
	"github.com/appana-ai/appana-backend/internal/services/prompt"
	"github.com/appana-ai/appana-backend/internal/services/storage"
	"github.com/appana-ai/appana-backend/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Missing .env is fine, keys may come from the environment
	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Appana backend...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := middleware.NewMetrics()

	store, err := storage.NewStorage(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	sessions := storage.NewManager(store, cfg.Memory.Budget, metrics, log)
	defer sessions.Close()

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	proxies, err := middleware.NewTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		log.WithError(err).Fatal("Invalid server.trusted_proxies")
	}

	chatLimiter := middleware.NewSlidingWindowLimiter(&cfg.RateLimit, log)
	go chatLimiter.Run(ctx)

	var ocrLimiter middleware.RateLimiter
	if cfg.RateLimit.OCR.Enabled {
		ipLimiter := middleware.NewIPRateLimiter(&cfg.RateLimit.OCR, log)
		go ipLimiter.Run(ctx)
		ocrLimiter = ipLimiter
	}

	var ocrCache cache.Service
	if cfg.Cache.Enabled {
		ocrCache = cache.NewCache(&cfg.Cache, metrics, log)
	}

	var library handlers.Library
	if cfg.Knowledge.Enabled {
		subjects := knowledge.NewSubjectLibrary(log)
		if err := subjects.Load(ctx, cfg.Knowledge.Directory); err != nil {
			// Chat still works with client-sent references only
			log.WithError(err).Error("Failed to load subject library")
		} else {
			log.WithField("documents", subjects.Count()).Info("Subject library loaded")
			library = subjects
			go subjects.RefreshEvery(ctx, cfg.Knowledge.RefreshInterval)
		}
	}

	tesseract := engine.NewTesseract(cfg.OCR.Languages, cfg.OCR.Timeout)
	extractor := ocr.NewExtractor(&cfg.OCR, tesseract, engine.FitzOpener{}, localizer, metrics, log)

	cascade := ai.NewCascade(&cfg.Providers, ai.NewProviders(&cfg.Providers, nil, log), metrics, log)
	if len(cascade.Providers()) == 0 {
		log.Warn("No AI provider keys configured, chat replies will fail")
	} else {
		log.WithField("providers", cascade.Providers()).Info("AI cascade ready")
	}

	handler := handlers.NewHandler(handlers.Dependencies{
		Config:     cfg,
		Logger:     log,
		Metrics:    metrics,
		Limiter:    chatLimiter,
		OCRLimiter: ocrLimiter,
		Proxies:    proxies,
		Sessions:   sessions,
		Cascade:    cascade,
		Prompts:    prompt.NewBuilder(cfg.Chat.ReferenceCap, cfg.Chat.MaxReferences),
		Post:       postprocess.NewProcessor(localizer),
		Extractor:  extractor,
		OCRCache:   ocrCache,
		Library:    library,
		Localizer:  localizer,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlers.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	var metricsServer *http.Server
	if cfg.Monitoring.Metrics.Enabled {
		metricsServer = middleware.NewMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path)
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	go startPeriodicTasks(ctx, sessions, metrics, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received")

	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Metrics server shutdown failed")
		}
	}

	log.Info("Server stopped")
}

// startPeriodicTasks keeps the session gauge current
func startPeriodicTasks(ctx context.Context, sessions *storage.Manager, metrics *middleware.Metrics, log *logrus.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := sessions.CountSessions(ctx)
			if err != nil {
				log.WithError(err).Warn("Failed to count sessions")
				continue
			}
			metrics.SetActiveSessions(float64(count))
		}
	}
}
