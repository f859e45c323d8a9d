package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ngocvo/retailbot/internal/catalog"
	"github.com/ngocvo/retailbot/internal/config"
	"github.com/ngocvo/retailbot/internal/genai"
	"github.com/ngocvo/retailbot/internal/httpapi"
	"github.com/ngocvo/retailbot/internal/observability"
	"github.com/ngocvo/retailbot/internal/pipeline"
	"github.com/ngocvo/retailbot/internal/responder"
	"github.com/ngocvo/retailbot/internal/session"
	"github.com/ngocvo/retailbot/internal/speech"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := catalog.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("catalog store init failed: %v", err)
	}
	defer store.Close()

	catalogMode := "in-memory"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		catalogMode = "postgres"
	}
	log.Printf("catalog store: %s", catalogMode)

	model, err := genai.NewGemini(genai.GeminiConfig{
		APIKey:  cfg.GoogleAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
	})
	if err != nil {
		log.Fatalf("gemini client init failed: %v", err)
	}
	log.Printf("gemini model: %s (timeout %s)", cfg.GeminiModel, cfg.GeminiTimeout)

	var stt speech.STTProvider
	switch strings.ToLower(cfg.SpeechProvider) {
	case "google":
		p, err := speech.NewGoogleProvider(speech.GoogleConfig{
			APIKey:      cfg.GoogleAPIKey,
			STTLanguage: cfg.STTLanguage,
			TTSLanguage: cfg.TTSLanguage,
		})
		if err != nil {
			log.Fatalf("speech provider init failed: %v", err)
		}
		stt = p
		log.Printf("speech provider: google (%s)", cfg.STTLanguage)
	case "mock":
		stt = speech.NewMockProvider()
		log.Printf("speech provider: mock")
	default: // auto
		if p, err := speech.NewGoogleProvider(speech.GoogleConfig{
			APIKey:      cfg.GoogleAPIKey,
			STTLanguage: cfg.STTLanguage,
			TTSLanguage: cfg.TTSLanguage,
		}); err == nil {
			stt = p
			log.Printf("speech provider: google (%s)", cfg.STTLanguage)
		} else {
			stt = speech.NewMockProvider()
			log.Printf("speech provider: mock (%v)", err)
		}
	}

	sessions := session.NewManager(cfg.HistoryPairs, cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		log.Printf("session %s: expired after inactivity", s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	lookup := catalog.NewLookup(store, cfg.CatalogSearchLimit)
	rsp := responder.New(model)
	pl := pipeline.New(lookup, rsp, stt, metrics)

	api := httpapi.New(cfg, sessions, pl, metrics, catalogMode)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)

	go func() {
		log.Printf("server listening on %s (websocket at /ws)", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
