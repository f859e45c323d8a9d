package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the retail assistant service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool

	GoogleAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	DatabaseURL        string
	CatalogSearchLimit int

	HistoryPairs int

	SpeechProvider string
	STTLanguage    string
	TTSLanguage    string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8765"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "retailbot"),
		GoogleAPIKey:     trimSpaceEnv("GOOGLE_API_KEY"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		// The provider client applies no deadline of its own, so a
		// conservative explicit budget is the default here.
		GeminiTimeout:            30 * time.Second,
		DatabaseURL:              trimSpaceEnv("DATABASE_URL"),
		CatalogSearchLimit:       5,
		HistoryPairs:             10,
		SpeechProvider:           envOrDefault("SPEECH_PROVIDER", "auto"),
		STTLanguage:              envOrDefault("STT_LANGUAGE", "vi-VN"),
		TTSLanguage:              envOrDefault("TTS_LANGUAGE", "vi"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GeminiTimeout, err = durationFromEnv("GEMINI_TIMEOUT", cfg.GeminiTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CatalogSearchLimit, err = intFromEnv("CATALOG_SEARCH_LIMIT", cfg.CatalogSearchLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryPairs, err = intFromEnv("HISTORY_PAIRS", cfg.HistoryPairs)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.GeminiTimeout <= 0 {
		return Config{}, fmt.Errorf("GEMINI_TIMEOUT must be positive")
	}
	if cfg.CatalogSearchLimit <= 0 {
		return Config{}, fmt.Errorf("CATALOG_SEARCH_LIMIT must be positive")
	}
	if cfg.HistoryPairs <= 0 {
		return Config{}, fmt.Errorf("HISTORY_PAIRS must be positive")
	}
	switch strings.ToLower(cfg.SpeechProvider) {
	case "auto", "google", "mock":
	default:
		return Config{}, fmt.Errorf("invalid SPEECH_PROVIDER: %q (expected auto|google|mock)", cfg.SpeechProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimSpaceEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimSpaceEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
