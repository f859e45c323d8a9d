package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 30 * time.Second
)

var ErrNoAPIKey = errors.New("missing API key")

// APIError is a non-2xx reply from the generative language API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error %d (%s): %s", e.StatusCode, e.Status, e.Message)
}

// GeminiConfig configures the hosted Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds one generateContent call. The upstream default is no
	// deadline at all, so an explicit budget is always applied here.
	Timeout time.Duration
}

// Gemini calls the Google generative language REST API directly. The API
// shape differs from the OpenAI-style providers, so no SDK is used.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type generateRequest struct {
	Contents []Content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Role  string `json:"role"`
			Parts []Part `json:"parts"`
		} `json:"content"`
		FinishReason  string `json:"finishReason"`
		SafetyRatings []struct {
			Category    string `json:"category"`
			Probability string `json:"probability"`
		} `json:"safetyRatings"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Gemini) Generate(ctx context.Context, contents []Content) (*Result, error) {
	body, err := json.Marshal(generateRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Gateways and proxies answer failures with HTML, not the API's
		// JSON error envelope. Keep the status code classifiable.
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(raw)),
			}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || decoded.Error.Message != "" {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Status:     decoded.Error.Status,
			Message:    decoded.Error.Message,
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}

	result := &Result{BlockReason: decoded.PromptFeedback.BlockReason}
	if result.BlockReason != "" {
		result.Blocked = true
	}

	if len(decoded.Candidates) > 0 {
		cand := decoded.Candidates[0]
		result.FinishReason = cand.FinishReason
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		result.Text = sb.String()
	}
	for _, cand := range decoded.Candidates {
		for _, rating := range cand.SafetyRatings {
			if flaggedProbability(rating.Probability) {
				result.SafetyIssues = append(result.SafetyIssues, rating.Category+": "+rating.Probability)
			}
		}
	}

	return result, nil
}

// flaggedProbability reports whether a safety rating is above negligible.
func flaggedProbability(p string) bool {
	switch strings.ToUpper(p) {
	case "", "NEGLIGIBLE":
		return false
	default:
		return true
	}
}

// IsAuthError reports whether the failure is an invalid or rejected API key.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return true
		}
		if strings.Contains(apiErr.Message, "API key not valid") || strings.Contains(apiErr.Status, "INVALID_ARGUMENT") && strings.Contains(apiErr.Message, "API key") {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "API key not valid")
}

// IsTimeoutError reports whether the failure is a timeout or exhausted
// connection to the provider.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"Client.Timeout", "context deadline exceeded", "connection refused", "ConnectTimeoutError", "Max retries exceeded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsLocationError reports whether the provider refused the request based on
// the caller's region.
func IsLocationError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UserLocationValidationError")
}
