// Package provider builds go-openai clients for OpenAI-compatible hosted models
// (Jina embeddings, Groq chat and vision) and maps their failures onto domain errors.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"multimodal-rag/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Config describes one OpenAI-compatible endpoint.
type Config struct {
	Name    string // label used in logs and metrics, e.g. "jina"
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a client whose HTTP calls are bounded by cfg.Timeout.
func NewClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: %w", cfg.Name, domain.ErrMissingCredential, domain.ErrAuth)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientCfg), nil
}

// WithTimeout bounds ctx by timeout, falling back to the default when timeout is not positive.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// MapError wraps a go-openai failure with domain.ErrAuth for rejected credentials
// and domain.ErrService for everything else.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, classify(apiErr.HTTPStatusCode))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%s: request error %d: %s: %w", op, reqErr.HTTPStatusCode, string(reqErr.Body), classify(reqErr.HTTPStatusCode))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timed out: %w", op, domain.ErrService)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrService)
}

func classify(status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return domain.ErrAuth
	}
	return domain.ErrService
}
