package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/metrics"
	"multimodal-rag/internal/provider"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "meta-llama/llama-4-scout-17b-16e-instruct"
	DefaultPrompt  = "Describe this image in detail. Include any visible text, objects, people, charts or diagrams."
)

// Captioner describes images through an OpenAI-compatible vision chat model.
type Captioner struct {
	client  *openai.Client
	name    string
	model   string
	prompt  string
	timeout time.Duration
	logger  *zap.Logger
}

// Config configures the captioner.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Prompt   string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewCaptioner creates a captioner. A missing API key fails with domain.ErrAuth.
func NewCaptioner(cfg Config) (*Captioner, error) {
	if cfg.Provider == "" {
		cfg.Provider = "groq"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c, err := provider.NewClient(provider.Config{Name: cfg.Provider, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Captioner{
		client:  c,
		name:    cfg.Provider,
		model:   cfg.Model,
		prompt:  cfg.Prompt,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// Describe returns a description of image, or "" when the model returned no content.
// mimeType is sent as-is in the data URL.
func (c *Captioner) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("describe image: %w", domain.ErrEmptyInput)
	}
	if mimeType == "" {
		return "", fmt.Errorf("describe image: no content type: %w", domain.ErrUnsupportedImage)
	}
	ctx, cancel := provider.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: c.prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: DataURL(mimeType, image)}},
				},
			},
		},
	})
	err = provider.MapError("describe image", err)
	metrics.ObserveCall(c.name, "describe_image", start, err)
	if err != nil {
		c.logger.Warn("Vision request failed", zap.String("model", c.model), zap.Error(err))
		return "", err
	}

	if len(resp.Choices) == 0 {
		c.logger.Info("Vision model returned no choices", zap.String("model", c.model))
		return "", nil
	}
	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("Described image",
		zap.Int("bytes", len(image)),
		zap.Int("caption_chars", len(caption)),
		zap.Duration("took", time.Since(start)))
	return caption, nil
}

// DataURL encodes image as a base64 data URL of the given MIME type.
func DataURL(mimeType string, image []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}
