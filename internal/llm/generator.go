package llm

import (
	"context"
	"fmt"
	"slices"
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

	// DefaultSystemPrompt restricts answers to the retrieved context.
	DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
		"If the context does not contain the answer, say that you don't know."
)

// DefaultModels is the enumerated set of chat models offered to the user.
var DefaultModels = []string{"llama-3.1-8b-instant", "openai/gpt-oss-120b"}

// Generator answers questions with an OpenAI-compatible chat model (Groq by default).
type Generator struct {
	client       *openai.Client
	name         string
	models       []string
	systemPrompt string
	temperature  float32
	maxTokens    int
	timeout      time.Duration
	logger       *zap.Logger
}

// Config configures the generator.
type Config struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Models       []string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
	Logger       *zap.Logger
}

// NewGenerator creates a generator. A missing API key fails with domain.ErrAuth.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Provider == "" {
		cfg.Provider = "groq"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c, err := provider.NewClient(provider.Config{Name: cfg.Provider, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Generator{
		client:       c,
		name:         cfg.Provider,
		models:       slices.Clone(cfg.Models),
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
	}, nil
}

// Models returns the model identifiers this generator accepts.
func (g *Generator) Models() []string { return slices.Clone(g.models) }

// Generate answers question from contextBlock with the given model.
func (g *Generator) Generate(ctx context.Context, model, contextBlock, question string) (string, error) {
	if !slices.Contains(g.models, model) {
		return "", fmt.Errorf("generate with %q: %w", model, domain.ErrUnsupportedModel)
	}
	ctx, cancel := provider.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(contextBlock, question)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	err = provider.MapError("generate", err)
	metrics.ObserveCall(g.name, "generate", start, err)
	if err != nil {
		g.logger.Warn("Chat completion failed", zap.String("model", model), zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate: no completion choices returned: %w", domain.ErrService)
	}

	g.logger.Debug("Generated answer",
		zap.String("model", model),
		zap.Int("context_chars", len(contextBlock)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// UserPrompt assembles the user message from the context block and the question.
func UserPrompt(contextBlock, question string) string {
	return "Context:\n" + contextBlock + "\n\nQuestion:\n" + question
}
