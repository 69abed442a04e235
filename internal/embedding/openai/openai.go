package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/metrics"
	"multimodal-rag/internal/provider"
)

const (
	DefaultBaseURL   = "https://api.jina.ai/v1"
	DefaultModel     = "jina-embeddings-v2-base-en"
	defaultBatchSize = 64
)

// Client is an OpenAI-compatible embeddings client (Jina by default).
type Client struct {
	client    *openai.Client
	name      string
	model     string
	timeout   time.Duration
	batchSize int
	logger    *zap.Logger
}

// Config configures the embeddings client.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	BatchSize int
	Logger    *zap.Logger
}

// NewClient creates a new embeddings client. A missing API key fails with domain.ErrAuth.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = "jina"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c, err := provider.NewClient(provider.Config{
		Name:    cfg.Provider,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		client:    c,
		name:      cfg.Provider,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return c.name + ":" + c.model }

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed: %w", domain.ErrEmptyInput)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	if err := checkDimensions(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := provider.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:          batch,
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		err = provider.MapError("embed", err)
		metrics.ObserveCall(c.name, "embed", start, err)
		c.logger.Warn("Embedding request failed", zap.String("model", c.model), zap.Int("batch", len(batch)), zap.Error(err))
		return nil, err
	}

	vecs, err := orderByIndex(resp.Data, len(batch))
	metrics.ObserveCall(c.name, "embed", start, err)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Embedded batch",
		zap.String("model", c.model),
		zap.Int("batch", len(batch)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)))
	return vecs, nil
}

// orderByIndex places each returned embedding at the position named by its index field.
func orderByIndex(data []openai.Embedding, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("embed: expected %d embeddings, got %d: %w", want, len(data), domain.ErrService)
	}
	out := make([][]float32, want)
	for _, d := range data {
		if d.Index < 0 || d.Index >= want || out[d.Index] != nil {
			return nil, fmt.Errorf("embed: invalid or duplicate index %d: %w", d.Index, domain.ErrService)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embed: empty embedding at index %d: %w", d.Index, domain.ErrService)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func checkDimensions(vecs [][]float32) error {
	for i, v := range vecs {
		if len(v) != len(vecs[0]) {
			return fmt.Errorf("embed: vector %d has %d dimensions, expected %d: %w", i, len(v), len(vecs[0]), domain.ErrService)
		}
	}
	return nil
}
