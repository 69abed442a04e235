package service

import (
	"fmt"

	"go.uber.org/zap"

	"multimodal-rag/internal/config"
	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/embedding/cache"
	"multimodal-rag/internal/embedding/openai"
	"multimodal-rag/internal/embedding/tfidf"
	"multimodal-rag/internal/llm"
	"multimodal-rag/internal/vision"
)

// Backends builds the remote collaborators for one set of session settings.
type Backends interface {
	Embedder(s config.Settings) (domain.Embedder, error)
	Captioner(s config.Settings) (domain.Captioner, error)
	Generator(s config.Settings) (domain.Generator, error)
}

// ProviderBackends builds OpenAI-compatible clients from the application config.
type ProviderBackends struct {
	cfg    *config.AppConfig
	store  *cache.Store
	logger *zap.Logger
}

// NewProviderBackends creates backends that share one session embedding cache.
func NewProviderBackends(cfg *config.AppConfig, store *cache.Store, logger *zap.Logger) *ProviderBackends {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderBackends{cfg: cfg, store: store, logger: logger}
}

func (b *ProviderBackends) Embedder(s config.Settings) (domain.Embedder, error) {
	var (
		inner     domain.Embedder
		namespace string
	)
	switch b.cfg.Embedder.Type {
	case "tfidf":
		e := tfidf.NewEmbedder()
		inner, namespace = e, e.Name()
	case "openai":
		o := b.cfg.Embedder.OpenAI
		c, err := openai.NewClient(openai.Config{
			APIKey:    s.EmbeddingKey,
			BaseURL:   o.BaseURL,
			Model:     o.Model,
			Timeout:   config.Seconds(o.TimeoutSecs),
			BatchSize: o.BatchSize,
			Logger:    b.logger.Named("embedding"),
		})
		if err != nil {
			return nil, err
		}
		inner, namespace = c, c.Name()
	default:
		return nil, fmt.Errorf("unknown embedder type %q", b.cfg.Embedder.Type)
	}
	if !b.cfg.Embedder.Cache || b.store == nil {
		return inner, nil
	}
	return cache.New(inner, b.store, namespace, b.logger.Named("embedding_cache")), nil
}

func (b *ProviderBackends) Captioner(s config.Settings) (domain.Captioner, error) {
	v := b.cfg.Vision
	return vision.NewCaptioner(vision.Config{
		APIKey:  s.VisionKey,
		BaseURL: v.BaseURL,
		Model:   v.Model,
		Prompt:  v.Prompt,
		Timeout: config.Seconds(v.TimeoutSecs),
		Logger:  b.logger.Named("vision"),
	})
}

func (b *ProviderBackends) Generator(s config.Settings) (domain.Generator, error) {
	l := b.cfg.LLM
	return llm.NewGenerator(llm.Config{
		APIKey:       s.LLMKey,
		BaseURL:      l.BaseURL,
		Models:       l.Models,
		SystemPrompt: l.SystemPrompt,
		Temperature:  l.Temperature,
		MaxTokens:    l.MaxTokens,
		Timeout:      config.Seconds(l.TimeoutSecs),
		Logger:       b.logger.Named("llm"),
	})
}
