package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multimodal-rag/internal/chunker"
	"multimodal-rag/internal/config"
	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/ingest"
	"multimodal-rag/internal/metrics"
	"multimodal-rag/internal/rerank"
	"multimodal-rag/internal/summarizer"
	"multimodal-rag/internal/vectorstore"
	"multimodal-rag/internal/vectorstore/memory"
)

const imageChunkPrefix = "Image description: "

// KnowledgeBase is the set of chunks, metadata and index built by one Index call.
// It is never modified after it is published.
type KnowledgeBase struct {
	ID        string
	Chunks    []domain.Chunk
	Metadata  []domain.Metadata
	Index     domain.Retriever
	Summary   string
	CreatedAt time.Time

	// embedder produced the index vectors; questions must be embedded the same way.
	embedder domain.Embedder
}

// Upload holds the files submitted for indexing. Either may be nil.
type Upload struct {
	Document *ingest.Upload
	Image    *ingest.Upload
}

// Answer is the result of one question.
type Answer struct {
	Text    string
	Sources []string
	Latency time.Duration
}

// Session owns the state of one interactive session.
type Session struct {
	ID string

	cfg        *config.AppConfig
	backends   Backends
	chunker    domain.Chunker
	reranker   domain.Reranker
	summarizer domain.Summarizer
	buildIndex vectorstore.Builder
	retry      RetryPolicy
	logger     *zap.Logger

	kb   atomic.Pointer[KnowledgeBase]
	busy atomic.Bool
}

// NewSession creates a session with no knowledge base.
func NewSession(cfg *config.AppConfig, backends Backends, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	var sum domain.Summarizer
	if cfg.Summarizer.Type == "frequency" {
		sum = summarizer.NewFrequencySummarizer()
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		cfg:        cfg,
		backends:   backends,
		chunker:    ch,
		reranker:   rerank.NewLexical(),
		summarizer: sum,
		buildIndex: memory.Build,
		retry: RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		},
		logger: logger.With(zap.String("session_id", id)),
	}, nil
}

func newChunker(c config.ChunkerConfig) (domain.Chunker, error) {
	if c.Type == "sentences" {
		return chunker.NewSentenceChunker(c.SentencesPerChunk, c.OverlapSentences)
	}
	return chunker.NewWordChunker(c.WordsPerChunk, c.OverlapWords)
}

// Current returns the published knowledge base, or nil before the first successful Index.
func (s *Session) Current() *KnowledgeBase {
	return s.kb.Load()
}

// Index builds a knowledge base from the uploads and publishes it.
// On failure the previously published knowledge base is kept.
func (s *Session) Index(ctx context.Context, settings config.Settings, up Upload) (kb *KnowledgeBase, err error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	defer s.busy.Store(false)
	start := time.Now()
	defer func() { metrics.ObserveAction("index", start, err) }()

	if err := settings.Validate(s.cfg.Requirements(up.Image != nil)); err != nil {
		return nil, err
	}
	if up.Document == nil && up.Image == nil {
		return nil, domain.ErrNoUploads
	}

	var (
		chunks  []domain.Chunk
		meta    []domain.Metadata
		docText string
	)
	add := func(text string, typ domain.ChunkType, source string) {
		chunks = append(chunks, domain.Chunk{Ordinal: len(chunks), Text: text, Type: typ})
		meta = append(meta, domain.Metadata{Type: typ, Source: source})
	}

	if up.Document != nil {
		docText, err = ingest.LoadDocument(up.Document)
		if err != nil {
			return nil, err
		}
		for _, piece := range s.chunker.Chunk(docText) {
			add(piece, domain.ChunkTypeText, up.Document.Name)
		}
	}

	if up.Image != nil {
		caption, err := s.describe(ctx, settings, up.Image)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(caption) != "" {
			add(imageChunkPrefix+caption, domain.ChunkTypeImage, up.Image.Name)
		} else {
			s.logger.Warn("Image produced no description", zap.String("image", up.Image.Name))
		}
	}

	if len(chunks) == 0 {
		return nil, domain.ErrNothingToIndex
	}

	embedder, err := s.backends.Embedder(settings)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if p, ok := embedder.(domain.Preparer); ok {
		if err := p.Prepare(texts); err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
	}
	vectors, err := withRetry(ctx, s.retry, s.logger, "embed_chunks", func(ctx context.Context) ([][]float32, error) {
		return embedder.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: expected %d vectors, got %d: %w", len(chunks), len(vectors), domain.ErrService)
	}

	index, err := s.buildIndex(vectors, meta)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	kb = &KnowledgeBase{
		ID:        uuid.NewString(),
		Chunks:    chunks,
		Metadata:  meta,
		Index:     index,
		Summary:   s.summarize(docText),
		CreatedAt: time.Now(),
		embedder:  embedder,
	}
	s.kb.Store(kb)
	s.logger.Info("Knowledge base indexed",
		zap.String("kb_id", kb.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", index.Dimension()),
		zap.Duration("took", time.Since(start)))
	return kb, nil
}

// Ask answers question from the current knowledge base.
func (s *Session) Ask(ctx context.Context, settings config.Settings, question string) (ans *Answer, err error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	defer s.busy.Store(false)
	start := time.Now()
	defer func() { metrics.ObserveAction("ask", start, err) }()

	kb := s.kb.Load()
	if kb == nil {
		return nil, domain.ErrNoKnowledgeBase
	}
	if err := settings.Validate(s.cfg.Requirements(false)); err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question: %w", domain.ErrEmptyInput)
	}

	qv, err := withRetry(ctx, s.retry, s.logger, "embed_question", func(ctx context.Context) ([][]float32, error) {
		return kb.embedder.Embed(ctx, []string{question})
	})
	if err != nil {
		return nil, err
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embed question: expected 1 vector, got %d: %w", len(qv), domain.ErrService)
	}

	ordinals, err := kb.Index.Search(qv[0], s.cfg.Retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	candidates := make([]string, len(ordinals))
	for i, o := range ordinals {
		candidates[i] = kb.Chunks[o].Text
	}
	ranked := s.reranker.Rerank(question, candidates)
	sources := ranked[:min(s.cfg.Retrieval.ContextChunks, len(ranked))]

	generator, err := s.backends.Generator(settings)
	if err != nil {
		return nil, err
	}
	contextBlock := strings.Join(sources, "\n\n")
	text, err := withRetry(ctx, s.retry, s.logger, "generate", func(ctx context.Context) (string, error) {
		return generator.Generate(ctx, settings.ModelID, contextBlock, question)
	})
	if err != nil {
		return nil, err
	}

	ans = &Answer{Text: text, Sources: sources, Latency: time.Since(start)}
	s.logger.Info("Question answered",
		zap.String("kb_id", kb.ID),
		zap.String("model", settings.ModelID),
		zap.Int("candidates", len(candidates)),
		zap.Int("sources", len(sources)),
		zap.Duration("latency", ans.Latency))
	return ans, nil
}

func (s *Session) describe(ctx context.Context, settings config.Settings, u *ingest.Upload) (string, error) {
	img, err := ingest.LoadImage(u)
	if err != nil {
		return "", err
	}
	captioner, err := s.backends.Captioner(settings)
	if err != nil {
		return "", err
	}
	return withRetry(ctx, s.retry, s.logger, "describe_image", func(ctx context.Context) (string, error) {
		return captioner.Describe(ctx, img.Data, img.MIME)
	})
}

func (s *Session) summarize(text string) string {
	if s.summarizer == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	summary, err := s.summarizer.Summarize(text, s.cfg.Summarizer.MaxSentences)
	if err != nil {
		s.logger.Warn("Summarize failed", zap.Error(err))
		return ""
	}
	return summary
}

// IsUserError reports whether err stems from missing or invalid user input rather
// than a failing collaborator.
func IsUserError(err error) bool {
	for _, target := range []error{
		domain.ErrMissingCredential,
		domain.ErrUnsupportedModel,
		domain.ErrNoUploads,
		domain.ErrNothingToIndex,
		domain.ErrNoKnowledgeBase,
		domain.ErrUnsupportedDocument,
		domain.ErrUnsupportedImage,
		domain.ErrEmptyInput,
		domain.ErrBusy,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
