package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/highwayhash"
	"go.uber.org/zap"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/metrics"
)

var hashKey = []byte("mmrag-embedding-cache-key-000001")

// Store holds cached vectors for one session. The zero value is not usable; call NewStore.
type Store struct {
	mu      sync.RWMutex
	entries map[uint64][]float32
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[uint64][]float32)}
}

// Len returns the number of cached vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops every cached vector.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[uint64][]float32)
	s.mu.Unlock()
}

func (s *Store) get(key uint64) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *Store) put(key uint64, v []float32) {
	s.mu.Lock()
	s.entries[key] = v
	s.mu.Unlock()
}

// CachedEmbedder serves repeated texts from a Store and sends only misses to the inner embedder.
type CachedEmbedder struct {
	inner     domain.Embedder
	store     *Store
	namespace string
	logger    *zap.Logger
}

// New wraps inner. namespace separates vectors of different models sharing one store.
func New(inner domain.Embedder, store *Store, namespace string, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, store: store, namespace: namespace, logger: logger}
}

// Embed returns vectors in input order. Misses are embedded with a single inner call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed: %w", domain.ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	keys := make([]uint64, len(texts))
	missPos := make(map[uint64][]int)
	var missTexts []string
	var missKeys []uint64

	for i, text := range texts {
		keys[i] = c.key(text)
		if v, ok := c.store.get(keys[i]); ok {
			out[i] = v
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			continue
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		if _, pending := missPos[keys[i]]; !pending {
			missTexts = append(missTexts, text)
			missKeys = append(missKeys, keys[i])
		}
		missPos[keys[i]] = append(missPos[keys[i]], i)
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("embed: expected %d vectors, got %d: %w", len(missTexts), len(vecs), domain.ErrService)
		}
		for j, v := range vecs {
			c.store.put(missKeys[j], v)
			for _, i := range missPos[missKeys[j]] {
				out[i] = v
			}
		}
	}
	c.logger.Debug("Embedding cache lookup",
		zap.Int("requested", len(texts)),
		zap.Int("embedded", len(missTexts)))
	return out, nil
}

// Prepare forwards to inner embedders that need the corpus and drops cached vectors,
// since a new vocabulary invalidates them.
func (c *CachedEmbedder) Prepare(corpus []string) error {
	p, ok := c.inner.(domain.Preparer)
	if !ok {
		return nil
	}
	if err := p.Prepare(corpus); err != nil {
		return err
	}
	c.store.Reset()
	return nil
}

func (c *CachedEmbedder) key(text string) uint64 {
	buf := make([]byte, 0, len(c.namespace)+1+len(text))
	buf = append(buf, c.namespace...)
	buf = append(buf, 0)
	buf = append(buf, text...)
	return highwayhash.Sum64(buf, hashKey)
}
