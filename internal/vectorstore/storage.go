package vectorstore

import "multimodal-rag/internal/domain"

// Builder constructs an immutable retriever from parallel vectors and metadata.
type Builder func(vectors [][]float32, meta []domain.Metadata) (domain.Retriever, error)
