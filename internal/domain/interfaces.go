package domain

import "context"

// ChunkType tags where a chunk's text came from.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeImage ChunkType = "image"
)

// Chunk is a contiguous excerpt of source text used as the unit of retrieval.
type Chunk struct {
	Ordinal int
	Text    string
	Type    ChunkType
}

// Metadata is stored alongside each indexed vector, at the same ordinal as its chunk.
type Metadata struct {
	Type   ChunkType
	Source string
}

// Chunker splits raw text into retrieval-sized pieces.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder converts texts into fixed-dimension vectors.
// The returned slice has the same length and order as texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Preparer is implemented by embedders that must see the corpus before embedding
// (e.g. TF-IDF vocabularies).
type Preparer interface {
	Prepare(corpus []string) error
}

// Captioner turns image bytes of the given MIME type into a natural-language description.
// An empty string means the service had nothing to say about the image.
type Captioner interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Generator answers a question from an assembled context block.
type Generator interface {
	Generate(ctx context.Context, model, contextBlock, question string) (string, error)
}

// Retriever performs nearest-neighbour lookup and returns chunk ordinals best-first.
type Retriever interface {
	Search(query []float32, topK int) ([]int, error)
	Len() int
	Dimension() int
}

// Reranker reorders a small candidate set.
type Reranker interface {
	Rerank(query string, candidates []string) []string
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
