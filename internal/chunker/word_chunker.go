package chunker

import (
	"fmt"
	"strings"
)

// WordChunker splits text into fixed-size word windows that overlap by a fixed number of words.
type WordChunker struct {
	wordsPerChunk int
	overlapWords  int
}

// NewWordChunker validates the window configuration. overlapWords must be smaller than wordsPerChunk.
func NewWordChunker(wordsPerChunk, overlapWords int) (*WordChunker, error) {
	if wordsPerChunk <= 0 {
		return nil, fmt.Errorf("words per chunk must be positive, got %d", wordsPerChunk)
	}
	if overlapWords < 0 || overlapWords >= wordsPerChunk {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", wordsPerChunk, overlapWords)
	}
	return &WordChunker{wordsPerChunk: wordsPerChunk, overlapWords: overlapWords}, nil
}

// Stride is the distance in words between the starts of consecutive windows.
func (c *WordChunker) Stride() int { return c.wordsPerChunk - c.overlapWords }

// Chunk returns the windows in order. The last window may be shorter than the configured size.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	stride := c.Stride()
	chunks := make([]string, 0, len(words)/stride+1)
	for start := 0; ; start += stride {
		end := start + c.wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
