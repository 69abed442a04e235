package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// SentenceChunker groups whole sentences into chunks, repeating the last
// overlap sentences at the start of the next chunk.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

// NewSentenceChunker validates 0 <= overlap < sentencesPerChunk so every chunk advances.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) (*SentenceChunker, error) {
	if sentencesPerChunk <= 0 {
		return nil, fmt.Errorf("sentences per chunk must be positive, got %d", sentencesPerChunk)
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", sentencesPerChunk, overlapSentences)
	}
	return &SentenceChunker{sentencesPerChunk: sentencesPerChunk, overlapSentences: overlapSentences}, nil
}

// Chunk splits on terminal punctuation. Text without any is treated as one sentence,
// and trailing text after the last terminator is kept as a final sentence.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	var chunks []string
	for i := 0; ; i = i + c.sentencesPerChunk - c.overlapSentences {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			return chunks
		}
	}
}

// SplitSentences returns the whitespace-normalized sentences of text in order.
// Text after the last terminator is kept as a final sentence.
func SplitSentences(text string) []string {
	var out []string
	consumed := 0
	for _, loc := range sentenceSplitter.FindAllStringIndex(text, -1) {
		if s := normalizeSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		consumed = loc[1]
	}
	if tail := normalizeSpace(text[consumed:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
