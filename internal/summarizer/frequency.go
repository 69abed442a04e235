package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// FrequencySummarizer picks the sentences whose words occur most often in the whole text.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based extractive summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences sentences in document order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return truncateWords(text, 40), nil
	}

	weights := s.termWeights(sentences)
	type ranked struct {
		idx   int
		score float64
	}
	ranks := make([]ranked, len(sentences))
	for i, sent := range sentences {
		ranks[i] = ranked{idx: i, score: s.sentenceScore(sent, weights)}
	}
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].score > ranks[j].score })
	if maxSentences > len(ranks) {
		maxSentences = len(ranks)
	}

	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = ranks[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = strings.Join(strings.Fields(sentences[idx]), " ")
	}
	return strings.Join(out, " "), nil
}

// termWeights returns each content word's frequency scaled to (0, 1].
func (s *FrequencySummarizer) termWeights(sentences []string) map[string]float64 {
	freq := map[string]float64{}
	top := 0.0
	for _, sent := range sentences {
		for _, tok := range s.contentTokens(sent) {
			freq[tok]++
			top = math.Max(top, freq[tok])
		}
	}
	for k, v := range freq {
		freq[k] = v / top
	}
	return freq
}

// sentenceScore sums word weights, dampened by sentence length so long sentences don't always win.
func (s *FrequencySummarizer) sentenceScore(sentence string, weights map[string]float64) float64 {
	toks := s.contentTokens(sentence)
	if len(toks) == 0 {
		return 0
	}
	score := 0.0
	for _, tok := range toks {
		score += weights[tok]
	}
	return score / math.Sqrt(float64(len(toks)))
}

func (s *FrequencySummarizer) contentTokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := s.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " …"
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
