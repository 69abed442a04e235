package tui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"multimodal-rag/internal/chunker"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	formBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	kbState := "no knowledge base"
	if m.hasKB {
		kbState = fmt.Sprintf("%d chunks indexed", m.kbChunks)
	}
	header := titleStyle.Render("Multimodal RAG") + dimStyle.Render(fmt.Sprintf("  model: %s (ctrl+t)  ·  %s", m.Model(), kbState))
	summary := dimStyle.Render(m.summary)

	form := make([]string, fieldQuestion)
	for i := range form {
		form[i] = m.fields[i].View()
	}
	question := m.fields[fieldQuestion].View()
	if !m.hasKB {
		question = dimStyle.Render("> " + m.fields[fieldQuestion].Placeholder)
	}

	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	} else if m.lastError != nil {
		status = errorStyle.Render(m.status)
	}

	return strings.Join([]string{
		header,
		summary,
		formBoxStyle.Render(strings.Join(form, "\n")),
		resultBoxStyle.Render(m.viewport.View()),
		queryBoxStyle.Render(question),
		status,
		warningStyle.Render(m.warning),
	}, "\n")
}

// renderAnswer shows the answer when cursor is 0 and source cursor-1 otherwise.
func (m Model) renderAnswer() string {
	if m.answer == nil {
		if m.hasKB {
			return "Ask a question about the indexed content."
		}
		return "Nothing indexed yet.\n\ntab/shift+tab move between fields · ctrl+s index · ctrl+t switch model · ctrl+c quit"
	}
	n := len(m.answer.Sources)
	if m.cursor == 0 {
		title := fmt.Sprintf("Answer  (%s, %d sources, ↑/↓ to browse)", m.answer.Latency.Round(time.Millisecond), n)
		return title + "\n\n" + m.answer.Text
	}
	src := m.answer.Sources[m.cursor-1]
	title := fmt.Sprintf("Source %d/%d", m.cursor, n)
	return title + "\n\n" + highlightBestSentence(src, m.question)
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := chunker.SplitSentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestScore > 0 {
		sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
