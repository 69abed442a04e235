package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"multimodal-rag/internal/config"
	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/ingest"
	"multimodal-rag/internal/service"
)

// SessionPort is the TUI-facing subset of the session service.
type SessionPort interface {
	Index(ctx context.Context, settings config.Settings, up service.Upload) (*service.KnowledgeBase, error)
	Ask(ctx context.Context, settings config.Settings, question string) (*service.Answer, error)
	Current() *service.KnowledgeBase
}

const (
	fieldLLMKey = iota
	fieldEmbeddingKey
	fieldDocument
	fieldImage
	fieldQuestion
	fieldCount
)

type indexedMsg struct {
	kb  *service.KnowledgeBase
	err error
}

type answeredMsg struct {
	question string
	answer   *service.Answer
	err      error
}

// Options seeds the form.
type Options struct {
	Models   []string
	Settings config.Settings // prefilled keys and model, usually from the environment
	Document string
	Image    string
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	session  SessionPort
	readFile func(path string) (*ingest.Upload, error)

	fields   []textinput.Model
	focus    int
	models   []string
	modelIdx int

	spinner  spinner.Model
	viewport viewport.Model
	busy     bool
	ready    bool

	answer    *service.Answer
	question  string
	cursor    int
	summary   string
	status    string
	warning   string
	hasKB     bool
	kbChunks  int
	lastError error
}

// New creates a new TUI model instance.
func New(ctx context.Context, session SessionPort, opts Options) Model {
	fields := make([]textinput.Model, fieldCount)
	for i := range fields {
		ti := textinput.New()
		ti.CharLimit = 0
		fields[i] = ti
	}
	fields[fieldLLMKey].Prompt = "LLM/vision key   "
	fields[fieldLLMKey].Placeholder = "Groq API key"
	fields[fieldLLMKey].EchoMode = textinput.EchoPassword
	fields[fieldLLMKey].SetValue(opts.Settings.LLMKey)
	fields[fieldEmbeddingKey].Prompt = "Embedding key    "
	fields[fieldEmbeddingKey].Placeholder = "Jina API key"
	fields[fieldEmbeddingKey].EchoMode = textinput.EchoPassword
	fields[fieldEmbeddingKey].SetValue(opts.Settings.EmbeddingKey)
	fields[fieldDocument].Prompt = "Document (.txt/.pdf) "
	fields[fieldDocument].Placeholder = "path/to/file.pdf"
	fields[fieldDocument].SetValue(opts.Document)
	fields[fieldImage].Prompt = "Image (.png/.jpg)    "
	fields[fieldImage].Placeholder = "path/to/image.png"
	fields[fieldImage].SetValue(opts.Image)
	fields[fieldQuestion].Prompt = "> "
	fields[fieldQuestion].Placeholder = "Index something first (ctrl+s)"
	fields[fieldLLMKey].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	modelIdx := 0
	for i, id := range opts.Models {
		if id == opts.Settings.ModelID {
			modelIdx = i
		}
	}

	m := Model{
		ctx:      ctx,
		session:  session,
		readFile: ingest.ReadFile,
		fields:   fields,
		models:   opts.Models,
		modelIdx: modelIdx,
		spinner:  sp,
		viewport: viewport.New(0, 0),
		status:   "Enter keys, pick files, press ctrl+s to index.",
	}
	if kb := session.Current(); kb != nil {
		m.setKnowledgeBase(kb)
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and background-result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case indexedMsg:
		m.busy = false
		if msg.err != nil {
			m.fail("Indexing failed", msg.err)
			return m, nil
		}
		m.setKnowledgeBase(msg.kb)
		m.status = fmt.Sprintf("Indexed %d chunks. Ask a question.", len(msg.kb.Chunks))
		return m, m.setFocus(fieldQuestion)

	case answeredMsg:
		m.busy = false
		if msg.err != nil {
			m.fail("Question failed", msg.err)
			return m, nil
		}
		m.answer, m.question, m.cursor = msg.answer, msg.question, 0
		m.status = fmt.Sprintf("Answered in %s with %s", msg.answer.Latency.Round(time.Millisecond), m.Model())
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+s":
			return m.startIndex()
		case "ctrl+t":
			if len(m.models) > 0 {
				m.modelIdx = (m.modelIdx + 1) % len(m.models)
				m.status = "Model: " + m.Model()
			}
			return m, nil
		case "tab":
			return m, m.setFocus(m.nextField(1))
		case "shift+tab":
			return m, m.setFocus(m.nextField(-1))
		case "enter":
			if m.focus == fieldQuestion {
				return m.startAsk()
			}
			return m, m.setFocus(m.nextField(1))
		case "down":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor + 1) % (len(m.answer.Sources) + 1)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				n := len(m.answer.Sources) + 1
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

// Model returns the selected language model.
func (m Model) Model() string {
	if len(m.models) == 0 {
		return ""
	}
	return m.models[m.modelIdx]
}

// Settings assembles session settings from the form. The LLM key also serves the vision model.
func (m Model) Settings() config.Settings {
	key := strings.TrimSpace(m.fields[fieldLLMKey].Value())
	return config.Settings{
		EmbeddingKey: strings.TrimSpace(m.fields[fieldEmbeddingKey].Value()),
		VisionKey:    key,
		LLMKey:       key,
		ModelID:      m.Model(),
	}
}

func (m Model) startIndex() (tea.Model, tea.Cmd) {
	doc := strings.TrimSpace(m.fields[fieldDocument].Value())
	img := strings.TrimSpace(m.fields[fieldImage].Value())
	if doc == "" && img == "" {
		m.warning = "Upload a document or an image before indexing."
		return m, nil
	}
	m.busy, m.warning, m.lastError = true, "", nil
	m.status = "Indexing..."
	return m, tea.Batch(m.spinner.Tick, indexCmd(m.ctx, m.session, m.readFile, m.Settings(), doc, img))
}

func (m Model) startAsk() (tea.Model, tea.Cmd) {
	if !m.hasKB {
		m.warning = "Index a document or image first."
		return m, nil
	}
	q := strings.TrimSpace(m.fields[fieldQuestion].Value())
	if q == "" {
		return m, nil
	}
	m.busy, m.warning, m.lastError = true, "", nil
	m.status = "Thinking..."
	return m, tea.Batch(m.spinner.Tick, askCmd(m.ctx, m.session, m.Settings(), q))
}

func indexCmd(ctx context.Context, session SessionPort, read func(string) (*ingest.Upload, error), settings config.Settings, doc, img string) tea.Cmd {
	return func() tea.Msg {
		var up service.Upload
		if doc != "" {
			u, err := read(doc)
			if err != nil {
				return indexedMsg{err: err}
			}
			up.Document = u
		}
		if img != "" {
			u, err := read(img)
			if err != nil {
				return indexedMsg{err: err}
			}
			up.Image = u
		}
		kb, err := session.Index(ctx, settings, up)
		return indexedMsg{kb: kb, err: err}
	}
}

func askCmd(ctx context.Context, session SessionPort, settings config.Settings, question string) tea.Cmd {
	return func() tea.Msg {
		ans, err := session.Ask(ctx, settings, question)
		return answeredMsg{question: question, answer: ans, err: err}
	}
}

func (m *Model) setKnowledgeBase(kb *service.KnowledgeBase) {
	m.hasKB = true
	m.kbChunks = len(kb.Chunks)
	m.summary = kb.Summary
	m.answer = nil
	m.fields[fieldQuestion].Placeholder = "Ask a question and press Enter"
	m.viewport.SetContent(m.renderAnswer())
}

// fail shows missing prerequisites as warnings and everything else as errors.
func (m *Model) fail(prefix string, err error) {
	if service.IsUserError(err) || errors.Is(err, domain.ErrAuth) {
		m.warning = warningText(err)
		m.status = prefix + "."
		return
	}
	m.lastError = err
	m.status = prefix + ": " + err.Error()
}

// nextField moves focus by dir, skipping the question input until something is indexed.
func (m Model) nextField(dir int) int {
	n := fieldCount
	if !m.hasKB {
		n = fieldQuestion
	}
	return ((m.focus+dir)%n + n) % n
}

func (m *Model) setFocus(i int) tea.Cmd {
	if i == fieldQuestion && !m.hasKB {
		return nil
	}
	m.fields[m.focus].Blur()
	m.focus = i
	return m.fields[i].Focus()
}

func (m *Model) resize(width, height int) {
	_, rh := resultBoxStyle.GetFrameSize()
	_, fh := formBoxStyle.GetFrameSize()
	_, qh := queryBoxStyle.GetFrameSize()
	headerLines := 2 // title + summary
	footerLines := 2 // status + warning
	reserved := headerLines + footerLines + (fieldQuestion + fh) + (1 + qh)
	m.viewport.Width = max(20, width-2)
	m.viewport.Height = max(3, height-reserved-rh)
	m.viewport.SetContent(m.renderAnswer())
}

func warningText(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return "Missing API key: " + err.Error()
	case errors.Is(err, domain.ErrAuth):
		return "API key rejected: " + err.Error()
	case errors.Is(err, domain.ErrNoUploads):
		return "Upload a document or an image before indexing."
	case errors.Is(err, domain.ErrNothingToIndex):
		return "Nothing to index: the uploads contained no text and the image got no description."
	case errors.Is(err, domain.ErrNoKnowledgeBase):
		return "Index a document or image first."
	default:
		return err.Error()
	}
}
