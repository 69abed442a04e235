package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"multimodal-rag/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"` // openai, tfidf
	Cache  bool                  `yaml:"cache"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VisionConfig configures the image captioner.
type VisionConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Prompt      string `yaml:"prompt,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig configures the answer generator and its selectable models.
type LLMConfig struct {
	BaseURL      string   `yaml:"base_url"`
	APIKeyEnv    string   `yaml:"api_key_env"`
	Models       []string `yaml:"models"`
	DefaultModel string   `yaml:"default_model"`
	SystemPrompt string   `yaml:"system_prompt,omitempty"`
	Temperature  float32  `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	TimeoutSecs  int      `yaml:"timeout_secs"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"` // words, sentences
	WordsPerChunk     int    `yaml:"words_per_chunk"`
	OverlapWords      int    `yaml:"overlap_words"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk,omitempty"`
	OverlapSentences  int    `yaml:"overlap_sentences,omitempty"`
}

// VectorStoreConfig selects the vector store implementation.
type VectorStoreConfig struct {
	Type string `yaml:"type"`
}

// RetrievalConfig controls how many chunks are searched and forwarded to the model.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	ContextChunks int `yaml:"context_chunks"`
}

// RetryConfig controls retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"` // frequency, none
	MaxSentences int    `yaml:"max_sentences"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // log destination while the TUI owns the terminal
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Vision      VisionConfig      `yaml:"vision"`
	LLM         LLMConfig         `yaml:"llm"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Retry       RetryConfig       `yaml:"retry"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	data = expandEnvVars(data)

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/multimodal-rag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the configuration for correctness.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		return fmt.Errorf("embedder.type must be \"openai\" or \"tfidf\", got %q", c.Embedder.Type)
	}
	switch c.Chunker.Type {
	case "words":
		if c.Chunker.WordsPerChunk <= 0 {
			return fmt.Errorf("chunker.words_per_chunk must be positive, got %d", c.Chunker.WordsPerChunk)
		}
		if c.Chunker.OverlapWords < 0 || c.Chunker.OverlapWords >= c.Chunker.WordsPerChunk {
			return fmt.Errorf("chunker.overlap_words must be in [0, %d), got %d",
				c.Chunker.WordsPerChunk, c.Chunker.OverlapWords)
		}
	case "sentences":
		if c.Chunker.SentencesPerChunk <= 0 {
			return fmt.Errorf("chunker.sentences_per_chunk must be positive, got %d", c.Chunker.SentencesPerChunk)
		}
		if c.Chunker.OverlapSentences < 0 || c.Chunker.OverlapSentences >= c.Chunker.SentencesPerChunk {
			return fmt.Errorf("chunker.overlap_sentences must be in [0, %d), got %d",
				c.Chunker.SentencesPerChunk, c.Chunker.OverlapSentences)
		}
	default:
		return fmt.Errorf("chunker.type must be \"words\" or \"sentences\", got %q", c.Chunker.Type)
	}
	if c.VectorStore.Type != "memory" {
		return fmt.Errorf("vector_store.type must be \"memory\", got %q", c.VectorStore.Type)
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.ContextChunks <= 0 {
		return fmt.Errorf("retrieval.top_k and retrieval.context_chunks must be positive")
	}
	if len(c.LLM.Models) == 0 {
		return fmt.Errorf("llm.models must list at least one model")
	}
	if !slices.Contains(c.LLM.Models, c.LLM.DefaultModel) {
		return fmt.Errorf("llm.default_model %q is not in llm.models", c.LLM.DefaultModel)
	}
	switch c.Summarizer.Type {
	case "frequency", "none":
	default:
		return fmt.Errorf("summarizer.type must be \"frequency\" or \"none\", got %q", c.Summarizer.Type)
	}
	return nil
}

// Seconds converts a *_secs field into a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "multimodal-rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "openai", Cache: true},
		Chunker:     ChunkerConfig{Type: "words", WordsPerChunk: 500, OverlapWords: 50},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 3},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.jina.ai/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "JINA_API_KEY"
		}
		if o.Model == "" {
			o.Model = "jina-embeddings-v2-base-en"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 64
		}
	}

	if cfg.Vision.BaseURL == "" {
		cfg.Vision.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Vision.APIKeyEnv == "" {
		cfg.Vision.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Vision.Model == "" {
		cfg.Vision.Model = "meta-llama/llama-4-scout-17b-16e-instruct"
	}
	if cfg.Vision.TimeoutSecs == 0 {
		cfg.Vision.TimeoutSecs = 30
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if len(cfg.LLM.Models) == 0 {
		cfg.LLM.Models = []string{"llama-3.1-8b-instant", "openai/gpt-oss-120b"}
	}
	if cfg.LLM.DefaultModel == "" {
		cfg.LLM.DefaultModel = cfg.LLM.Models[0]
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "words"
	}
	if cfg.Chunker.WordsPerChunk == 0 {
		cfg.Chunker.WordsPerChunk = 500
		if cfg.Chunker.OverlapWords == 0 {
			cfg.Chunker.OverlapWords = 50
		}
	}
	if cfg.Chunker.Type == "sentences" && cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
		if cfg.Chunker.OverlapSentences == 0 {
			cfg.Chunker.OverlapSentences = 1
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ContextChunks == 0 {
		cfg.Retrieval.ContextChunks = 3
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMS <= 0 {
		cfg.Retry.BaseDelayMS = 500
	}
	if cfg.Retry.MaxDelayMS <= 0 {
		cfg.Retry.MaxDelayMS = 8000
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Logging.Env == "" {
		cfg.Logging.Env = "local"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "rag.log"
	}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}

// Settings are the per-session credentials and model choice entered by the user.
type Settings struct {
	EmbeddingKey string
	VisionKey    string
	LLMKey       string
	ModelID      string
}

// Requirements describes which settings a given action needs.
type Requirements struct {
	EmbeddingKey bool
	VisionKey    bool
	Models       []string
}

// Requirements returns what an index or ask action needs under this config.
func (c *AppConfig) Requirements(withImage bool) Requirements {
	return Requirements{
		EmbeddingKey: c.Embedder.Type == "openai",
		VisionKey:    withImage,
		Models:       c.LLM.Models,
	}
}

// ResolveSettings fills settings from the environment variables named in the config.
func (c *AppConfig) ResolveSettings() Settings {
	s := Settings{
		VisionKey: os.Getenv(c.Vision.APIKeyEnv),
		LLMKey:    os.Getenv(c.LLM.APIKeyEnv),
		ModelID:   c.LLM.DefaultModel,
	}
	if c.Embedder.OpenAI != nil {
		s.EmbeddingKey = os.Getenv(c.Embedder.OpenAI.APIKeyEnv)
	}
	return s
}

// Validate reports the first missing credential or an unsupported model.
func (s Settings) Validate(req Requirements) error {
	if strings.TrimSpace(s.LLMKey) == "" {
		return fmt.Errorf("llm key: %w: %w", domain.ErrMissingCredential, domain.ErrAuth)
	}
	if req.EmbeddingKey && strings.TrimSpace(s.EmbeddingKey) == "" {
		return fmt.Errorf("embedding key: %w: %w", domain.ErrMissingCredential, domain.ErrAuth)
	}
	if req.VisionKey && strings.TrimSpace(s.VisionKey) == "" {
		return fmt.Errorf("vision key: %w: %w", domain.ErrMissingCredential, domain.ErrAuth)
	}
	if !slices.Contains(req.Models, s.ModelID) {
		return fmt.Errorf("model %q: %w", s.ModelID, domain.ErrUnsupportedModel)
	}
	return nil
}
