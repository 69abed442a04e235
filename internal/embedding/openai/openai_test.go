package openai

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"multimodal-rag/internal/domain"
)

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingItem `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// hashVector gives every string a deterministic vector so tests can check which input a vector belongs to.
func hashVector(s string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum32()
	return []float32{float32(sum % 1000), float32(sum / 1000 % 1000), float32(len(s))}
}

// reversingServer answers with hash vectors listed in reverse order, relying on the index field.
func reversingServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid api key"}})
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := embeddingResponse{Object: "list", Model: req.Model}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingItem{Object: "embedding", Embedding: hashVector(req.Input[i]), Index: i})
		}
		resp.Usage.TotalTokens = len(req.Input)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, url, key string, batch int) *Client {
	t.Helper()
	c, err := NewClient(Config{APIKey: key, BaseURL: url, Model: "test-model", BatchSize: batch, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestEmbed_PreservesOrder(t *testing.T) {
	server := reversingServer(t, nil)
	defer server.Close()

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	vecs, err := newTestClient(t, server.URL, "test-key", 0).Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, text := range texts {
		want := hashVector(text)
		for j := range want {
			if vecs[i][j] != want[j] {
				t.Fatalf("vector %d does not belong to %q: got %v want %v", i, text, vecs[i], want)
			}
		}
	}
}

func TestEmbed_BatchesPreserveOrder(t *testing.T) {
	var calls int32
	server := reversingServer(t, &calls)
	defer server.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "ggggggg"}
	vecs, err := newTestClient(t, server.URL, "test-key", 3).Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 batched calls, got %d", got)
	}
	for i, text := range texts {
		if vecs[i][2] != float32(len(text)) {
			t.Errorf("vector %d belongs to wrong input", i)
		}
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	c := newTestClient(t, "http://unused", "test-key", 0)
	_, err := c.Embed(context.Background(), nil)
	if !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEmbed_RejectedKey(t *testing.T) {
	server := reversingServer(t, nil)
	defer server.Close()

	_, err := newTestClient(t, server.URL, "wrong-key", 0).Embed(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(Config{})
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestEmbed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "overloaded"}})
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, "test-key", 0).Embed(context.Background(), []string{"x"})
	if !errors.Is(err, domain.ErrService) || errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrService only, got %v", err)
	}
}

func TestEmbed_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		data []embeddingItem
	}{
		{"count mismatch", []embeddingItem{{Embedding: []float32{1}, Index: 0}}},
		{"duplicate index", []embeddingItem{{Embedding: []float32{1}, Index: 0}, {Embedding: []float32{1}, Index: 0}}},
		{"index out of range", []embeddingItem{{Embedding: []float32{1}, Index: 0}, {Embedding: []float32{1}, Index: 5}}},
		{"empty vector", []embeddingItem{{Embedding: []float32{1}, Index: 0}, {Embedding: nil, Index: 1}}},
		{"ragged dimensions", []embeddingItem{{Embedding: []float32{1}, Index: 0}, {Embedding: []float32{1, 2}, Index: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(embeddingResponse{Object: "list", Data: tt.data})
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL, "test-key", 0).Embed(context.Background(), []string{"a", "b"})
			if !errors.Is(err, domain.ErrService) {
				t.Fatalf("expected ErrService, got %v", err)
			}
		})
	}
}
