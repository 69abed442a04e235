package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestProviderBackends_CaptionerUsesSessionKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer groq" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "1",
			"object": "chat.completion",
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "a chart"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Vision.BaseURL = server.URL
	captioner, err := NewProviderBackends(cfg, nil, zap.NewNop()).Captioner(validSettings())
	if err != nil {
		t.Fatalf("Captioner: %v", err)
	}
	got, err := captioner.Describe(context.Background(), pngBytes, "image/png")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if got != "a chart" {
		t.Errorf("Describe = %q", got)
	}
}
