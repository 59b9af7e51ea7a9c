package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key").WithEndpoint(srv.URL)
	out, err := c.Complete(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected 'hello', got %q", out)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key").WithEndpoint(srv.URL)
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestOpenAIClient_NotConfigured(t *testing.T) {
	c := NewOpenAIClient("")
	if c.Configured() {
		t.Error("expected unconfigured without key")
	}
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Error("expected error without key")
	}
}

func TestGeminiClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("unexpected api key header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"done"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key").WithEndpoint(srv.URL)
	out, err := c.Complete(context.Background(), "finish")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" {
		t.Errorf("expected 'done', got %q", out)
	}
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key").WithEndpoint(srv.URL)
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Error("expected error on empty candidates")
	}
}

func TestProviderNames(t *testing.T) {
	var completers = []Completer{NewOpenAIClient("k"), NewGeminiClient("k")}
	want := []string{"openai", "gemini"}
	for i, c := range completers {
		if c.Provider() != want[i] {
			t.Errorf("expected provider %s, got %s", want[i], c.Provider())
		}
	}
}
