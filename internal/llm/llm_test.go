package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiGenerate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if _, ok := req["contents"]; !ok {
			t.Error("expected 'contents' in request body")
		}

		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]string{{"text": "A summary."}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := &GeminiProvider{Model: "gemini-2.5-flash", APIKey: "test-key", BaseURL: srv.URL, client: srv.Client()}

	out, err := p.Generate(context.Background(), "Summarize this.", 512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "A summary." {
		t.Errorf("expected 'A summary.', got %q", out)
	}
	if !strings.Contains(gotPath, "gemini-2.5-flash") {
		t.Errorf("expected model in request path, got %q", gotPath)
	}
}

func TestGeminiGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &GeminiProvider{Model: "gemini-2.5-flash", APIKey: "test-key", BaseURL: srv.URL, client: srv.Client()}

	_, err := p.Generate(context.Background(), "prompt", 512)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestGeminiNotConfigured(t *testing.T) {
	p := NewGeminiProvider("gemini-2.5-flash", "NEWSDIGEST_TEST_UNSET_KEY")
	if p.IsConfigured() {
		t.Error("expected unconfigured provider")
	}
	if _, err := p.Generate(context.Background(), "prompt", 512); err == nil {
		t.Error("expected error when key is missing")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "Digest text."}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "gpt-4o-mini", APIKey: "test-key", BaseURL: srv.URL, client: srv.Client()}

	out, err := p.Generate(context.Background(), "prompt", 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Digest text." {
		t.Errorf("expected 'Digest text.', got %q", out)
	}
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "gpt-4o-mini", APIKey: "test-key", BaseURL: srv.URL, client: srv.Client()}

	if _, err := p.Generate(context.Background(), "prompt", 256); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestCreateProviderNoneConfigured(t *testing.T) {
	p := CreateProvider("gemini", "gemini-2.5-flash", "NEWSDIGEST_TEST_UNSET_A", "gpt-4o-mini", "NEWSDIGEST_TEST_UNSET_B")
	if p != nil {
		t.Error("expected nil provider when no keys are set")
	}
}

func TestCreateProviderGemini(t *testing.T) {
	t.Setenv("NEWSDIGEST_TEST_GEMINI_KEY", "abc")
	p := CreateProvider("gemini", "gemini-2.5-flash", "NEWSDIGEST_TEST_GEMINI_KEY", "gpt-4o-mini", "NEWSDIGEST_TEST_UNSET_B")
	if _, ok := p.(*GeminiProvider); !ok {
		t.Errorf("expected GeminiProvider, got %T", p)
	}
}
