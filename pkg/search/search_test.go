package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikeboe/deep-researcher/pkg/config"
)

func testConfig(api string) *config.Config {
	return &config.Config{
		SearchAPI:        api,
		TavilyAPIKey:     "k",
		PerplexityAPIKey: "k",
		SearxngURL:       "http://localhost:8888",
	}
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "go generics" {
			t.Errorf("query param q = %q, want %q", got, "go generics")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Heading": "Generics",
			"AbstractText": "Generics in Go.",
			"AbstractURL": "https://example.com/generics",
			"RelatedTopics": [
				{"FirstURL": "https://example.com/one", "Text": "Topic one"},
				{"FirstURL": "", "Text": "no url"},
				{"FirstURL": "https://example.com/two", "Text": "Topic two"},
				{"FirstURL": "https://example.com/three", "Text": "Topic three"}
			]
		}`))
	}))
	defer srv.Close()

	d := &DuckDuckGo{Client: srv.Client(), BaseURL: srv.URL + "/", MaxResults: 3}
	resp, err := d.Search(context.Background(), "go generics")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(resp.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3 (abstract + capped topics)", len(resp.Results))
	}
	if resp.Results[0].URL != "https://example.com/generics" || resp.Results[0].Content != "Generics in Go." {
		t.Errorf("abstract should be the first result, got %+v", resp.Results[0])
	}
	if resp.Results[1].URL != "https://example.com/one" {
		t.Errorf("related topic without URL should be skipped, got %+v", resp.Results[1])
	}
}

func TestDuckDuckGoSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := &DuckDuckGo{Client: srv.Client(), BaseURL: srv.URL + "/", MaxResults: 3}
	if _, err := d.Search(context.Background(), "q"); err == nil {
		t.Error("Search() should fail on a non-200 response")
	}
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [
				{"url": "https://example.com/a", "title": "A", "content": "alpha", "raw_content": "alpha raw"},
				{"url": "https://example.com/b", "title": "B", "content": "beta"}
			]
		}`))
	}))
	defer srv.Close()

	tv := &Tavily{Client: srv.Client(), BaseURL: srv.URL, APIKey: "key123", MaxResults: 3, IncludeRawContent: true}
	resp, err := tv.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].RawContent != "alpha raw" {
		t.Errorf("RawContent = %q, want server-side raw content", resp.Results[0].RawContent)
	}
}

func TestTavilyRequiresAPIKey(t *testing.T) {
	tv := &Tavily{Client: http.DefaultClient, MaxResults: 3}
	if _, err := tv.Search(context.Background(), "q"); err == nil {
		t.Error("Search() should fail without an API key")
	}
}

func TestSearxngSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [
				{"url": "https://example.com/x", "title": "X", "content": "xray"},
				{"url": "https://example.com/y", "title": "Y", "content": "yankee"},
				{"url": "https://example.com/z", "title": "Z", "content": "zulu"},
				{"url": "https://example.com/w", "title": "W", "content": "whiskey"}
			]
		}`))
	}))
	defer srv.Close()

	s := &Searxng{Client: srv.Client(), BaseURL: srv.URL, MaxResults: 3}
	resp, err := s.Search(context.Background(), "phonetic alphabet")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(resp.Results) != 3 {
		t.Fatalf("len(Results) = %d, want MaxResults", len(resp.Results))
	}
	if resp.Results[2].Content != "zulu" {
		t.Errorf("results should preserve order, got %+v", resp.Results[2])
	}
}

func TestPerplexitySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "The answer."}}],
			"citations": ["https://example.com/first", "https://example.com/second"]
		}`))
	}))
	defer srv.Close()

	p := &Perplexity{Client: srv.Client(), BaseURL: srv.URL, APIKey: "key"}
	resp, err := p.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d, want one per citation", len(resp.Results))
	}
	if resp.Results[0].Content != "The answer." {
		t.Errorf("first citation should carry the answer, got %q", resp.Results[0].Content)
	}
	if resp.Results[1].Content == "The answer." {
		t.Errorf("later citations should not repeat the answer")
	}
}

func TestPerplexityDefaultCitation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "No sources."}}]}`))
	}))
	defer srv.Close()

	p := &Perplexity{Client: srv.Client(), BaseURL: srv.URL, APIKey: "key"}
	resp, err := p.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].URL != "https://perplexity.ai" {
		t.Errorf("missing citations should fall back to the provider URL, got %+v", resp.Results)
	}
}

func TestNewUnsupportedBackend(t *testing.T) {
	cfg := testConfig("altavista")
	if _, err := New(cfg); err == nil {
		t.Error("New() should reject an unsupported backend")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		api  string
		want string
	}{
		{"duckduckgo", "*search.DuckDuckGo"},
		{"tavily", "*search.Tavily"},
		{"perplexity", "*search.Perplexity"},
		{"searxng", "*search.Searxng"},
	}
	for _, tt := range tests {
		t.Run(tt.api, func(t *testing.T) {
			s, err := New(testConfig(tt.api))
			if err != nil {
				t.Fatalf("New(%s) error: %v", tt.api, err)
			}
			if got := typeName(s); got != tt.want {
				t.Errorf("New(%s) = %s, want %s", tt.api, got, tt.want)
			}
		})
	}
}
