// Package search provides the web search capability consumed by the research
// pipeline. All backends return the same ranked result shape so the pipeline
// treats them uniformly.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mikeboe/deep-researcher/pkg/config"
)

// Result is a single ranked search hit.
type Result struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	RawContent string `json:"raw_content,omitempty"`
}

// Response is the uniform shape returned by every backend.
type Response struct {
	Results []Result `json:"results"`
}

// Searcher is the capability interface the pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, query string) (*Response, error)
}

// defaultMaxResults caps how many sources each research loop folds in.
const defaultMaxResults = 3

// New returns the backend selected by the configuration. An unsupported
// selection is a configuration error and fails immediately.
func New(cfg *config.Config) (Searcher, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	switch cfg.SearchAPI {
	case "duckduckgo":
		return &DuckDuckGo{Client: client, MaxResults: defaultMaxResults, FetchFullPage: cfg.FetchFullPage}, nil
	case "tavily":
		return &Tavily{Client: client, APIKey: cfg.TavilyAPIKey, MaxResults: defaultMaxResults, IncludeRawContent: cfg.FetchFullPage}, nil
	case "perplexity":
		return &Perplexity{Client: client, APIKey: cfg.PerplexityAPIKey}, nil
	case "searxng":
		return &Searxng{Client: client, BaseURL: cfg.SearxngURL, MaxResults: defaultMaxResults, FetchFullPage: cfg.FetchFullPage}, nil
	default:
		return nil, fmt.Errorf("unsupported search API: %s", cfg.SearchAPI)
	}
}

var tagPattern = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]*>`)

// fetchPage pulls the raw page body for full-content results and strips
// markup down to readable text. Errors degrade to an empty string; the
// snippet is always available as a fallback.
func fetchPage(ctx context.Context, client *http.Client, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "deep-researcher/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	// Page bodies can be arbitrarily large; one megabyte is plenty for a
	// summarization context.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}
	text := tagPattern.ReplaceAllString(string(body), " ")
	return strings.Join(strings.Fields(text), " ")
}
