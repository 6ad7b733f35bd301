package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Searxng queries a self-hosted SearXNG metasearch instance.
type Searxng struct {
	Client        *http.Client
	BaseURL       string
	MaxResults    int
	FetchFullPage bool
}

func (s *Searxng) Search(ctx context.Context, query string) (*Response, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", strings.TrimRight(s.BaseURL, "/"), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			URL     string `json:"url"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse searxng response: %w", err)
	}

	out := &Response{}
	for i, r := range raw.Results {
		if i >= s.MaxResults {
			break
		}
		result := Result{URL: r.URL, Title: r.Title, Content: r.Content}
		if s.FetchFullPage {
			result.RawContent = fetchPage(ctx, s.Client, r.URL)
		}
		out.Results = append(out.Results, result)
	}
	return out, nil
}
