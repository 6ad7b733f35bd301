package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Tavily queries the Tavily search API, which can return full page content
// server-side.
type Tavily struct {
	Client            *http.Client
	BaseURL           string // defaults to the public endpoint
	APIKey            string
	MaxResults        int
	IncludeRawContent bool
}

const tavilyBaseURL = "https://api.tavily.com/search"

func (t *Tavily) Search(ctx context.Context, query string) (*Response, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY is not set")
	}
	base := t.BaseURL
	if base == "" {
		base = tavilyBaseURL
	}

	payload, err := json.Marshal(map[string]interface{}{
		"query":               query,
		"max_results":         t.MaxResults,
		"include_raw_content": t.IncludeRawContent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			URL        string `json:"url"`
			Title      string `json:"title"`
			Content    string `json:"content"`
			RawContent string `json:"raw_content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse tavily response: %w", err)
	}

	out := &Response{}
	for i, r := range raw.Results {
		if i >= t.MaxResults {
			break
		}
		out.Results = append(out.Results, Result{
			URL:        r.URL,
			Title:      r.Title,
			Content:    r.Content,
			RawContent: r.RawContent,
		})
	}
	return out, nil
}
