package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// DuckDuckGo queries the DuckDuckGo Instant Answer API. No API key required,
// which makes it the default backend.
type DuckDuckGo struct {
	Client        *http.Client
	BaseURL       string // defaults to the public endpoint
	MaxResults    int
	FetchFullPage bool
}

const duckduckgoBaseURL = "https://api.duckduckgo.com/"

func (d *DuckDuckGo) Search(ctx context.Context, query string) (*Response, error) {
	base := d.BaseURL
	if base == "" {
		base = duckduckgoBaseURL
	}
	endpoint := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1", base, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Heading       string `json:"Heading"`
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse duckduckgo response: %w", err)
	}

	out := &Response{}
	if raw.AbstractURL != "" && raw.AbstractText != "" {
		out.Results = append(out.Results, Result{
			URL:     raw.AbstractURL,
			Title:   raw.Heading,
			Content: raw.AbstractText,
		})
	}
	for _, topic := range raw.RelatedTopics {
		if len(out.Results) >= d.MaxResults {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		out.Results = append(out.Results, Result{
			URL:     topic.FirstURL,
			Title:   topic.Text,
			Content: topic.Text,
		})
	}

	if d.FetchFullPage {
		for i := range out.Results {
			out.Results[i].RawContent = fetchPage(ctx, d.Client, out.Results[i].URL)
		}
	}
	return out, nil
}
