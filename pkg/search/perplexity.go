package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Perplexity answers the query with the Perplexity online model and exposes
// the answer plus its citations as ranked results.
type Perplexity struct {
	Client  *http.Client
	BaseURL string // defaults to the public endpoint
	APIKey  string
}

const perplexityBaseURL = "https://api.perplexity.ai/chat/completions"

func (p *Perplexity) Search(ctx context.Context, query string) (*Response, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("PERPLEXITY_API_KEY is not set")
	}
	base := p.BaseURL
	if base == "" {
		base = perplexityBaseURL
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model": "sonar-pro",
		"messages": []map[string]string{
			{"role": "system", "content": "Search the web and provide factual information with sources."},
			{"role": "user", "content": query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perplexity request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("perplexity returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Citations []string `json:"citations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse perplexity response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("perplexity returned no choices")
	}

	content := raw.Choices[0].Message.Content
	citations := raw.Citations
	if len(citations) == 0 {
		citations = []string{"https://perplexity.ai"}
	}

	// The full answer rides on the first citation; remaining citations get
	// their own entry so every source URL is tracked.
	out := &Response{}
	for i, url := range citations {
		r := Result{
			URL:     url,
			Title:   fmt.Sprintf("Perplexity Search, Source %d", i+1),
			Content: "See above. Only displayed for consistency reasons.",
		}
		if i == 0 {
			r.Content = content
			r.RawContent = content
		}
		out.Results = append(out.Results, r)
	}
	return out, nil
}
