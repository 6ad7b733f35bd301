// Package clients wires the configured LLM backend behind a single
// generation interface. Backends share langchaingo model types; JSON mode
// maps to each provider's native JSON-constrained output.
package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-researcher/pkg/config"
)

// Generator is the text-generation capability the research pipeline depends
// on. jsonMode strongly biases the model toward syntactically valid JSON; the
// caller still tolerates malformed output.
type Generator interface {
	Generate(ctx context.Context, messages []llms.MessageContent, jsonMode bool) (string, error)
}

// NewGenerator returns the backend selected by the configuration. An
// unsupported selection is a configuration error and fails immediately.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.LLMProvider {
	case "ollama":
		return NewOllama(cfg.OllamaBaseURL, cfg.LocalLLM)
	case "lmstudio":
		return NewLMStudio(cfg.LMStudioBaseURL, cfg.LocalLLM)
	case "google":
		return NewGoogle(cfg.GoogleAPIKey, cfg.LocalLLM)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// generate runs a single completion against a langchaingo model with the
// shared option set.
func generate(ctx context.Context, model llms.Model, messages []llms.MessageContent, jsonMode bool) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(0)}
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// ConnectionStatus reports the result of a backend connectivity probe.
type ConnectionStatus struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	BasicResponse string `json:"basic_response"`
	JSONResponse  string `json:"json_response"`
}

// TestConnection exercises both the plain and JSON generation modes of the
// configured backend. Useful as a startup diagnostic.
func TestConnection(ctx context.Context, cfg *config.Config) (*ConnectionStatus, error) {
	gen, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	basic, err := gen.Generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "Hello, respond with just 'OK'"),
	}, false)
	if err != nil {
		return nil, fmt.Errorf("basic generation probe failed: %w", err)
	}

	jsonResp, err := gen.Generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, `Respond with JSON: {"status": "ok"}`),
	}, true)
	if err != nil {
		return nil, fmt.Errorf("json generation probe failed: %w", err)
	}

	return &ConnectionStatus{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LocalLLM,
		BasicResponse: truncate(basic, 100),
		JSONResponse:  truncate(jsonResp, 100),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
