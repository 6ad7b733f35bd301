package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama generates text against a local Ollama server.
type Ollama struct {
	llm *ollama.LLM
}

func NewOllama(baseURL, model string) (*Ollama, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init ollama client: %w", err)
	}
	return &Ollama{llm: llm}, nil
}

func (o *Ollama) Generate(ctx context.Context, messages []llms.MessageContent, jsonMode bool) (string, error) {
	return generate(ctx, o.llm, messages, jsonMode)
}
