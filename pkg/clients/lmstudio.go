package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LMStudio generates text against LM Studio's OpenAI-compatible server.
type LMStudio struct {
	llm *openai.LLM
}

func NewLMStudio(baseURL, model string) (*LMStudio, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		// LM Studio does not check the API key but the client requires one.
		openai.WithToken("lm-studio"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init lmstudio client: %w", err)
	}
	return &LMStudio{llm: llm}, nil
}

func (l *LMStudio) Generate(ctx context.Context, messages []llms.MessageContent, jsonMode bool) (string, error) {
	return generate(ctx, l.llm, messages, jsonMode)
}
