package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Google generates text against the Gemini API.
type Google struct {
	llm *googleai.GoogleAI
}

func NewGoogle(apiKey, model string) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(context.Background(),
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init google client: %w", err)
	}
	return &Google{llm: llm}, nil
}

func (g *Google) Generate(ctx context.Context, messages []llms.MessageContent, jsonMode bool) (string, error) {
	return generate(ctx, g.llm, messages, jsonMode)
}
