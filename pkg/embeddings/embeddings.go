// Package embeddings provides the fixed-length vector embedding capability
// used by the session history store.
package embeddings

import (
	"context"
	"fmt"

	"github.com/mikeboe/deep-researcher/pkg/config"
)

// Embedder maps text to a fixed-length float vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// New returns the embedder selected by the configuration, using the given
// model name (which may be the configured model or the fixed fallback).
func New(ctx context.Context, cfg *config.Config, model string) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaBaseURL, model)
	case "google":
		return NewGoogleEmbedder(ctx, model, cfg.GoogleAPIKey, int32(cfg.EmbeddingDimension))
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}
