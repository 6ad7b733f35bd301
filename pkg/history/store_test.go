package history

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/mikeboe/deep-researcher/pkg/config"
)

// The store is shared by the API handlers, job workers and chat tools, so
// the lazy embedder init must be safe under concurrent first use and must
// construct the model exactly once.
func TestGetEmbedderConcurrent(t *testing.T) {
	store := &Store{
		Cfg: &config.Config{
			EmbeddingProvider: "ollama",
			EmbeddingModel:    "nomic-embed-text",
			OllamaBaseURL:     "http://localhost:11434/",
		},
		Logger: slog.Default(),
	}

	const workers = 8
	results := make([]interface{}, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			emb, err := store.getEmbedder(context.Background())
			if err != nil {
				t.Errorf("getEmbedder() error: %v", err)
				return
			}
			results[i] = emb
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Errorf("worker %d got a different embedder instance", i)
		}
	}
}
