// Package history is the durable store of completed research sessions. It
// persists each session with a vector embedding of its content and answers
// nearest-neighbor queries by exact cosine similarity.
//
// The store is a best-effort augmentation of the research pipeline: every
// operation catches storage and embedding failures internally, logs them and
// degrades to an empty result or no-op. History is never allowed to break a
// running research.
package history

import (
	"time"
)

// Session is the persisted record of one completed research run. Created
// once, never mutated, deleted only by retention cleanup.
type Session struct {
	ID          string                 `json:"id"`
	Topic       string                 `json:"topic"`
	Summary     string                 `json:"summary"`
	Sources     []string               `json:"sources"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty"`
	Embedding   []float32              `json:"embedding,omitempty"`
}

// Match pairs a session with its similarity score for a query.
type Match struct {
	Session *Session `json:"session"`
	Score   float64  `json:"score"`
}

// Stats summarizes the state of the store.
type Stats struct {
	TotalSessions         int    `json:"total_sessions"`
	SessionsWithEmbedding int    `json:"sessions_with_embeddings"`
	RecentSessions        int    `json:"recent_sessions"`
	EmbeddingModel        string `json:"embedding_model"`
	EmbeddingDimension    int    `json:"embedding_dimension"`
}
