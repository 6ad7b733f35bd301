package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/database"
	"github.com/mikeboe/deep-researcher/pkg/embeddings"
)

// Store persists research sessions in Postgres with a pgvector embedding
// column. Similarity search is a linear scan with exact cosine scoring; at
// the target scale (hundreds to low thousands of sessions) no index
// structure is needed.
//
// One Store instance is shared by the API handlers, the job workers and the
// chat tools, so the lazy embedder init is guarded; everything else is
// stateless over the pool.
type Store struct {
	DB     *database.PostgresDB
	Cfg    *config.Config
	Logger *slog.Logger

	mu       sync.Mutex
	embedder embeddings.Embedder
}

func NewStore(db *database.PostgresDB, cfg *config.Config) *Store {
	return &Store{
		DB:     db,
		Cfg:    cfg,
		Logger: slog.Default(),
	}
}

// getEmbedder lazily constructs the embedding model once per store. A load
// failure of the configured model falls back to the fixed default model.
func (s *Store) getEmbedder(ctx context.Context) (embeddings.Embedder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embedder != nil {
		return s.embedder, nil
	}

	emb, err := embeddings.New(ctx, s.Cfg, s.Cfg.EmbeddingModel)
	if err != nil {
		s.Logger.Warn("Failed to load embedding model, falling back to default",
			"model", s.Cfg.EmbeddingModel, "fallback", config.DefaultEmbeddingModel, "error", err)
		emb, err = embeddings.New(ctx, s.Cfg, config.DefaultEmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback embedding model: %w", err)
		}
	}
	s.embedder = emb
	return s.embedder, nil
}

// Add persists the session keyed by its id, computing an embedding of the
// topic and summary first. Re-inserting an existing id replaces the stored
// fields. Returns false (and logs) on any failure.
func (s *Store) Add(ctx context.Context, session *Session) bool {
	embedder, err := s.getEmbedder(ctx)
	if err != nil {
		s.Logger.Error("Error adding session to history store", "error", err)
		return false
	}

	textToEmbed := session.Topic + "\n\n" + session.Summary
	embedding, err := embedder.EmbedText(ctx, textToEmbed)
	if err != nil {
		s.Logger.Error("Error embedding session content", "session_id", session.ID, "error", err)
		return false
	}
	session.Embedding = embedding

	sourcesJSON, err := json.Marshal(session.Sources)
	if err != nil {
		s.Logger.Error("Error marshaling session sources", "session_id", session.ID, "error", err)
		return false
	}
	var configJSON []byte
	if session.Config != nil {
		if configJSON, err = json.Marshal(session.Config); err != nil {
			s.Logger.Error("Error marshaling session config", "session_id", session.ID, "error", err)
			return false
		}
	}

	query := `
		INSERT INTO research_sessions (id, topic, summary, sources, created_at, completed_at, config, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			topic = EXCLUDED.topic,
			summary = EXCLUDED.summary,
			sources = EXCLUDED.sources,
			created_at = EXCLUDED.created_at,
			completed_at = EXCLUDED.completed_at,
			config = EXCLUDED.config,
			embedding = EXCLUDED.embedding
	`
	_, err = s.DB.Pool.Exec(ctx, query,
		session.ID, session.Topic, session.Summary, sourcesJSON,
		session.CreatedAt, session.CompletedAt, configJSON,
		pgvector.NewVector(embedding))
	if err != nil {
		s.Logger.Error("Error adding session to history store", "session_id", session.ID, "error", err)
		return false
	}
	return true
}

// Get retrieves a session by id. Returns nil when not found or on failure.
func (s *Store) Get(ctx context.Context, id string) *Session {
	query := `
		SELECT id, topic, summary, sources, created_at, completed_at, config, embedding::text
		FROM research_sessions
		WHERE id = $1
	`
	rows, err := s.DB.Pool.Query(ctx, query, id)
	if err != nil {
		s.Logger.Error("Error retrieving session", "session_id", id, "error", err)
		return nil
	}
	defer rows.Close()

	if !rows.Next() {
		return nil
	}
	session, err := scanSession(rows)
	if err != nil {
		s.Logger.Error("Error retrieving session", "session_id", id, "error", err)
		return nil
	}
	return session
}

// Recent returns up to limit sessions ordered by creation time descending.
// A non-positive limit falls back to the configured history limit.
func (s *Store) Recent(ctx context.Context, limit int) []*Session {
	if limit <= 0 {
		limit = s.Cfg.HistoryLimit
	}
	query := `
		SELECT id, topic, summary, sources, created_at, completed_at, config, embedding::text
		FROM research_sessions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.DB.Pool.Query(ctx, query, limit)
	if err != nil {
		s.Logger.Error("Error retrieving recent sessions", "error", err)
		return nil
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			s.Logger.Error("Error scanning session row", "error", err)
			return nil
		}
		sessions = append(sessions, session)
	}
	return sessions
}

// SearchSimilar embeds the query and ranks every stored session by cosine
// similarity. Results with a score below threshold are dropped; the rest are
// sorted descending, equal scores keeping insertion order, truncated to
// limit.
func (s *Store) SearchSimilar(ctx context.Context, query string, limit int, threshold float64) []Match {
	embedder, err := s.getEmbedder(ctx)
	if err != nil {
		s.Logger.Error("Error searching similar sessions", "error", err)
		return nil
	}
	queryEmbedding, err := embedder.EmbedText(ctx, query)
	if err != nil {
		s.Logger.Error("Error embedding search query", "error", err)
		return nil
	}

	// Walk candidates in insertion order; rankMatches' stable sort then
	// yields the documented tie order.
	sqlQuery := `
		SELECT id, topic, summary, sources, created_at, completed_at, config, embedding::text
		FROM research_sessions
		WHERE embedding IS NOT NULL
		ORDER BY seq ASC
	`
	rows, err := s.DB.Pool.Query(ctx, sqlQuery)
	if err != nil {
		s.Logger.Error("Error searching similar sessions", "error", err)
		return nil
	}
	defer rows.Close()

	var candidates []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			s.Logger.Error("Error scanning session row", "error", err)
			return nil
		}
		candidates = append(candidates, session)
	}

	return rankMatches(queryEmbedding, candidates, limit, threshold)
}

// Stats reports the total session count, how many carry embeddings and the
// activity of the last seven days.
func (s *Store) Stats(ctx context.Context) Stats {
	stats := Stats{
		EmbeddingModel:     s.Cfg.EmbeddingModel,
		EmbeddingDimension: s.Cfg.EmbeddingDimension,
	}

	query := `
		SELECT COUNT(*),
		       COUNT(embedding),
		       COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days')
		FROM research_sessions
	`
	err := s.DB.Pool.QueryRow(ctx, query).Scan(
		&stats.TotalSessions, &stats.SessionsWithEmbedding, &stats.RecentSessions)
	if err != nil {
		s.Logger.Error("Error getting history stats", "error", err)
		return Stats{EmbeddingModel: s.Cfg.EmbeddingModel, EmbeddingDimension: s.Cfg.EmbeddingDimension}
	}
	return stats
}

// Delete removes one session by id. Returns true when a row was removed.
func (s *Store) Delete(ctx context.Context, id string) bool {
	tag, err := s.DB.Pool.Exec(ctx, "DELETE FROM research_sessions WHERE id = $1", id)
	if err != nil {
		s.Logger.Error("Error deleting session", "session_id", id, "error", err)
		return false
	}
	return tag.RowsAffected() > 0
}

// Cleanup retains the keepRecent most recently created sessions, deletes the
// rest and returns the number removed.
func (s *Store) Cleanup(ctx context.Context, keepRecent int) int {
	query := `
		DELETE FROM research_sessions
		WHERE id NOT IN (
			SELECT id FROM research_sessions
			ORDER BY created_at DESC
			LIMIT $1
		)
	`
	tag, err := s.DB.Pool.Exec(ctx, query, keepRecent)
	if err != nil {
		s.Logger.Error("Error cleaning up sessions", "error", err)
		return 0
	}
	return int(tag.RowsAffected())
}

// rowScanner is the subset of pgx.Rows scanSession needs.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session      Session
		sourcesJSON  []byte
		configJSON   []byte
		embeddingStr *string
	)
	if err := row.Scan(&session.ID, &session.Topic, &session.Summary, &sourcesJSON,
		&session.CreatedAt, &session.CompletedAt, &configJSON, &embeddingStr); err != nil {
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}
	if err := json.Unmarshal(sourcesJSON, &session.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &session.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	if embeddingStr != nil {
		vec, err := parseVector(*embeddingStr)
		if err != nil {
			return nil, err
		}
		session.Embedding = vec
	}
	return &session, nil
}
