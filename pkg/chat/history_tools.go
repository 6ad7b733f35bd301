package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/history"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// HistoryToolset exposes the research session history to the chat agent.
type HistoryToolset struct {
	Store  *history.Store
	config *config.Config
}

func NewHistoryToolset(store *history.Store, config *config.Config) *HistoryToolset {
	return &HistoryToolset{
		Store:  store,
		config: config,
	}
}

func (t *HistoryToolset) Name() string {
	return "history_tools"
}

func (t *HistoryToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchSessionsArgs, SearchSessionsResp](
		functiontool.Config{
			Name:        "search_sessions",
			Description: "Search past research sessions by semantic similarity to a query.",
		},
		t.searchSessionsTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	recentTool, err := functiontool.New[RecentSessionsArgs, RecentSessionsResp](
		functiontool.Config{
			Name:        "recent_sessions",
			Description: "List the most recent research sessions.",
		},
		t.recentSessionsTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recent tool: %w", err)
	}

	getTool, err := functiontool.New[GetSessionArgs, GetSessionResp](
		functiontool.Config{
			Name:        "get_session",
			Description: "Fetch the full summary and sources of one research session by its ID.",
		},
		t.getSessionTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create get tool: %w", err)
	}

	return []tool.Tool{searchTool, recentTool, getTool}, nil
}

// --- Tool Implementations ---

type SearchSessionsArgs struct {
	Query     string  `json:"query" description:"The search query"`
	TopK      int     `json:"topK,omitempty" description:"Number of results to return (default 5)"`
	Threshold float64 `json:"threshold,omitempty" description:"Minimum similarity score, 0 to 1 (default 0.3)"`
}

type SearchSessionsResp struct {
	Results string `json:"results"`
}

// Wrapper for ADK tool interface
func (t *HistoryToolset) searchSessionsTool(ctx tool.Context, args SearchSessionsArgs) (SearchSessionsResp, error) {
	return t.SearchSessions(ctx, args)
}

// Public method using standard context
func (t *HistoryToolset) SearchSessions(ctx context.Context, args SearchSessionsArgs) (SearchSessionsResp, error) {
	if args.TopK == 0 {
		args.TopK = 5
	}
	if args.Threshold == 0 {
		args.Threshold = 0.3
	}

	slog.Info("Search sessions", "query", args.Query, "topK", args.TopK, "threshold", args.Threshold)

	matches := t.Store.SearchSimilar(ctx, args.Query, args.TopK, args.Threshold)
	if len(matches) == 0 {
		return SearchSessionsResp{Results: "No matching research sessions found."}, nil
	}

	var formatted []string
	for _, m := range matches {
		formatted = append(formatted, fmt.Sprintf(
			"[Session]: %s\n[Topic]: %s\n[Similarity]: %.2f\n[Summary]: %s",
			m.Session.ID, m.Session.Topic, m.Score, m.Session.Summary))
	}
	return SearchSessionsResp{Results: strings.Join(formatted, "\n\n")}, nil
}

type RecentSessionsArgs struct {
	Limit int `json:"limit,omitempty" description:"Number of sessions to return (default 5)"`
}

type RecentSessionsResp struct {
	Sessions string `json:"sessions"`
}

// Wrapper for ADK tool interface
func (t *HistoryToolset) recentSessionsTool(ctx tool.Context, args RecentSessionsArgs) (RecentSessionsResp, error) {
	return t.RecentSessions(ctx, args)
}

// Public method using standard context
func (t *HistoryToolset) RecentSessions(ctx context.Context, args RecentSessionsArgs) (RecentSessionsResp, error) {
	if args.Limit == 0 {
		args.Limit = 5
	}

	sessions := t.Store.Recent(ctx, args.Limit)
	if len(sessions) == 0 {
		return RecentSessionsResp{Sessions: "No research sessions recorded yet."}, nil
	}

	var formatted []string
	for _, s := range sessions {
		formatted = append(formatted, fmt.Sprintf(
			"[Session]: %s\n[Topic]: %s\n[Created]: %s\n[Sources]: %d",
			s.ID, s.Topic, s.CreatedAt.Format("2006-01-02 15:04"), len(s.Sources)))
	}
	return RecentSessionsResp{Sessions: strings.Join(formatted, "\n\n")}, nil
}

type GetSessionArgs struct {
	ID string `json:"id" description:"The session ID"`
}

type GetSessionResp struct {
	Content string `json:"content"`
}

// Wrapper for ADK tool interface
func (t *HistoryToolset) getSessionTool(ctx tool.Context, args GetSessionArgs) (GetSessionResp, error) {
	return t.GetSession(ctx, args)
}

// Public method using standard context
func (t *HistoryToolset) GetSession(ctx context.Context, args GetSessionArgs) (GetSessionResp, error) {
	session := t.Store.Get(ctx, args.ID)
	if session == nil {
		return GetSessionResp{Content: fmt.Sprintf("No session found with ID %s.", args.ID)}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Topic]: %s\n[Created]: %s\n\n%s",
		session.Topic, session.CreatedAt.Format("2006-01-02 15:04"), session.Summary))
	if len(session.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, src := range session.Sources {
			sb.WriteString(fmt.Sprintf("- %s\n", src))
		}
	}
	return GetSessionResp{Content: sb.String()}, nil
}
