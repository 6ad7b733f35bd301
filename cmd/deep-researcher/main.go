package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/database"
	"github.com/mikeboe/deep-researcher/pkg/history"
	"github.com/mikeboe/deep-researcher/pkg/research"
	"github.com/spf13/cobra"
)

var (
	topic    string
	maxLoops int
	outFile  string
	noStore  bool
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-researcher",
		Short: "A terminal-based web research agent",
		Long:  `deep-researcher is an autonomous agent that researches a topic by iterating through a search-summarize-reflect loop and writes a sourced report.`,
		Run: func(cmd *cobra.Command, args []string) {
			runResearch(cmd, cfg)
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().IntVarP(&maxLoops, "loops", "l", 0, "Override the number of research loops")
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the final report to this file")
	rootCmd.Flags().BoolVar(&noStore, "no-store", false, "Skip saving the session to the history store")

	rootCmd.AddCommand(checkCmd(cfg))
	rootCmd.AddCommand(historyCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func runResearch(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("topic") {
		// Interactive Mode
		reader := bufio.NewReader(os.Stdin)

		fmt.Print("Enter research topic: ")
		input, _ := reader.ReadString('\n')
		topic = strings.TrimSpace(input)
	}
	if topic == "" {
		slog.Error("Topic cannot be empty")
		os.Exit(1)
	}
	if maxLoops > 0 {
		cfg.MaxWebResearchLoops = maxLoops
	}

	engine, err := research.NewEngineFromConfig(cfg)
	if err != nil {
		slog.Error("Error initializing engine", "error", err)
		os.Exit(1)
	}

	engine.OnProgress = func(state *research.ResearchState) {
		info := research.Steps[state.CurrentStep]
		slog.Info(info.Name,
			"progress", fmt.Sprintf("%.0f%%", state.ProgressPercentage()),
			"loop", state.LoopCount)
	}

	state, err := engine.Run(context.Background(), topic)
	if err != nil {
		slog.Error("Error running research", "error", err)
		os.Exit(1)
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, []byte(state.RunningSummary+"\n"), 0o644); err != nil {
			slog.Error("Failed to write report file", "path", outFile, "error", err)
		} else {
			slog.Info("Report written", "path", outFile)
		}
	} else {
		fmt.Println("\n" + state.RunningSummary)
	}

	if noStore || cfg.DatabaseURL == "" {
		return
	}

	store, db, err := openStore(cfg)
	if err != nil {
		slog.Warn("History store unavailable, session not saved", "error", err)
		return
	}
	defer db.Close()

	session := &history.Session{
		ID:          state.SessionID,
		Topic:       state.Topic,
		Summary:     state.RunningSummary,
		Sources:     state.SourcesGathered,
		CreatedAt:   state.StartedAt,
		CompletedAt: state.CompletedAt,
		Config:      cfg.Snapshot(),
	}
	if store.Add(context.Background(), session) {
		slog.Info("Session saved to history", "session_id", state.SessionID)
	}
}

func checkCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the configured LLM backend",
		Run: func(cmd *cobra.Command, args []string) {
			status, err := clients.TestConnection(context.Background(), cfg)
			if err != nil {
				slog.Error("Connection test failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Provider:       %s\n", status.Provider)
			fmt.Printf("Model:          %s\n", status.Model)
			fmt.Printf("Basic response: %s\n", status.BasicResponse)
			fmt.Printf("JSON response:  %s\n", status.JSONResponse)
		},
	}
}

func historyCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past research sessions",
	}

	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent sessions",
		Run: func(cmd *cobra.Command, args []string) {
			store, db := mustOpenStore(cfg)
			defer db.Close()

			sessions := store.Recent(context.Background(), limit)
			if len(sessions) == 0 {
				fmt.Println("No sessions recorded.")
				return
			}
			for _, s := range sessions {
				fmt.Printf("%s  %s  %s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Topic)
			}
		},
	}
	recentCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of sessions to list")

	var searchLimit int
	var threshold float64
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find sessions similar to a query",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, db := mustOpenStore(cfg)
			defer db.Close()

			matches := store.SearchSimilar(context.Background(), args[0], searchLimit, threshold)
			if len(matches) == 0 {
				fmt.Println("No matching sessions found.")
				return
			}
			for _, m := range matches {
				fmt.Printf("%.3f  %s  %s\n", m.Score, m.Session.ID, m.Session.Topic)
			}
		},
	}
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Number of matches to return")
	searchCmd.Flags().Float64Var(&threshold, "threshold", 0.3, "Minimum similarity score")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show history store statistics",
		Run: func(cmd *cobra.Command, args []string) {
			store, db := mustOpenStore(cfg)
			defer db.Close()

			stats := store.Stats(context.Background())
			fmt.Printf("Total sessions:       %d\n", stats.TotalSessions)
			fmt.Printf("With embeddings:      %d\n", stats.SessionsWithEmbedding)
			fmt.Printf("Last 7 days:          %d\n", stats.RecentSessions)
			fmt.Printf("Embedding model:      %s\n", stats.EmbeddingModel)
			fmt.Printf("Embedding dimension:  %d\n", stats.EmbeddingDimension)
		},
	}

	var keep int
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all but the most recent sessions",
		Run: func(cmd *cobra.Command, args []string) {
			store, db := mustOpenStore(cfg)
			defer db.Close()

			deleted := store.Cleanup(context.Background(), keep)
			fmt.Printf("Deleted %d sessions.\n", deleted)
		},
	}
	cleanupCmd.Flags().IntVarP(&keep, "keep", "k", 0, "Number of recent sessions to keep")
	_ = cleanupCmd.MarkFlagRequired("keep")

	cmd.AddCommand(recentCmd, searchCmd, statsCmd, cleanupCmd)
	return cmd
}

func openStore(cfg *config.Config) (*history.Store, *database.PostgresDB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := database.NewPostgresDB(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.InitSchema(context.Background(), cfg.EmbeddingDimension); err != nil {
		db.Close()
		return nil, nil, err
	}
	return history.NewStore(db, cfg), db, nil
}

func mustOpenStore(cfg *config.Config) (*history.Store, *database.PostgresDB) {
	store, db, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to open history store", "error", err)
		os.Exit(1)
	}
	return store, db
}
