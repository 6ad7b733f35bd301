package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-researcher/pkg/clients"
	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/search"
)

// Engine drives the research pipeline: query generation, looped web research
// with summarization and reflection, and report finalization. One Engine runs
// one topic at a time; state is created per run.
type Engine struct {
	Config   *config.Config
	LLM      clients.Generator
	Searcher search.Searcher
	Logger   *slog.Logger

	// OnProgress, when set, receives the state after every mutation. It runs
	// synchronously between steps and must return quickly. Panics are caught
	// and logged, never surfaced into the pipeline.
	OnProgress func(state *ResearchState)
}

func NewEngine(cfg *config.Config, llm clients.Generator, searcher search.Searcher) *Engine {
	return &Engine{
		Config:   cfg,
		LLM:      llm,
		Searcher: searcher,
		Logger:   slog.Default(),
	}
}

// NewEngineFromConfig validates the configuration and constructs the selected
// LLM and search backends.
func NewEngineFromConfig(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	llm, err := clients.NewGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init LLM: %w", err)
	}
	searcher, err := search.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init search backend: %w", err)
	}
	return NewEngine(cfg, llm, searcher), nil
}

// Run executes the full pipeline for one topic and returns the final state.
// On a capability failure the state is marked error and the error is
// returned; nothing is persisted for a failed run.
func (e *Engine) Run(ctx context.Context, topic string) (*ResearchState, error) {
	state := &ResearchState{
		Topic:       topic,
		CurrentStep: StepIdle,
		MaxLoops:    e.Config.MaxWebResearchLoops,
		SessionID:   uuid.New().String(),
		StartedAt:   time.Now(),
	}
	e.Logger.Info("Starting research", "topic", topic, "session_id", state.SessionID, "max_loops", state.MaxLoops)
	e.notify(state)

	step := StepGenerateQuery
	for {
		var err error
		var next Step

		switch step {
		case StepGenerateQuery:
			err = e.generateQuery(ctx, state)
			next = StepWebResearch
		case StepWebResearch:
			err = e.webResearch(ctx, state)
			next = StepSummarizeSources
		case StepSummarizeSources:
			err = e.summarizeSources(ctx, state)
			next = StepReflectOnSummary
		case StepReflectOnSummary:
			err = e.reflectOnSummary(ctx, state)
			// The loop counter moves inside web_research and the comparison
			// is inclusive, so a run performs maxLoops+1 research passes.
			if state.LoopCount <= state.MaxLoops {
				next = StepWebResearch
			} else {
				next = StepFinalizeSummary
			}
		case StepFinalizeSummary:
			if err = e.finalizeSummary(ctx, state); err == nil {
				e.Logger.Info("Research completed", "session_id", state.SessionID,
					"loops", state.LoopCount, "sources", len(state.SourcesGathered))
				return state, nil
			}
		}

		if err != nil {
			return state, err
		}
		step = next
	}
}

// updateProgress mutates the state and invokes the observer.
func (e *Engine) updateProgress(state *ResearchState, step Step, progress float64, details map[string]interface{}) {
	state.UpdateStep(step, progress, details)
	e.notify(state)
}

func (e *Engine) notify(state *ResearchState) {
	if e.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("Progress callback panicked", "panic", r)
		}
	}()
	e.OnProgress(state)
}

// fail records the failure on the state, notifies the observer and wraps the
// underlying error for the caller.
func (e *Engine) fail(state *ResearchState, msg string, err error) error {
	wrapped := fmt.Errorf("%s: %w", msg, err)
	state.MarkError(wrapped.Error())
	e.updateProgress(state, StepError, 0.0, map[string]interface{}{"error": err.Error()})
	e.Logger.Error(msg, "session_id", state.SessionID, "error", err)
	return wrapped
}
