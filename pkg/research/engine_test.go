package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikeboe/deep-researcher/pkg/config"
	"github.com/mikeboe/deep-researcher/pkg/search"
	"github.com/tmc/langchaingo/llms"
)

// fakeLLM scripts the model responses. The first JSON-mode call is the query
// generation, every later JSON-mode call is a reflection.
type fakeLLM struct {
	queryResp   string
	summaryResp string
	reflectResp string
	err         error

	calls     int
	jsonCalls int
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llms.MessageContent, jsonMode bool) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if jsonMode {
		f.jsonCalls++
		if f.jsonCalls == 1 {
			return f.queryResp, nil
		}
		return f.reflectResp, nil
	}
	return f.summaryResp, nil
}

type fakeSearcher struct {
	resp  *search.Response
	err   error
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*search.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxWebResearchLoops: 2,
		StripThinkingTokens: true,
		SearchAPI:           "duckduckgo",
	}
}

func testEngine(llm *fakeLLM, searcher *fakeSearcher) *Engine {
	return NewEngine(testConfig(), llm, searcher)
}

func TestEngineRunCompletes(t *testing.T) {
	llm := &fakeLLM{
		queryResp:   `{"query": "golang generics", "rationale": "broad overview"}`,
		summaryResp: "Generics were added in Go 1.18.",
		reflectResp: `{"knowledge_gap": "performance", "follow_up_query": "golang generics performance"}`,
	}
	searcher := &fakeSearcher{
		resp: &search.Response{Results: []search.Result{
			{URL: "http://a", Title: "A", Content: "alpha"},
			{URL: "http://b", Title: "B", Content: "beta"},
		}},
	}

	engine := testEngine(llm, searcher)

	var steps []Step
	engine.OnProgress = func(state *ResearchState) {
		steps = append(steps, state.CurrentStep)
	}

	state, err := engine.Run(context.Background(), "golang generics")
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	// The loop comparison is inclusive, so maxLoops research passes plus one.
	if want := 3; state.LoopCount != want {
		t.Errorf("LoopCount = %d, want %d", state.LoopCount, want)
	}
	if searcher.calls != 3 {
		t.Errorf("search calls = %d, want 3", searcher.calls)
	}
	if state.CurrentStep != StepCompleted {
		t.Errorf("CurrentStep = %s, want %s", state.CurrentStep, StepCompleted)
	}
	if state.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
	if state.SearchQuery != "golang generics performance" {
		t.Errorf("SearchQuery = %q, want reflection follow-up", state.SearchQuery)
	}

	if !strings.HasPrefix(state.RunningSummary, "## Summary\n") {
		t.Errorf("report missing summary header:\n%s", state.RunningSummary)
	}
	if !strings.Contains(state.RunningSummary, "### Sources:\n1. http://a\n2. http://b") {
		t.Errorf("report should number deduplicated sources:\n%s", state.RunningSummary)
	}

	// Every pipeline stage must have been observed, in order of first
	// appearance.
	var firstSeen []Step
	seen := make(map[Step]bool)
	for _, s := range steps {
		if !seen[s] {
			seen[s] = true
			firstSeen = append(firstSeen, s)
		}
	}
	wantOrder := []Step{StepIdle, StepGenerateQuery, StepWebResearch, StepSummarizeSources, StepReflectOnSummary, StepFinalizeSummary, StepCompleted}
	if len(firstSeen) != len(wantOrder) {
		t.Fatalf("observed steps %v, want %v", firstSeen, wantOrder)
	}
	for i := range wantOrder {
		if firstSeen[i] != wantOrder[i] {
			t.Errorf("step %d = %s, want %s", i, firstSeen[i], wantOrder[i])
		}
	}
}

func TestWebResearchLoopStatus(t *testing.T) {
	llm := &fakeLLM{
		queryResp:   `{"query": "q"}`,
		summaryResp: "summary",
		reflectResp: `{"follow_up_query": "next"}`,
	}
	searcher := &fakeSearcher{resp: &search.Response{}}

	engine := testEngine(llm, searcher)

	var statuses []string
	engine.OnProgress = func(state *ResearchState) {
		if state.CurrentStep == StepWebResearch {
			if s, ok := state.StepDetails["status"].(string); ok {
				statuses = append(statuses, s)
			}
		}
	}

	if _, err := engine.Run(context.Background(), "anything"); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	// maxLoops is 2, so the extra pass must display against a total of 3.
	want := "Searching web (loop 3/3)..."
	found := false
	for _, s := range statuses {
		if s == want {
			found = true
		}
		if strings.Contains(s, "/2)") {
			t.Errorf("status %q shows the wrong pass total", s)
		}
	}
	if !found {
		t.Errorf("statuses %v missing %q", statuses, want)
	}
}

func TestEngineQueryFallback(t *testing.T) {
	llm := &fakeLLM{
		queryResp:   "<think>no json today</think>plain text query",
		summaryResp: "summary",
		reflectResp: `{"knowledge_gap": "g", "follow_up_query": "next"}`,
	}
	searcher := &fakeSearcher{resp: &search.Response{}}

	engine := testEngine(llm, searcher)

	var firstQuery string
	engine.OnProgress = func(state *ResearchState) {
		if firstQuery == "" {
			firstQuery = state.SearchQuery
		}
	}

	if _, err := engine.Run(context.Background(), "quantum computing"); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if firstQuery != "plain text query" {
		t.Errorf("fallback query = %q, want stripped raw output", firstQuery)
	}
}

func TestEngineReflectFallback(t *testing.T) {
	llm := &fakeLLM{
		queryResp:   `{"query": "q"}`,
		summaryResp: "summary",
		reflectResp: "not json at all",
	}
	searcher := &fakeSearcher{resp: &search.Response{}}

	engine := testEngine(llm, searcher)

	state, err := engine.Run(context.Background(), "dark matter")
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if state.SearchQuery != "Tell me more about dark matter" {
		t.Errorf("reflection fallback = %q, want generic follow-up", state.SearchQuery)
	}
}

func TestEngineSearchErrorFailsRun(t *testing.T) {
	llm := &fakeLLM{queryResp: `{"query": "q"}`}
	searcher := &fakeSearcher{err: errors.New("backend down")}

	engine := testEngine(llm, searcher)

	state, err := engine.Run(context.Background(), "anything")
	if err == nil {
		t.Fatal("Run() should fail when the search backend fails")
	}
	if !strings.Contains(err.Error(), "backend down") {
		t.Errorf("error should wrap the cause, got %v", err)
	}
	if state.CurrentStep != StepError {
		t.Errorf("CurrentStep = %s, want %s", state.CurrentStep, StepError)
	}
	if state.ErrorMessage == "" {
		t.Error("ErrorMessage should be recorded")
	}
}

func TestEngineLLMErrorFailsRun(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model unavailable")}
	searcher := &fakeSearcher{resp: &search.Response{}}

	engine := testEngine(llm, searcher)

	state, err := engine.Run(context.Background(), "anything")
	if err == nil {
		t.Fatal("Run() should fail when the model fails")
	}
	if state.CurrentStep != StepError {
		t.Errorf("CurrentStep = %s, want %s", state.CurrentStep, StepError)
	}
}

func TestEngineObserverPanicContained(t *testing.T) {
	llm := &fakeLLM{
		queryResp:   `{"query": "q"}`,
		summaryResp: "summary",
		reflectResp: `{"follow_up_query": "next"}`,
	}
	searcher := &fakeSearcher{resp: &search.Response{}}

	engine := testEngine(llm, searcher)
	engine.OnProgress = func(state *ResearchState) {
		panic("observer bug")
	}

	state, err := engine.Run(context.Background(), "anything")
	if err != nil {
		t.Fatalf("observer panic must not fail the run: %v", err)
	}
	if state.CurrentStep != StepCompleted {
		t.Errorf("CurrentStep = %s, want %s", state.CurrentStep, StepCompleted)
	}
}
