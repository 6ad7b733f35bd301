package research

import (
	"time"
)

// Step identifies a stage of the research pipeline state machine.
type Step string

const (
	StepIdle             Step = "idle"
	StepGenerateQuery    Step = "generate_query"
	StepWebResearch      Step = "web_research"
	StepSummarizeSources Step = "summarize_sources"
	StepReflectOnSummary Step = "reflect_on_summary"
	StepFinalizeSummary  Step = "finalize_summary"
	StepCompleted        Step = "completed"
	StepError            Step = "error"
)

// stepOrder is the canonical pipeline order with the fixed progress weights
// (sum 100) used by ProgressPercentage.
var stepOrder = []struct {
	Step   Step
	Weight float64
}{
	{StepGenerateQuery, 10.0},
	{StepWebResearch, 40.0},
	{StepSummarizeSources, 25.0},
	{StepReflectOnSummary, 15.0},
	{StepFinalizeSummary, 10.0},
}

// StepInfo carries display metadata for a step, for callers that render
// pipeline progress.
type StepInfo struct {
	Name        string
	Description string
}

// Steps maps every step to its display metadata.
var Steps = map[Step]StepInfo{
	StepIdle:             {"Ready", "Waiting to start research"},
	StepGenerateQuery:    {"Query Generation", "Generating optimized search query"},
	StepWebResearch:      {"Web Research", "Searching and gathering sources"},
	StepSummarizeSources: {"Summarization", "Analyzing and summarizing findings"},
	StepReflectOnSummary: {"Reflection", "Identifying knowledge gaps"},
	StepFinalizeSummary:  {"Finalization", "Preparing final research report"},
	StepCompleted:        {"Completed", "Research completed successfully"},
	StepError:            {"Error", "Research failed with error"},
}

// ResearchState is the full state of one research run. It is owned by the
// Engine for the duration of the run; the progress observer receives it
// read-only between mutations.
type ResearchState struct {
	// Core research data
	Topic              string   `json:"research_topic"`
	SearchQuery        string   `json:"search_query"`
	WebResearchResults []string `json:"web_research_results"`
	SourcesGathered    []string `json:"sources_gathered"`
	LoopCount          int      `json:"research_loop_count"`
	RunningSummary     string   `json:"running_summary"`

	// Progress tracking
	CurrentStep  Step                   `json:"current_step"`
	StepProgress float64                `json:"step_progress"`
	StepDetails  map[string]interface{} `json:"step_details"`
	MaxLoops     int                    `json:"max_loops"`

	// Metadata
	SessionID    string     `json:"session_id"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ProgressPercentage derives the overall run progress from the current step,
// the in-step fraction and the loop count. Pure; no side effects.
//
// While the pipeline is in web_research the loop-scaled term takes precedence
// over the plain weighted formula, which makes progress jump at loop
// boundaries rather than move smoothly. That matches the shipped behavior and
// is kept on purpose.
func (s *ResearchState) ProgressPercentage() float64 {
	switch s.CurrentStep {
	case StepCompleted:
		return 100.0
	case StepIdle:
		return 0.0
	}

	idx := -1
	for i, entry := range stepOrder {
		if entry.Step == s.CurrentStep {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Steps outside the canonical order (error included) report as done.
		return 100.0
	}

	var completed float64
	for i := 0; i < idx; i++ {
		completed += stepOrder[i].Weight
	}
	current := stepOrder[idx].Weight * s.StepProgress
	total := completed + current

	if s.CurrentStep == StepWebResearch {
		maxLoops := s.MaxLoops
		if maxLoops < 1 {
			maxLoops = 1
		}
		loopFactor := float64(s.LoopCount) / float64(maxLoops)
		if loopFactor > 1 {
			loopFactor = 1
		}
		total = stepOrder[0].Weight + stepOrder[1].Weight*loopFactor + current
	}

	if total > 100 {
		total = 100
	}
	return total
}

// UpdateStep moves the state to the given step and merges details into the
// accumulated diagnostic payload. Existing detail keys are overwritten,
// unrelated keys survive.
func (s *ResearchState) UpdateStep(step Step, progress float64, details map[string]interface{}) {
	s.CurrentStep = step
	s.StepProgress = progress
	if len(details) == 0 {
		return
	}
	if s.StepDetails == nil {
		s.StepDetails = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		s.StepDetails[k] = v
	}
}

// MarkCompleted stamps the completion time and moves to the terminal
// completed step.
func (s *ResearchState) MarkCompleted() {
	now := time.Now()
	s.CompletedAt = &now
	s.CurrentStep = StepCompleted
	s.StepProgress = 1.0
}

// MarkError records the failure and moves to the terminal error step.
func (s *ResearchState) MarkError(msg string) {
	s.ErrorMessage = msg
	s.CurrentStep = StepError
}
