package research

import (
	"math"
	"testing"
)

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		name     string
		state    ResearchState
		expected float64
	}{
		{
			"Idle is zero",
			ResearchState{CurrentStep: StepIdle},
			0.0,
		},
		{
			"Completed is full",
			ResearchState{CurrentStep: StepCompleted},
			100.0,
		},
		{
			"Error reports as done",
			ResearchState{CurrentStep: StepError},
			100.0,
		},
		{
			"Query generation halfway",
			ResearchState{CurrentStep: StepGenerateQuery, StepProgress: 0.5},
			5.0,
		},
		{
			"Summarize after first loop",
			ResearchState{CurrentStep: StepSummarizeSources, StepProgress: 0.4, MaxLoops: 3, LoopCount: 1},
			60.0, // 10 + 40 + 25*0.4
		},
		{
			"Web research scales with loop count",
			ResearchState{CurrentStep: StepWebResearch, StepProgress: 0.5, MaxLoops: 4, LoopCount: 2},
			50.0, // 10 + 40*(2/4) + 40*0.5
		},
		{
			"Web research first pass",
			ResearchState{CurrentStep: StepWebResearch, StepProgress: 0.1, MaxLoops: 3, LoopCount: 0},
			14.0, // 10 + 0 + 40*0.1
		},
		{
			"Web research loop factor capped at one",
			ResearchState{CurrentStep: StepWebResearch, StepProgress: 0.5, MaxLoops: 2, LoopCount: 5},
			70.0, // 10 + 40 + 40*0.5
		},
		{
			"Web research full loop and full step",
			ResearchState{CurrentStep: StepWebResearch, StepProgress: 1.0, MaxLoops: 1, LoopCount: 1},
			90.0, // 10 + 40 + 40
		},
		{
			"Zero max loops treated as one",
			ResearchState{CurrentStep: StepWebResearch, StepProgress: 0.0, MaxLoops: 0, LoopCount: 1},
			50.0, // 10 + 40*1 + 0
		},
		{
			"Finalize nearly done",
			ResearchState{CurrentStep: StepFinalizeSummary, StepProgress: 0.5},
			95.0, // 90 + 10*0.5
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.ProgressPercentage()
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ProgressPercentage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUpdateStepMergesDetails(t *testing.T) {
	s := &ResearchState{}

	s.UpdateStep(StepGenerateQuery, 0.1, map[string]interface{}{"status": "working", "query": "q1"})
	s.UpdateStep(StepWebResearch, 0.5, map[string]interface{}{"status": "searching"})

	if s.CurrentStep != StepWebResearch || s.StepProgress != 0.5 {
		t.Errorf("step not updated: %s %v", s.CurrentStep, s.StepProgress)
	}
	if s.StepDetails["status"] != "searching" {
		t.Errorf("newer detail should win, got %v", s.StepDetails["status"])
	}
	if s.StepDetails["query"] != "q1" {
		t.Errorf("unrelated detail should survive, got %v", s.StepDetails["query"])
	}
}

func TestMarkCompletedAndError(t *testing.T) {
	s := &ResearchState{CurrentStep: StepFinalizeSummary}
	s.MarkCompleted()
	if s.CurrentStep != StepCompleted || s.CompletedAt == nil {
		t.Errorf("MarkCompleted did not finalize state: %s %v", s.CurrentStep, s.CompletedAt)
	}

	e := &ResearchState{CurrentStep: StepWebResearch}
	e.MarkError("backend down")
	if e.CurrentStep != StepError || e.ErrorMessage != "backend down" {
		t.Errorf("MarkError did not record failure: %s %q", e.CurrentStep, e.ErrorMessage)
	}
}
