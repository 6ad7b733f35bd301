package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const maxCharsPerSource = 4000

// generateQuery builds an optimized web search query for the topic. A
// malformed JSON response is recovered by using the raw model output as the
// query; only a backend failure is fatal.
func (e *Engine) generateQuery(ctx context.Context, state *ResearchState) error {
	e.updateProgress(state, StepGenerateQuery, 0.1, map[string]interface{}{
		"status": "Generating search query...",
	})

	currentDate := time.Now().Format("January 2, 2006")
	result, err := e.LLM.Generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, queryWriterPrompt(currentDate, state.Topic)),
		llms.TextParts(llms.ChatMessageTypeHuman, "Generate a query for web search:"),
	}, true)
	if err != nil {
		return e.fail(state, "Query generation failed", err)
	}

	var parsed struct {
		Query     string `json:"query"`
		Rationale string `json:"rationale"`
	}
	searchQuery := ""
	rationale := ""
	if jsonErr := json.Unmarshal([]byte(result), &parsed); jsonErr == nil && parsed.Query != "" {
		searchQuery = parsed.Query
		rationale = parsed.Rationale
	} else {
		content := result
		if e.Config.StripThinkingTokens {
			content = StripThinkingTokens(content)
		}
		searchQuery = content
		rationale = "Generated query"
	}

	state.SearchQuery = searchQuery
	e.updateProgress(state, StepGenerateQuery, 1.0, map[string]interface{}{
		"status":    "Query generated successfully",
		"query":     searchQuery,
		"rationale": rationale,
	})
	return nil
}

// webResearch runs the current query against the search backend, folds the
// results into one formatted blob and tracks the source URLs.
func (e *Engine) webResearch(ctx context.Context, state *ResearchState) error {
	e.updateProgress(state, StepWebResearch, 0.1, map[string]interface{}{
		// The inclusive routing rule gives maxLoops+1 passes in total.
		"status": fmt.Sprintf("Searching web (loop %d/%d)...", state.LoopCount+1, state.MaxLoops+1),
		"query":  state.SearchQuery,
	})

	resp, err := e.Searcher.Search(ctx, state.SearchQuery)
	if err != nil {
		return e.fail(state, "Web research failed", err)
	}

	blob := DeduplicateAndFormatSources(resp, maxCharsPerSource, e.Config.FetchFullPage)

	var sources []string
	for _, r := range resp.Results {
		if r.URL != "" {
			sources = append(sources, r.URL)
		}
	}

	state.WebResearchResults = append(state.WebResearchResults, blob)
	state.SourcesGathered = append(state.SourcesGathered, sources...)
	state.LoopCount++

	e.updateProgress(state, StepWebResearch, 1.0, map[string]interface{}{
		"status":        fmt.Sprintf("Found %d sources", len(sources)),
		"sources_count": len(sources),
		"search_api":    e.Config.SearchAPI,
	})
	return nil
}

// summarizeSources folds the newest research blob into the running summary.
func (e *Engine) summarizeSources(ctx context.Context, state *ResearchState) error {
	e.updateProgress(state, StepSummarizeSources, 0.1, map[string]interface{}{
		"status": "Analyzing and summarizing sources...",
	})

	mostRecent := state.WebResearchResults[len(state.WebResearchResults)-1]

	var human string
	if state.RunningSummary != "" {
		human = fmt.Sprintf(
			"<Existing Summary>\n%s\n</Existing Summary>\n\n"+
				"<New Context>\n%s\n</New Context>\n"+
				"Update the Existing Summary with the New Context on this topic:\n"+
				"<User Input>\n%s\n</User Input>\n\n",
			state.RunningSummary, mostRecent, state.Topic)
	} else {
		human = fmt.Sprintf(
			"<Context>\n%s\n</Context>\n"+
				"Create a Summary using the Context on this topic:\n"+
				"<User Input>\n%s\n</User Input>\n\n",
			mostRecent, state.Topic)
	}

	result, err := e.LLM.Generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summarizerInstructions),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}, false)
	if err != nil {
		return e.fail(state, "Summarization failed", err)
	}

	if e.Config.StripThinkingTokens {
		result = StripThinkingTokens(result)
	}
	state.RunningSummary = result

	e.updateProgress(state, StepSummarizeSources, 1.0, map[string]interface{}{
		"status":         "Summary updated",
		"summary_length": len(result),
	})
	return nil
}

// reflectOnSummary asks the model for a knowledge gap and follow-up query.
// A malformed response falls back to a generic follow-up on the topic.
func (e *Engine) reflectOnSummary(ctx context.Context, state *ResearchState) error {
	e.updateProgress(state, StepReflectOnSummary, 0.1, map[string]interface{}{
		"status": "Identifying knowledge gaps...",
	})

	result, err := e.LLM.Generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, reflectionPrompt(state.Topic)),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(
			"Reflect on our existing knowledge:\n===\n%s\n===\n"+
				"And now identify a knowledge gap and generate a follow-up web search query:",
			state.RunningSummary)),
	}, true)
	if err != nil {
		return e.fail(state, "Reflection failed", err)
	}

	var parsed struct {
		KnowledgeGap  string `json:"knowledge_gap"`
		FollowUpQuery string `json:"follow_up_query"`
	}
	followUp := ""
	knowledgeGap := ""
	if jsonErr := json.Unmarshal([]byte(result), &parsed); jsonErr == nil {
		followUp = strings.TrimSpace(parsed.FollowUpQuery)
		knowledgeGap = parsed.KnowledgeGap
	}
	if followUp == "" {
		followUp = fmt.Sprintf("Tell me more about %s", state.Topic)
		if knowledgeGap == "" {
			knowledgeGap = "Additional information needed"
		}
	}

	state.SearchQuery = followUp
	e.updateProgress(state, StepReflectOnSummary, 1.0, map[string]interface{}{
		"status":          "Knowledge gap identified",
		"knowledge_gap":   knowledgeGap,
		"follow_up_query": followUp,
	})
	return nil
}

// finalizeSummary deduplicates the gathered sources, numbers them and appends
// them to the summary as the report's Sources section.
func (e *Engine) finalizeSummary(ctx context.Context, state *ResearchState) error {
	e.updateProgress(state, StepFinalizeSummary, 0.5, map[string]interface{}{
		"status": "Finalizing research report...",
	})

	unique := DeduplicateSources(state.SourcesGathered)

	var final string
	if len(unique) > 0 {
		numbered := make([]string, len(unique))
		for i, source := range unique {
			numbered[i] = fmt.Sprintf("%d. %s", i+1, source)
		}
		final = fmt.Sprintf("## Summary\n%s\n\n### Sources:\n%s", state.RunningSummary, strings.Join(numbered, "\n"))
	} else {
		final = fmt.Sprintf("## Summary\n%s", state.RunningSummary)
	}

	state.RunningSummary = final
	state.MarkCompleted()
	e.updateProgress(state, StepCompleted, 1.0, map[string]interface{}{
		"status":         "Research completed successfully",
		"total_sources":  len(unique),
		"summary_length": len(final),
	})
	return nil
}
