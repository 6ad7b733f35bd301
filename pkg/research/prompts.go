package research

import "fmt"

const queryWriterInstructions = `Your goal is to generate a targeted web search query.

<CONTEXT>
Current date: %s
Please ensure your queries account for the most current information available as of this date.
</CONTEXT>

<TOPIC>
%s
</TOPIC>

<FORMAT>
Format your response as a JSON object with ALL three of these exact keys:
   - "query": The actual search query string
   - "rationale": Brief explanation of why this query is relevant
</FORMAT>

<EXAMPLE>
Example output:
{
    "query": "machine learning transformer architecture explained",
    "rationale": "Understanding the fundamental structure of transformer models"
}
</EXAMPLE>

Provide your response in JSON format:`

const summarizerInstructions = `<GOAL>
Generate a high-quality summary of the provided context.
</GOAL>

<REQUIREMENTS>
When creating a NEW summary:
1. Highlight the most relevant information related to the user topic from the search results
2. Ensure a coherent flow of information

When EXTENDING an existing summary:
1. Read the existing summary and new search results carefully
2. Compare the new information with the existing summary
3. For each piece of new information:
    a. If it's related to existing points, integrate it into the relevant paragraph
    b. If it's entirely new but relevant, add a new paragraph with a smooth transition
    c. If it's not relevant to the user topic, skip it
4. Ensure all additions are relevant to the user's topic
5. Verify that your final output differs from the input summary
</REQUIREMENTS>

<FORMATTING>
- Start directly with the updated summary, without preamble or titles. Do not use XML tags in the output.
</FORMATTING>`

const reflectionInstructions = `You are an expert research assistant analyzing a summary about %s.

<GOAL>
1. Identify knowledge gaps or areas that need deeper exploration
2. Generate a follow-up question that would help expand your understanding
3. Focus on technical details, implementation specifics, or emerging trends that weren't fully covered
</GOAL>

<REQUIREMENTS>
Ensure the follow-up question is self-contained and includes necessary context for web search.
</REQUIREMENTS>

<FORMAT>
Format your response as a JSON object with these exact keys:
- "knowledge_gap": Describe what information is missing or needs clarification
- "follow_up_query": Write a specific question to address this gap
</FORMAT>

<EXAMPLE>
Example output:
{
    "knowledge_gap": "The summary lacks information about performance metrics and benchmarks",
    "follow_up_query": "What are typical performance benchmarks and metrics used to evaluate this technology?"
}
</EXAMPLE>

Provide your analysis in JSON format:`

func queryWriterPrompt(currentDate, topic string) string {
	return fmt.Sprintf(queryWriterInstructions, currentDate, topic)
}

func reflectionPrompt(topic string) string {
	return fmt.Sprintf(reflectionInstructions, topic)
}
