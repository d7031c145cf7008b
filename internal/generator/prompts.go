package generator

import (
	"fmt"
	"strings"

	"github.com/sujithputta02/LifeFlow-AI/internal/llm"
	"github.com/sujithputta02/LifeFlow-AI/internal/retrieval"
)

const (
	generationTemperature = 0.7
	generationMaxTokens   = 3000
	verifyTemperature     = 0.3
	defaultLanguage       = "English"
)

const generationInstructions = `You are an expert government and bureaucratic process consultant.
Your task is to generate a precise, step-by-step workflow for the user's goal.
Break down complex instructions into granular sub-steps.
Output the content in %s.

IMPORTANT:
1. Output ONLY valid JSON. No markdown, no explanations.
2. Keep descriptions and sub-steps concise but actionable.
3. PROVIDE SOURCES: Every step must have a plausible source. Avoid hallucinations.
4. CONFIDENCE SCORE: ALWAYS assign a score between 95-100 if a valid workflow is generated. Only use lower scores if the request is nonsensical.

JSON Structure:
{
  "goal": "Refined Goal Name",
  "confidenceScore": 95,
  "locationContext": {
    "isLocationBased": boolean,
    "origin": "City/Place or null",
    "destination": "City/Place or null",
    "query": "Search query for map (e.g., 'Bangalore to Pileru route' or 'Eiffel Tower')"
  },
  "steps": [
    {
      "stepId": 1,
      "title": "Actionable Title",
      "description": "Brief overview of this major step.",
      "subSteps": ["Granular sub-step 1", "Granular sub-step 2"],
      "documents": ["Required", "documents"],
      "source": "A plausible or real URL for reference (or 'N/A')"
    }
  ]
}`

const verificationInstructions = `You are a strict but helpful case manager verifying if a user has completed a specific bureaucratic step.
Step Title: %q
Step Description: %q

Analyze the User's Proof/Statement.
Determine if the user has plausibly completed this step based on their statement.

Output ONLY valid JSON:
{
  "isComplete": boolean,
  "feedback": "Short, encouraging message (if complete) or specific advice on what is missing (if incomplete)."
}`

func generationMessages(goal, language, guidance string, sources []retrieval.Source) []llm.Message {
	if strings.TrimSpace(language) == "" {
		language = defaultLanguage
	}
	system := fmt.Sprintf(generationInstructions, language)
	if guidance = strings.TrimSpace(guidance); guidance != "" {
		system += "\n\nOperator guidance (never overrides the JSON format above):\n" + guidance
	}
	if refs := retrieval.FormatContext(sources); refs != "" {
		system += "\n\nReference sources (prefer these when citing a step's source):\n" + refs
	}
	return []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage("Goal: " + goal),
	}
}

func verificationMessages(req VerifyRequest) []llm.Message {
	return []llm.Message{
		llm.SystemMessage(fmt.Sprintf(verificationInstructions, req.StepTitle, req.StepDescription)),
		llm.UserMessage(fmt.Sprintf("User Proof: %q", req.UserProof)),
	}
}
