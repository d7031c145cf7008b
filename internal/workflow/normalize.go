package workflow

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrNotObject     = errors.New("workflow payload is not a JSON object")
	ErrMissingSteps  = errors.New("workflow payload has no steps array")
	ErrMissingResult = errors.New("verification payload has no isComplete flag")
)

const (
	placeholderTitle       = "System Busy or Confused"
	placeholderDescription = "We couldn't generate a reliable workflow right now. Generation is temporarily degraded, please try again with a clearer goal."
	defaultFeedback        = "Verification result received."
)

// Coerce converts an untyped decoded value into a Workflow. requestedGoal is
// used when the payload has no usable goal.
func Coerce(value any, requestedGoal string, rng Rand) (Workflow, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return Workflow{}, fmt.Errorf("%w: got %T", ErrNotObject, value)
	}
	rawSteps, ok := obj["steps"].([]any)
	if !ok {
		return Workflow{}, ErrMissingSteps
	}

	steps := make([]Step, 0, len(rawSteps))
	for i, raw := range rawSteps {
		stepObj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		steps = append(steps, coerceStep(stepObj, i+1))
	}

	goal := strings.TrimSpace(readString(obj, "goal"))
	if goal == "" {
		goal = strings.TrimSpace(requestedGoal)
	}

	return Workflow{
		Goal:            goal,
		ConfidenceScore: EnforceConfidence(readInt(obj, "confidenceScore"), rng),
		LocationContext: coerceLocation(obj["locationContext"]),
		Steps:           steps,
	}, nil
}

// Normalize never fails: payloads Coerce rejects become the placeholder.
func Normalize(value any, requestedGoal string, rng Rand) Workflow {
	wf, err := Coerce(value, requestedGoal, rng)
	if err != nil {
		return Placeholder(requestedGoal, rng)
	}
	return wf
}

// Placeholder is the single-step workflow returned when generation degrades.
func Placeholder(goal string, rng Rand) Workflow {
	return Workflow{
		Goal:            strings.TrimSpace(goal),
		ConfidenceScore: EnforceConfidence(nil, rng),
		Steps: []Step{
			{
				StepID:      1,
				Title:       placeholderTitle,
				Description: placeholderDescription,
				SubSteps: []string{
					"Check your internet connection",
					"Try rephrasing your goal",
					"Contact support if the issue persists",
				},
				Documents: []string{},
				Source:    NoSource,
			},
		},
	}
}

// IsPlaceholder reports whether wf is the degraded single-step result.
func IsPlaceholder(wf Workflow) bool {
	return len(wf.Steps) == 1 && wf.Steps[0].Title == placeholderTitle && wf.Steps[0].Source == NoSource
}

func coerceStep(obj map[string]any, position int) Step {
	step := Step{
		StepID:      position,
		Title:       readString(obj, "title"),
		Description: readString(obj, "description"),
		SubSteps:    readStrings(obj, "subSteps"),
		Documents:   readStrings(obj, "documents"),
		Source:      readString(obj, "source"),
	}
	if id := readInt(obj, "stepId"); id != nil {
		step.StepID = *id
	}
	if strings.TrimSpace(step.Source) == "" {
		step.Source = NoSource
	}
	return step
}

func coerceLocation(value any) *LocationContext {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	loc := &LocationContext{
		Origin:      readNullableString(obj, "origin"),
		Destination: readNullableString(obj, "destination"),
		Query:       readNullableString(obj, "query"),
	}
	if flag, ok := obj["isLocationBased"].(bool); ok {
		loc.IsLocationBased = flag
	}
	return loc
}

// CoerceVerification converts an untyped decoded value into a Verification.
func CoerceVerification(value any) (Verification, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return Verification{}, fmt.Errorf("%w: got %T", ErrNotObject, value)
	}
	complete, ok := obj["isComplete"].(bool)
	if !ok {
		return Verification{}, ErrMissingResult
	}
	feedback := strings.TrimSpace(readString(obj, "feedback"))
	if feedback == "" {
		feedback = defaultFeedback
	}
	return Verification{IsComplete: complete, Feedback: feedback}, nil
}

// HeuristicVerification is the last-resort judgement used when no provider
// answers: any proof longer than ten characters counts as complete.
func HeuristicVerification(proof string) Verification {
	if len([]rune(strings.TrimSpace(proof))) > 10 {
		return Verification{IsComplete: true, Feedback: "Excellent! That looks correct."}
	}
	return Verification{IsComplete: false, Feedback: "Please provide more details."}
}

func readString(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func readNullableString(obj map[string]any, key string) *string {
	v, ok := obj[key].(string)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func readStrings(obj map[string]any, key string) []string {
	values := []string{}
	raw, ok := obj[key].([]any)
	if !ok {
		return values
	}
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

func readInt(obj map[string]any, key string) *int {
	var f float64
	switch v := obj[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}
