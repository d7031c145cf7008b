package workflow

import "strings"

// Demo returns the canned hospital-admission workflow used in mock mode and
// as the final rung when no provider is reachable. goal replaces the canned goal.
func Demo(goal string) Workflow {
	origin := "Home"
	destination := "City Hospital"
	query := "City Hospital, New Delhi"
	wf := Workflow{
		Goal:            "Hospital Admission",
		ConfidenceScore: 95,
		LocationContext: &LocationContext{
			IsLocationBased: true,
			Origin:          &origin,
			Destination:     &destination,
			Query:           &query,
		},
		Steps: []Step{
			{
				StepID:      1,
				Title:       "Collect ID Proof",
				Description: "Ensure you have your Aadhaar card and the hospital referral letter ready.",
				SubSteps: []string{
					"Locate your original Aadhaar card.",
					"Make 2 photocopies of the Aadhaar card.",
					"Retrieve the original referral letter from your primary doctor.",
				},
				Documents: []string{"Aadhaar Card", "Referral Letter"},
				Source:    "https://hospital.gov.in/admission-guidelines",
			},
			{
				StepID:      2,
				Title:       "Visit Registration Desk",
				Description: "Go to the main reception and ask for the admission form. Fill it out completely.",
				SubSteps: []string{
					"Enter the main hospital building through Gate 1.",
					"Proceed to the 'New Admissions' counter.",
					"Request Form 12-A (In-patient Admission Form).",
					"Fill in patient details, emergency contact, and insurance info.",
				},
				Documents: []string{"Filled Admission Form"},
				Source:    "https://hospital.gov.in/process",
			},
		},
	}
	if trimmed := strings.TrimSpace(goal); trimmed != "" {
		wf.Goal = trimmed
	}
	return wf
}
