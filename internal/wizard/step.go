// internal/wizard/step.go
package wizard

import "fmt"

// Step is the wizard position. Steps only move forward through a validated
// submission and backward through Back or Edit.
type Step int

const (
	StepPersonalInfo Step = iota
	StepEmployment
	StepLoanDetails
	StepDocuments
	StepReview
)

// StepCount is the number of wizard steps.
const StepCount = 5

var stepNames = [StepCount]string{"personal_info", "employment", "loan_details", "documents", "review"}

func (s Step) Valid() bool { return s >= StepPersonalInfo && s <= StepReview }

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep accepts either the numeric index or the step name.
func ParseStep(v string) (Step, error) {
	for i, name := range stepNames {
		if v == name || v == fmt.Sprint(i) {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown wizard step %q", v)
}
