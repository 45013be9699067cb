package eligibility

import "fmt"

// Result is the outcome of the native-capacity check performed before a
// lease is created. An ineligible result is a business rejection, not an
// error.
type Result struct {
	Eligible  bool   `json:"eligible"`
	Available int64  `json:"available"`
	Required  int64  `json:"required"`
	Reason    string `json:"reason,omitempty"`
}

// Eligible returns a positive result for an account holding available
// units against a required threshold.
func Eligible(available, required int64) Result {
	return Result{Eligible: true, Available: available, Required: required}
}

// Ineligible returns a rejection with a human-readable reason.
func Ineligible(available, required int64) Result {
	return Result{
		Eligible:  false,
		Available: available,
		Required:  required,
		Reason:    fmt.Sprintf("account holds %d native capacity, threshold is %d", available, required),
	}
}
