package healing

// FailureClass buckets a failed execution by the shape of its error
// message.
type FailureClass string

const (
	FailureNotFound   FailureClass = "not_found"
	FailureTimeout    FailureClass = "timeout"
	FailureAssertion  FailureClass = "assertion"
	FailureNavigation FailureClass = "navigation"
	FailureUnknown    FailureClass = "unknown"
)

// TargetKind is the control a failed step was addressing.
type TargetKind string

const (
	TargetInput    TargetKind = "input"
	TargetButton   TargetKind = "button"
	TargetSelect   TargetKind = "select"
	TargetCheckbox TargetKind = "checkbox"
)

// Diagnosis is the post-mortem for one failed or errored test case.
// Locator is the name or label the step could not resolve; Expected
// and Actual are set for assertion failures instead.
type Diagnosis struct {
	TCID       string       `json:"tc_id"`
	Class      FailureClass `json:"class"`
	Target     TargetKind   `json:"target,omitempty"`
	Locator    string       `json:"locator,omitempty"`
	Expected   string       `json:"expected,omitempty"`
	Actual     string       `json:"actual,omitempty"`
	Candidates []Candidate  `json:"candidates,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
}

// Candidate is a repair proposal drawn from the crawled form model.
type Candidate struct {
	Name  string  `json:"name"`
	Form  string  `json:"form,omitempty"`
	Page  string  `json:"page,omitempty"`
	Score float64 `json:"score"`
}
