package domain

// StoryAnalysis is the structured interpretation of a user story.
type StoryAnalysis struct {
	Feature       string   `json:"feature"`
	UserRole      string   `json:"user_role"`
	Conditions    []string `json:"conditions"`
	OriginalStory string   `json:"original_story,omitempty"`
}

// Normalize fills defaults so downstream consumers never see empty
// feature/role or a nil condition list.
func (a *StoryAnalysis) Normalize() {
	if a.Feature == "" {
		a.Feature = "Feature"
	}
	if a.UserRole == "" {
		a.UserRole = "user"
	}
	if a.Conditions == nil {
		a.Conditions = []string{}
	}
}

// SuiteCase is a classic standalone test case produced from a story,
// without page mapping.
type SuiteCase struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Type           TestCategory `json:"type"`
	Priority       Priority     `json:"priority"`
	Preconditions  []string     `json:"preconditions"`
	Steps          []string     `json:"steps"`
	ExpectedResult string       `json:"expected_result"`
}

// TestSuite groups suite cases for one analyzed story.
type TestSuite struct {
	Feature   string      `json:"feature"`
	UserRole  string      `json:"user_role"`
	TestCases []SuiteCase `json:"test_cases"`
}

// Total returns the number of cases in the suite.
func (s *TestSuite) Total() int {
	return len(s.TestCases)
}
