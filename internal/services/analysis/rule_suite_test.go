package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyqa/storyqa/internal/domain"
)

func TestRuleSuiteBuilder_Build(t *testing.T) {
	analysis := &domain.StoryAnalysis{
		Feature:  "Login",
		UserRole: "user",
		Conditions: []string{
			"valid email and valid password → successful login",
			"empty password field → validation error",
			"SQL injection in email field → safely handled",
			"password at minimum allowed length → accepted",
		},
	}

	suite := NewRuleSuiteBuilder().Build(analysis)
	assert.Equal(t, "Login", suite.Feature)
	assert.Equal(t, "user", suite.UserRole)
	require.Equal(t, 4, suite.Total())

	positive := suite.TestCases[0]
	assert.Equal(t, "TC-001", positive.ID)
	assert.Equal(t, "Login: valid email and valid password", positive.Title)
	assert.Equal(t, domain.CategoryPositive, positive.Type)
	assert.Equal(t, domain.PriorityHigh, positive.Priority)
	assert.Equal(t, "Successful login", positive.ExpectedResult)
	require.Len(t, positive.Steps, 4)
	assert.Equal(t, "Enter the test email in the email field", positive.Steps[1])
	assert.Contains(t, positive.Preconditions, "A registered test account exists with known credentials")

	negative := suite.TestCases[1]
	assert.Equal(t, "TC-002", negative.ID)
	assert.Equal(t, domain.CategoryNegative, negative.Type)
	assert.Equal(t, domain.PriorityHigh, negative.Priority)
	assert.Equal(t, "Leave the password field empty", negative.Steps[2])

	edge := suite.TestCases[2]
	assert.Equal(t, domain.CategoryEdgeCase, edge.Type)
	assert.Equal(t, domain.PriorityMedium, edge.Priority)
	assert.Equal(t, "Enter SQL injection payload in email field (e.g. ' OR '1'='1)", edge.Steps[1])

	boundary := suite.TestCases[3]
	assert.Equal(t, domain.CategoryBoundary, boundary.Type)
	assert.Equal(t, domain.PriorityMedium, boundary.Priority)
	assert.Equal(t, "Accepted", boundary.ExpectedResult)
}

func TestSuitePreconditions(t *testing.T) {
	tests := []struct {
		feature string
		extra   string
	}{
		{"Login", "A registered test account exists with known credentials"},
		{"Password Reset", "A registered test account exists with known credentials"},
		{"Job Application", "Required items/services are available"},
		{"Job Posting", "User has recruiter/admin privileges and is logged in"},
		{"Profile", "User is logged in"},
		{"Search", "Database contains relevant test data"},
	}
	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			pre := suitePreconditions(tt.feature, "user")
			assert.Equal(t, "Application is running and accessible", pre[0])
			assert.Equal(t, "User has 'user' role", pre[1])
			assert.Contains(t, pre, tt.extra)
		})
	}

	// Features outside the table keep just the base pair.
	assert.Len(t, suitePreconditions("Telemetry", "admin"), 2)
}

func TestSuiteSteps_JobFlows(t *testing.T) {
	steps := suiteSteps("empty name field", "Job Application")
	require.Len(t, steps, 4)
	assert.Equal(t, "Log in as a job application user", steps[0])
	assert.Equal(t, "Navigate to the Job Application page", steps[1])
	assert.Equal(t, "Fill in the form as per condition: 'empty name field'", steps[2])
	assert.Equal(t, "Click the 'Submit' / 'Publish' button", steps[3])
}

func TestSuiteSteps_Generic(t *testing.T) {
	steps := suiteSteps("keyword with no matches", "Search")
	require.Len(t, steps, 4)
	assert.Equal(t, "Navigate to the Search page", steps[0])
	assert.Equal(t, "Perform the action: 'keyword with no matches'", steps[1])
	assert.Equal(t, "Observe the system response", steps[3])
}

func TestSuiteExpected_Fallbacks(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		category  domain.TestCategory
		want      string
	}{
		{"positive without outcome", "password field masks characters", domain.CategoryPositive,
			"Login operation completes successfully; confirmation is shown."},
		{"empty field", "empty email field", domain.CategoryNegative,
			"Inline validation error is shown; form is NOT submitted."},
		{"invalid input", "invalid date supplied", domain.CategoryNegative,
			"Appropriate error message is displayed; action is rejected."},
		{"injection", "sql injection in comment box", domain.CategoryEdgeCase,
			"Input is safely sanitised; no script executes; no DB error exposed."},
		{"over limit", "exceeding the allowed description", domain.CategoryNegative,
			"Input is rejected with a message indicating the limit was exceeded."},
		{"locked account", "locked account blocks entry", domain.CategoryNegative,
			"Login is rejected; informative account-status message is shown."},
		{"no keyword", "user not registered", domain.CategoryNegative,
			"System responds correctly as per the specification for this condition."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suiteExpected("", tt.category, "Login", tt.condition)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleSuiteBuilder_FromRuleAnalysis(t *testing.T) {
	analysis := NewRuleAnalyst().Analyze("As a user, I want to log in with my email and password")
	suite := NewRuleSuiteBuilder().Build(analysis)

	require.Equal(t, 20, suite.Total())
	for i, tc := range suite.TestCases {
		assert.Equal(t, fmt.Sprintf("TC-%03d", i+1), tc.ID)
		assert.True(t, tc.Type.IsValid())
		assert.True(t, tc.Priority.IsValid())
		assert.NotEmpty(t, tc.ExpectedResult)
	}

	lockout := suite.TestCases[13]
	assert.Equal(t, "Login: multiple failed attempts (5+)", lockout.Title)
	assert.Equal(t, domain.CategoryNegative, lockout.Type)
	assert.Equal(t, "Account locked or CAPTCHA triggered", lockout.ExpectedResult)
}
