package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleAnalyst_DetectFeature(t *testing.T) {
	tests := []struct {
		name    string
		story   string
		feature string
	}{
		{"login", "As a user, I want to log in with my email and password", "Login"},
		{"registration", "As a visitor, I want to sign up for an account", "Registration"},
		{"search", "As a shopper, I want to search for products by category", "Search"},
		{"checkout", "As a shopper, I want to purchase the items in my basket", "Checkout"},
		{"password reset", "As a user, I want to use the forgot password link", "Password Reset"},
		{"job application", "As a candidate, I want to apply for an open position", "Job Application"},
		{"job posting", "As a recruiter, I want to post a job for my team", "Job Posting"},
		{"profile", "As a user, I want to update profile details", "Profile"},
		{"upload", "As a candidate, I want to upload my resume", "Upload"},
		{"logout", "As a user, I want to sign out from all devices", "Logout"},
		{"booking", "As a traveler, I want to book a hotel room", "Booking"},
		{"cart", "As a shopper, I want to add to cart from the listing page", "Cart"},
		{"messaging", "As a user, I want to send message to support", "Messaging"},
		{"notification", "As a user, I want to get a notification when someone replies", "Notification"},
		{"admin panel", "As an admin, I want to manage users and moderate posts", "Admin Panel"},
	}
	analyst := NewRuleAnalyst()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := analyst.Analyze(tt.story)
			assert.Equal(t, tt.feature, analysis.Feature)
		})
	}
}

// Rules are ordered: "export" must win over the later "admin" keyword.
func TestRuleAnalyst_DetectFeature_OrderMatters(t *testing.T) {
	analysis := NewRuleAnalyst().Analyze("As an admin, I want to export the monthly report")
	assert.Equal(t, "Download", analysis.Feature)
}

func TestRuleAnalyst_DetectFeature_Fallback(t *testing.T) {
	analyst := NewRuleAnalyst()

	// No keyword hit: the "want to <phrase>" pattern names the feature.
	analysis := analyst.Analyze("I want to track my expenses so that I stay on budget")
	assert.Equal(t, "Track My Expenses", analysis.Feature)

	// Nothing recognizable at all.
	analysis = analyst.Analyze("Nothing here matches.")
	assert.Equal(t, "Feature", analysis.Feature)
}

func TestRuleAnalyst_DetectRole(t *testing.T) {
	tests := []struct {
		name  string
		story string
		role  string
	}{
		{"as a with comma", "As a recruiter, I want to post a job", "recruiter"},
		{"as an", "As an administrator, I want to manage users", "administrator"},
		{"no comma", "As a job seeker I want to apply for jobs", "job seeker"},
		{"keyword fallback", "Candidates must be able to submit applications", "candidate"},
		{"default", "I want to search for products", "user"},
	}
	analyst := NewRuleAnalyst()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := analyst.Analyze(tt.story)
			assert.Equal(t, tt.role, analysis.UserRole)
		})
	}
}

func TestRuleAnalyst_Conditions(t *testing.T) {
	analyst := NewRuleAnalyst()

	login := analyst.Analyze("As a user, I want to log in with my email and password")
	require.Len(t, login.Conditions, 20)
	assert.Equal(t, "valid email and valid password → successful login", login.Conditions[0])
	assert.Contains(t, login.Conditions, "password field masks characters")

	search := analyst.Analyze("As a shopper, I want to search for products")
	assert.Len(t, search.Conditions, 14)
}

func TestRuleAnalyst_GenericConditions(t *testing.T) {
	analysis := NewRuleAnalyst().Analyze("I want to track my expenses so that I stay on budget")
	require.Len(t, analysis.Conditions, 13)
	assert.Equal(t, "all required fields valid → Track My Expenses successful", analysis.Conditions[0])
	assert.Equal(t, "unauthenticated user attempts Track My Expenses → redirected to login", analysis.Conditions[11])
	assert.Equal(t, "success confirmation shown after Track My Expenses", analysis.Conditions[12])
}

// The bank is matched as a substring of the feature, so model-phrased
// features like "User Login Flow" still get the curated set.
func TestConditionsFor_SubstringMatch(t *testing.T) {
	conditions := conditionsFor("User Login Flow")
	require.Len(t, conditions, 20)
	assert.Equal(t, "valid email and valid password → successful login", conditions[0])
}

func TestConditionsFor_ReturnsCopy(t *testing.T) {
	first := conditionsFor("Login")
	first[0] = "mutated"
	second := conditionsFor("Login")
	assert.Equal(t, "valid email and valid password → successful login", second[0])
}

func TestRuleAnalyst_PreservesOriginalStory(t *testing.T) {
	story := "As a user, I want to log in"
	analysis := NewRuleAnalyst().Analyze(story)
	assert.Equal(t, story, analysis.OriginalStory)
}
