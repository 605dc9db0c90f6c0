package healing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want FailureClass
	}{
		{"input not found", "Input 'email' not found by name, id, or placeholder", FailureNotFound},
		{"button not found", "Button 'Login' not found via text or submit selector", FailureNotFound},
		{"select not found", "No select control found for option 'Canada'", FailureNotFound},
		{"checkbox not found", "No checkbox found on page", FailureNotFound},
		{"url mismatch", "URL mismatch: '/dashboard' not in 'https://app.example.com/login'", FailureAssertion},
		{"text assertion", "Text 'Welcome back' not found in page", FailureAssertion},
		{"bare timeout", "Timeout 30000ms exceeded.", FailureTimeout},
		{"context deadline", "context deadline exceeded", FailureTimeout},
		{"selector wait beats timeout", "Timeout 30000ms exceeded while waiting for selector '#login'", FailureNotFound},
		{"dns failure", "playwright: net::ERR_NAME_NOT_RESOLVED", FailureNavigation},
		{"connection refused", "net::ERR_CONNECTION_REFUSED at http://localhost:9999", FailureNavigation},
		{"unrecognized", "it broke somehow", FailureUnknown},
		{"empty", "", FailureUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.msg))
		})
	}
}

func TestMatchShape(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want shape
	}{
		{
			"input",
			"Input 'email' not found by name, id, or placeholder",
			shape{target: TargetInput, locator: "email"},
		},
		{
			"button",
			"Button 'Sign In' not found via text or submit selector",
			shape{target: TargetButton, locator: "Sign In"},
		},
		{
			"select",
			"No select control found for option 'Canada'",
			shape{target: TargetSelect, locator: "Canada"},
		},
		{
			"checkbox",
			"No checkbox found on page",
			shape{target: TargetCheckbox},
		},
		{
			"url mismatch",
			"URL mismatch: '/dashboard' not in 'https://app.example.com/login'",
			shape{expected: "/dashboard", actual: "https://app.example.com/login"},
		},
		{
			"text missing",
			"Text 'Welcome back' not found in page",
			shape{expected: "Welcome back"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := matchShape(tc.msg)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchShape_UnknownMessage(t *testing.T) {
	_, ok := matchShape("some random error")
	assert.False(t, ok)

	_, ok = matchShape("net::ERR_NAME_NOT_RESOLVED")
	assert.False(t, ok)
}
