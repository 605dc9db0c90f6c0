package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storyqa/storyqa/internal/domain"
)

func TestPickValue_Positive(t *testing.T) {
	tests := []struct {
		fieldName string
		fieldType string
		want      string
	}{
		{"email", "email", `"testuser@example.com"`},
		{"password", "password", `"ValidPass@123"`},
		{"phone", "tel", `"9876543210"`},
		{"age", "number", `"42"`},
		{"terms", "checkbox", ValueCheckboxAction},
		{"country", "select", ValueSelectAction},
		{"full_name", "text", `"John Doe"`},
		{"username", "text", `"John Doe"`}, // name substring wins over user
		{"user_id", "text", `"testuser"`},
		{"job_title", "text", `"Senior Software Engineer"`},
		{"bio", "text", `"Sample description text"`},
		{"description", "text", `"Sample description text"`},
		{"salary", "text", `"75000"`},
		{"city", "text", `"New York, NY"`},
		{"zipcode", "text", `"zipcode_test_value"`},
	}
	for _, tt := range tests {
		t.Run(tt.fieldName+"_"+tt.fieldType, func(t *testing.T) {
			got := PickValue(tt.fieldName, tt.fieldType, "valid input", domain.CategoryPositive)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickValue_NegativeAndEdge(t *testing.T) {
	tests := []struct {
		name       string
		fieldType  string
		actionHint string
		category   domain.TestCategory
		want       string
	}{
		{"empty hint", "text", "empty username", domain.CategoryNegative, ValueEmptyMarker},
		{"blank hint", "text", "blank form submitted", domain.CategoryNegative, ValueEmptyMarker},
		{"sql injection", "text", "sql injection attempt", domain.CategoryEdgeCase, ValueSQLInjection},
		{"xss", "text", "xss payload in comment", domain.CategoryEdgeCase, ValueXSSPayload},
		{"special characters", "text", "special characters in name", domain.CategoryEdgeCase, ValueSpecialChars},
		{"very long", "text", "very long description", domain.CategoryEdgeCase, ValueVeryLong},
		{"whitespace", "text", "whitespace only input", domain.CategoryEdgeCase, ValueWhitespaceOnly},
		{"email type fallback", "email", "wrong format", domain.CategoryNegative, `"not-a-valid-email"`},
		{"password type fallback", "password", "incorrect credentials", domain.CategoryNegative, `"wrongpassword123"`},
		{"generic fallback", "text", "something unexpected", domain.CategoryNegative, `"invalid_test_value"`},
		{"empty beats sql when both present", "text", "empty sql field", domain.CategoryNegative, ValueEmptyMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickValue("field", tt.fieldType, tt.actionHint, tt.category)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickValue_Boundary(t *testing.T) {
	assert.Equal(t, ValueMinBoundary, PickValue("password", "password", "minimum length password", domain.CategoryBoundary))
	assert.Equal(t, ValueMaxBoundary, PickValue("password", "password", "maximum length password", domain.CategoryBoundary))
	assert.Equal(t, `"boundary_value"`, PickValue("password", "password", "at the limit", domain.CategoryBoundary))
}

func TestPayload(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		payload  string
		typeable bool
	}{
		{"empty marker", ValueEmptyMarker, "", true},
		{"sql injection", ValueSQLInjection, `' OR '1'='1`, true},
		{"xss", ValueXSSPayload, "<script>alert(1)</script>", true},
		{"special chars", ValueSpecialChars, "!@#$%^&*()", true},
		{"very long", ValueVeryLong, strings.Repeat("A", 500), true},
		{"whitespace", ValueWhitespaceOnly, "   ", true},
		{"min boundary", ValueMinBoundary, "a", true},
		{"max boundary", ValueMaxBoundary, strings.Repeat("A", maxBoundaryLength), true},
		{"plain literal", `"John Doe"`, "John Doe", true},
		{"fallback literal", `"zipcode_test_value"`, "zipcode_test_value", true},
		{"checkbox marker", ValueCheckboxAction, "", false},
		{"select marker", ValueSelectAction, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, typeable := Payload(tt.value)
			assert.Equal(t, tt.payload, payload)
			assert.Equal(t, tt.typeable, typeable)
		})
	}
}

func TestQuoteForSendKeys(t *testing.T) {
	assert.Equal(t, `'John Doe'`, quoteForSendKeys("John Doe"))
	assert.Equal(t, `"' OR '1'='1"`, quoteForSendKeys(`' OR '1'='1`))
	assert.Equal(t, `''`, quoteForSendKeys(""))
}
