package generation

import (
	"fmt"
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

// Annotated value literals. The manual step shows these verbatim; the
// executable payload is derived from them by Payload below.
const (
	ValueEmptyMarker    = `""  (leave empty)`
	ValueSQLInjection   = `"' OR '1'='1"  (SQL injection payload)`
	ValueXSSPayload     = `"<script>alert(1)</script>"`
	ValueSpecialChars   = `"!@#$%^&*()"`
	ValueVeryLong       = `"A" * 500  (500-character string)`
	ValueWhitespaceOnly = `"   "  (whitespace only)`
	ValueMinBoundary    = `"a"  (1 character — minimum boundary)`
	ValueMaxBoundary    = `"A" * max_allowed  (at max boundary)`
	ValueCheckboxAction = "check the checkbox"
	ValueSelectAction   = "select a valid option from dropdown"
)

// maxBoundaryLength stands in for a field's unknown real limit when the
// max-boundary marker is expanded into a typed payload.
const maxBoundaryLength = 100

// hintRule maps action-hint phrases to the value they select.
type hintRule struct {
	phrases []string
	value   string
}

// Adversarial rules are evaluated in order; later rules are unreachable
// once an earlier phrase matches.
var adversarialRules = []hintRule{
	{[]string{"empty", "blank", "missing"}, ValueEmptyMarker},
	{[]string{"sql", "injection"}, ValueSQLInjection},
	{[]string{"xss", "script"}, ValueXSSPayload},
	{[]string{"special"}, ValueSpecialChars},
	{[]string{"very long", "exceed"}, ValueVeryLong},
	{[]string{"whitespace"}, ValueWhitespaceOnly},
}

var boundaryRules = []hintRule{
	{[]string{"minimum", "min"}, ValueMinBoundary},
	{[]string{"maximum", "max"}, ValueMaxBoundary},
}

// PickValue chooses the annotated test value for one field given the
// condition's action hint and category.
func PickValue(fieldName, fieldType, actionHint string, category domain.TestCategory) string {
	fl := strings.ToLower(fieldName)
	al := strings.ToLower(actionHint)

	switch category {
	case domain.CategoryNegative, domain.CategoryEdgeCase:
		for _, rule := range adversarialRules {
			for _, p := range rule.phrases {
				if strings.Contains(al, p) {
					return rule.value
				}
			}
		}
		switch fieldType {
		case "email":
			return `"not-a-valid-email"`
		case "password":
			return `"wrongpassword123"`
		}
		return `"invalid_test_value"`

	case domain.CategoryBoundary:
		for _, rule := range boundaryRules {
			for _, p := range rule.phrases {
				if strings.Contains(al, p) {
					return rule.value
				}
			}
		}
		return `"boundary_value"`
	}

	// Positive: realistic literals, dispatched on type first.
	switch fieldType {
	case "email":
		return `"testuser@example.com"`
	case "password":
		return `"ValidPass@123"`
	case "tel":
		return `"9876543210"`
	case "number":
		return `"42"`
	case "checkbox":
		return ValueCheckboxAction
	case "select":
		return ValueSelectAction
	}

	// Then on field-name substrings. "name" is checked before "user", so
	// a username field reads as a name field.
	switch {
	case strings.Contains(fl, "name"):
		return `"John Doe"`
	case strings.Contains(fl, "user"):
		return `"testuser"`
	case strings.Contains(fl, "title"):
		return `"Senior Software Engineer"`
	case strings.Contains(fl, "desc"), strings.Contains(fl, "bio"):
		return `"Sample description text"`
	case strings.Contains(fl, "salary"), strings.Contains(fl, "pay"):
		return `"75000"`
	case strings.Contains(fl, "location"), strings.Contains(fl, "city"):
		return `"New York, NY"`
	}
	return fmt.Sprintf(`"%s_test_value"`, fieldName)
}

// Payload converts an annotated value literal into the exact string an
// executor types into the field. The second return is false for markers
// that describe an interaction rather than typed text.
func Payload(value string) (string, bool) {
	switch value {
	case ValueEmptyMarker:
		return "", true
	case ValueVeryLong:
		return strings.Repeat("A", 500), true
	case ValueMaxBoundary:
		return strings.Repeat("A", maxBoundaryLength), true
	case ValueCheckboxAction, ValueSelectAction:
		return "", false
	}

	// Drop the trailing annotation, then the decorative quotes.
	v := value
	if i := strings.Index(v, `"  (`); i >= 0 {
		v = v[:i+1]
	}
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
	}
	return v, true
}

// quoteForSendKeys wraps a payload in whichever quote style avoids the
// payload's own characters, so step parsing always round-trips.
func quoteForSendKeys(payload string) string {
	if strings.Contains(payload, "'") {
		return `"` + payload + `"`
	}
	return "'" + payload + "'"
}
