package healing

import (
	"regexp"
	"strings"
)

// Pattern lists are checked in declaration order. The not-found
// fragments come first because they are the most specific; "not found
// in page" belongs to the text assertion and must not reach them.
var (
	notFoundPatterns = []string{
		"not found by name",
		"not found via text",
		"no select control found",
		"no checkbox found",
		"element not found",
		"waiting for selector",
		"waiting for locator",
	}
	assertionPatterns = []string{
		"url mismatch",
		"not found in page",
		"assertion",
		"expect(",
	}
	timeoutPatterns = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
	}
	navigationPatterns = []string{
		"net::err",
		"err_name",
		"err_connection",
		"navigation",
	}
)

// Classify buckets an error message by substring match against the
// known failure shapes. Matching is case-insensitive.
func Classify(msg string) FailureClass {
	lower := strings.ToLower(msg)
	for _, p := range notFoundPatterns {
		if strings.Contains(lower, p) {
			return FailureNotFound
		}
	}
	for _, p := range assertionPatterns {
		if strings.Contains(lower, p) {
			return FailureAssertion
		}
	}
	for _, p := range timeoutPatterns {
		if strings.Contains(lower, p) {
			return FailureTimeout
		}
	}
	for _, p := range navigationPatterns {
		if strings.Contains(lower, p) {
			return FailureNavigation
		}
	}
	return FailureUnknown
}

// Message shapes produced by the step interpreter and the browser
// driver. Anything else carries no extractable locator.
var (
	reInputNotFound  = regexp.MustCompile(`^Input '(.+)' not found by name, id, or placeholder$`)
	reButtonNotFound = regexp.MustCompile(`^Button '(.+)' not found via text or submit selector$`)
	reSelectNotFound = regexp.MustCompile(`^No select control found for option '(.+)'$`)
	reURLMismatch    = regexp.MustCompile(`^URL mismatch: '(.+)' not in '(.+)'$`)
	reTextMissing    = regexp.MustCompile(`^Text '(.+)' not found in page$`)
)

const checkboxNotFoundMsg = "No checkbox found on page"

type shape struct {
	target   TargetKind
	locator  string
	expected string
	actual   string
}

func matchShape(msg string) (shape, bool) {
	if m := reInputNotFound.FindStringSubmatch(msg); m != nil {
		return shape{target: TargetInput, locator: m[1]}, true
	}
	if m := reButtonNotFound.FindStringSubmatch(msg); m != nil {
		return shape{target: TargetButton, locator: m[1]}, true
	}
	if m := reSelectNotFound.FindStringSubmatch(msg); m != nil {
		return shape{target: TargetSelect, locator: m[1]}, true
	}
	if msg == checkboxNotFoundMsg {
		return shape{target: TargetCheckbox}, true
	}
	if m := reURLMismatch.FindStringSubmatch(msg); m != nil {
		return shape{expected: m[1], actual: m[2]}, true
	}
	if m := reTextMissing.FindStringSubmatch(msg); m != nil {
		return shape{expected: m[1]}, true
	}
	return shape{}, false
}
