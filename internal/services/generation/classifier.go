package generation

import (
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

// categoryRule binds one keyword set to the classification it yields.
type categoryRule struct {
	keywords []string
	category domain.TestCategory
	priority domain.Priority
}

var (
	negativeKeywords = []string{
		"invalid", "wrong", "empty", "blank", "missing", "error",
		"rejected", "fail", "no ", "without", "not ", "expired",
		"duplicate", "exceed", "locked", "disabled", "below",
		"unregistered", "incorrect",
	}
	boundaryKeywords = []string{
		"minimum", "maximum", "exactly", "at least", "at most",
		"length", "size", "limit", "min", "max", "boundary",
	}
	edgeKeywords = []string{
		"special char", "sql injection", "xss", "whitespace",
		"emoji", "concurrent", "timeout", "network", "interrupt",
		"very long", "script", "injection",
	}
)

// categoryRules is evaluated in order, first hit wins. Edge and boundary
// phrasing frequently contains negative-sounding words ("invalid",
// "exceed"), so the more specific sets must be checked before the
// negative bucket.
var categoryRules = []categoryRule{
	{edgeKeywords, domain.CategoryEdgeCase, domain.PriorityMedium},
	{boundaryKeywords, domain.CategoryBoundary, domain.PriorityMedium},
	{negativeKeywords, domain.CategoryNegative, domain.PriorityHigh},
}

// Classify assigns a test category and priority to a free-text condition.
// Matching is case-insensitive substring search; a condition that hits no
// keyword set is Positive.
func Classify(condition string) (domain.TestCategory, domain.Priority) {
	cl := strings.ToLower(condition)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(cl, kw) {
				return rule.category, rule.priority
			}
		}
	}
	return domain.CategoryPositive, domain.PriorityHigh
}
