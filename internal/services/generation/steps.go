package generation

import (
	"fmt"
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

// ConditionArrow separates a condition's action half from its expected
// outcome, e.g. "invalid password → error shown".
const ConditionArrow = "→"

// SplitCondition divides a condition into its action and outcome halves.
// ok reports whether the arrow was present; outcome may be empty even
// when it was.
func SplitCondition(condition string) (action, outcome string, ok bool) {
	before, after, found := strings.Cut(condition, ConditionArrow)
	if !found {
		return strings.TrimSpace(condition), "", false
	}
	return strings.TrimSpace(before), strings.TrimSpace(after), true
}

// defaultExpected supplies the assertion text when a condition carries
// no explicit outcome.
func defaultExpected(category domain.TestCategory) string {
	switch category {
	case domain.CategoryPositive:
		return "the operation completes successfully and a confirmation is shown"
	case domain.CategoryNegative:
		return "an appropriate error/validation message is displayed and the action is rejected"
	case domain.CategoryBoundary:
		return "the system accepts or rejects the input correctly at the boundary value"
	}
	return "the system handles the edge case safely without errors or security issues"
}

// GenerateSteps builds the manual and automation step sequences for a
// test case mapped onto a concrete page and form. The two slices are
// always the same length, one automation line per manual line.
func GenerateSteps(condition, pageURL, pageTitle, formName string, fields []domain.Field, buttons []domain.Button, category domain.TestCategory) (manual, automation []string) {
	actionHint, outcomeHint, _ := SplitCondition(condition)

	manual = append(manual, fmt.Sprintf("Open the browser and navigate to %s.", pageURL))
	automation = append(automation, fmt.Sprintf("Open browser and navigate to '%s'.", pageURL))

	if len(fields) > 0 {
		for _, fld := range fields {
			fname := fld.Name
			if fname == "" {
				fname = fld.Type
			}
			if fname == "" {
				fname = "field"
			}
			ftype := fld.Type
			if ftype == "" {
				ftype = "text"
			}
			value := PickValue(fname, ftype, actionHint, category)

			manual = append(manual, fmt.Sprintf("In the '%s' form, locate the '%s' field (%s) and enter: %s.", formName, fname, ftype, value))
			automation = append(automation, automationFieldStep(fname, value))
		}
	} else {
		manual = append(manual, fmt.Sprintf("Locate the relevant input area on '%s'.", pageTitle))
		automation = append(automation, fmt.Sprintf("# No form fields extracted — locate inputs manually on %s.", pageURL))
	}

	btnText := "Submit"
	if len(buttons) > 0 {
		btnText = buttons[0].Text
	}
	manual = append(manual, fmt.Sprintf("Click the '%s' button.", btnText))
	automation = append(automation, fmt.Sprintf("Find button with text '%s' and click().", btnText))

	expected := outcomeHint
	if expected == "" {
		expected = defaultExpected(category)
	}
	manual = append(manual, fmt.Sprintf("Verify that: %s.", expected))
	automation = append(automation, fmt.Sprintf("Assert that the page/response reflects: '%s'.", expected))

	return manual, automation
}

// automationFieldStep renders the executable counterpart of a field
// entry. Interaction markers become click/select instructions instead
// of a send_keys line.
func automationFieldStep(fname, value string) string {
	switch value {
	case ValueCheckboxAction:
		return fmt.Sprintf("Tick the '%s' checkbox.", fname)
	case ValueSelectAction:
		return fmt.Sprintf("Select a valid option from the %s dropdown.", fname)
	}
	payload, _ := Payload(value)
	return fmt.Sprintf("Find element by name/id '%s' and send_keys(%s).", fname, quoteForSendKeys(payload))
}
