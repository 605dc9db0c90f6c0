package execution

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Driver is the browser surface the interpreter drives. The playwright
// Session implements it; tests substitute a fake.
type Driver interface {
	// Navigate loads the given URL in the active page.
	Navigate(url string) error
	// Fill locates an input by name, then id, then placeholder substring,
	// clears it and types value. Exhausting all three lookups returns a
	// *StepError with the not-found message.
	Fill(locator, value string) error
	// ClickButton clicks the control with the exact visible text label,
	// falling back to a submit-typed control. An empty label goes
	// straight to the fallback.
	ClickButton(label string) error
	CurrentURL() (string, error)
	PageSource() (string, error)
	// SelectOption picks an option by visible text in the first select
	// control on the page.
	SelectOption(option string) error
	// CheckFirstCheckbox checks the first checkbox control if it is not
	// already checked.
	CheckFirstCheckbox() error
	// Screenshot writes a full capture of the current page to path.
	Screenshot(path string) error
}

// FailureKind buckets recognized step failures for metrics and healing.
type FailureKind string

const (
	FailureAssertion  FailureKind = "assertion"
	FailureNotFound   FailureKind = "not_found"
	FailureTimeout    FailureKind = "timeout"
	FailureNavigation FailureKind = "navigation"
	FailureDriver     FailureKind = "driver"
)

// StepError is a recognized failure raised while executing a step. It
// fails the test case; anything else aborts it as an unexpected error.
type StepError struct {
	Kind FailureKind
	Msg  string
}

func (e *StepError) Error() string { return e.Msg }

// recognized coerces a driver error into a StepError, keeping an
// already-typed one as is.
func recognized(kind FailureKind, err error) error {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return &StepError{Kind: kind, Msg: err.Error()}
}

// Outcome tags what a step did.
type Outcome string

const (
	OutcomeNavigated Outcome = "navigated"
	OutcomeFilled    Outcome = "filled"
	OutcomeClicked   Outcome = "clicked"
	OutcomeAsserted  Outcome = "asserted"
	OutcomeSelected  Outcome = "selected"
	OutcomeChecked   Outcome = "checked"
	OutcomeSkipped   Outcome = "skipped"
)

var (
	urlPattern        = regexp.MustCompile(`https?://[^\s"']+`)
	quotedPattern     = regexp.MustCompile(`['"]([^'"]+)['"]`)
	assertWordPattern = regexp.MustCompile(`(?i)\b(assert|verify|check|confirm)\b`)
	sendKeysPattern   = regexp.MustCompile(`(?i)(?:name/id|name|id)[^'"]*(?:'([^']+)'|"([^"]+)").*?(?:send_keys?|enter|type|keys?)\s*[(\s]*(?:'([^']*)'|"([^"]*)")`)
	enterFieldPattern = regexp.MustCompile(`(?i)enter\s+(?:'([^'"]+?)'|"([^'"]+?)"|([^'"]+?))\s+in\s+(?:the\s+)?['"]?(\w[\w-]*)['"]?\s*field`)
)

func extractURL(step string) string {
	return strings.TrimRight(urlPattern.FindString(step), ".,;")
}

func extractQuoted(step string) string {
	if m := quotedPattern.FindStringSubmatch(step); m != nil {
		return m[1]
	}
	return ""
}

// stepRule pairs a trigger with its action. Rules are tried in order;
// the first trigger that fires owns the step.
type stepRule struct {
	match func(step, lower string) bool
	run   func(d Driver, step, lower string) (Outcome, error)
}

// Interpreter executes one automation step line at a time against a
// Driver.
type Interpreter struct {
	rules []stepRule
}

func NewInterpreter() *Interpreter {
	return &Interpreter{rules: []stepRule{
		{
			match: func(step, lower string) bool {
				t := strings.TrimSpace(step)
				return t == "" || strings.HasPrefix(t, "#")
			},
			run: func(Driver, string, string) (Outcome, error) { return OutcomeSkipped, nil },
		},
		{
			match: func(step, lower string) bool {
				return containsAny(lower, "navigate to", "open browser", "go to")
			},
			run: runNavigate,
		},
		{
			match: func(step, lower string) bool { return sendKeysPattern.MatchString(step) },
			run:   runSendKeys,
		},
		{
			match: func(step, lower string) bool { return enterFieldPattern.MatchString(step) },
			run:   runEnterField,
		},
		{
			match: func(step, lower string) bool {
				return containsAny(lower, "click()", "click the", "click button", "and click")
			},
			run: runClick,
		},
		{
			match: func(step, lower string) bool {
				return assertWordPattern.MatchString(step) && strings.Contains(lower, "url")
			},
			run: runAssertURL,
		},
		{
			match: func(step, lower string) bool { return assertWordPattern.MatchString(step) },
			run:   runAssertText,
		},
		{
			match: func(step, lower string) bool {
				return strings.Contains(lower, "select") && containsAny(lower, "option", "dropdown", "from")
			},
			run: runSelect,
		},
		{
			match: func(step, lower string) bool {
				return containsAny(lower, "checkbox", "check the")
			},
			run: func(d Driver, step, lower string) (Outcome, error) {
				if err := d.CheckFirstCheckbox(); err != nil {
					return OutcomeChecked, recognized(FailureDriver, err)
				}
				return OutcomeChecked, nil
			},
		},
	}}
}

// Execute runs one step. A *StepError fails the test case; any other
// error is unexpected. Unrecognized steps are skipped, never failed.
func (in *Interpreter) Execute(d Driver, step string) (Outcome, error) {
	lower := strings.ToLower(step)
	for _, rule := range in.rules {
		if rule.match(step, lower) {
			return rule.run(d, step, lower)
		}
	}
	return OutcomeSkipped, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func runNavigate(d Driver, step, lower string) (Outcome, error) {
	url := extractURL(step)
	if url == "" {
		url = extractQuoted(step)
	}
	if url == "" {
		return OutcomeSkipped, nil
	}
	if err := d.Navigate(url); err != nil {
		return OutcomeNavigated, recognized(FailureNavigation, err)
	}
	return OutcomeNavigated, nil
}

func runSendKeys(d Driver, step, lower string) (Outcome, error) {
	m := sendKeysPattern.FindStringSubmatch(step)
	locator := m[1]
	if locator == "" {
		locator = m[2]
	}
	value := m[3]
	if value == "" {
		value = m[4]
	}
	if err := d.Fill(locator, value); err != nil {
		return OutcomeFilled, recognized(FailureDriver, err)
	}
	return OutcomeFilled, nil
}

func runEnterField(d Driver, step, lower string) (Outcome, error) {
	m := enterFieldPattern.FindStringSubmatch(step)
	value := m[1]
	if value == "" {
		value = m[2]
	}
	if value == "" {
		value = strings.TrimSpace(m[3])
	}
	if err := d.Fill(m[4], value); err != nil {
		return OutcomeFilled, recognized(FailureDriver, err)
	}
	return OutcomeFilled, nil
}

func runClick(d Driver, step, lower string) (Outcome, error) {
	if err := d.ClickButton(extractQuoted(step)); err != nil {
		return OutcomeClicked, recognized(FailureNotFound, err)
	}
	return OutcomeClicked, nil
}

func runAssertURL(d Driver, step, lower string) (Outcome, error) {
	expected := extractQuoted(step)
	if expected == "" {
		return OutcomeSkipped, nil
	}
	current, err := d.CurrentURL()
	if err != nil {
		return OutcomeAsserted, recognized(FailureDriver, err)
	}
	if !strings.Contains(current, expected) {
		return OutcomeAsserted, &StepError{
			Kind: FailureAssertion,
			Msg:  fmt.Sprintf("URL mismatch: '%s' not in '%s'", expected, current),
		}
	}
	return OutcomeAsserted, nil
}

func runAssertText(d Driver, step, lower string) (Outcome, error) {
	expected := extractQuoted(step)
	if expected == "" {
		return OutcomeSkipped, nil
	}
	source, err := d.PageSource()
	if err != nil {
		return OutcomeAsserted, recognized(FailureDriver, err)
	}
	if !strings.Contains(strings.ToLower(source), strings.ToLower(expected)) {
		return OutcomeAsserted, &StepError{
			Kind: FailureAssertion,
			Msg:  fmt.Sprintf("Text '%s' not found in page", expected),
		}
	}
	return OutcomeAsserted, nil
}

func runSelect(d Driver, step, lower string) (Outcome, error) {
	option := extractQuoted(step)
	if option == "" {
		return OutcomeSkipped, nil
	}
	if err := d.SelectOption(option); err != nil {
		return OutcomeSelected, recognized(FailureDriver, err)
	}
	return OutcomeSelected, nil
}
