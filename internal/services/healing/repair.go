package healing

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/storyqa/storyqa/internal/domain"
)

const maxCandidates = 3

// Analyze diagnoses every Fail or Error result against the crawled
// page model. Passing results are skipped. Pages may be empty; only
// the repair candidates need a crawl, classification always runs.
func Analyze(results []domain.ExecutionResult, pages []domain.Page) []Diagnosis {
	diags := make([]Diagnosis, 0)
	for _, r := range results {
		if r.Status == domain.ExecStatusPass {
			continue
		}
		diags = append(diags, diagnose(r, pages))
	}
	return diags
}

// Suggestions flattens diagnoses into deduplicated advice lines for
// the report's next-steps section, in diagnosis order.
func Suggestions(diags []Diagnosis) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Suggestion == "" || seen[d.Suggestion] {
			continue
		}
		seen[d.Suggestion] = true
		out = append(out, d.Suggestion)
	}
	return out
}

func diagnose(r domain.ExecutionResult, pages []domain.Page) Diagnosis {
	d := Diagnosis{TCID: r.TCID, Class: Classify(r.ErrorMessage)}
	if sh, ok := matchShape(r.ErrorMessage); ok {
		d.Target = sh.target
		d.Locator = sh.locator
		d.Expected = sh.expected
		d.Actual = sh.actual
	}
	if d.Class == FailureNotFound {
		d.Candidates = candidates(d, pages)
	}
	d.Suggestion = suggestion(d)
	return d
}

func candidates(d Diagnosis, pages []domain.Page) []Candidate {
	switch d.Target {
	case TargetInput:
		return rank(d.Locator, collectFields(pages, ""))
	case TargetSelect:
		return rank(d.Locator, collectFields(pages, "select"))
	case TargetButton:
		return rank(d.Locator, collectButtons(pages))
	default:
		return nil
	}
}

// collectFields gathers distinct field names in crawl order. An empty
// typeFilter accepts every field type.
func collectFields(pages []domain.Page, typeFilter string) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, p := range pages {
		for _, f := range p.Forms {
			for _, fd := range f.Fields {
				if typeFilter != "" && fd.Type != typeFilter {
					continue
				}
				if fd.Name == "" || seen[fd.Name] {
					continue
				}
				seen[fd.Name] = true
				out = append(out, Candidate{Name: fd.Name, Form: f.Name, Page: p.URL})
			}
		}
	}
	return out
}

func collectButtons(pages []domain.Page) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, p := range pages {
		for _, f := range p.Forms {
			for _, b := range f.Buttons {
				if b.Text == "" || seen[b.Text] {
					continue
				}
				seen[b.Text] = true
				out = append(out, Candidate{Name: b.Text, Form: f.Name, Page: p.URL})
			}
		}
	}
	return out
}

// rank scores candidates by token overlap with the failed locator,
// highest first, ties in crawl order, capped at maxCandidates. A
// candidate whose name equals the locator is dropped: the crawl knew
// that name and the live page no longer matches it.
func rank(locator string, cands []Candidate) []Candidate {
	scored := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if strings.EqualFold(c.Name, locator) {
			continue
		}
		c.Score = overlap(locator, c.Name)
		if c.Score > 0 {
			scored = append(scored, c)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > maxCandidates {
		scored = scored[:maxCandidates]
	}
	return scored
}

// overlap is the Jaccard similarity of the two names' token sets.
func overlap(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// tokens splits s into lowercase alphanumeric runs, breaking on
// separators and on lower-to-upper camelCase boundaries.
func tokens(s string) map[string]bool {
	set := make(map[string]bool)
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			set[strings.ToLower(string(cur))] = true
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return set
}

func suggestion(d Diagnosis) string {
	switch d.Class {
	case FailureNotFound:
		return notFoundSuggestion(d)
	case FailureAssertion:
		if d.Actual != "" {
			return fmt.Sprintf("Expected URL containing '%s' but the browser was at '%s'; update the expected URL or investigate the redirect.", d.Expected, d.Actual)
		}
		if d.Expected != "" {
			return fmt.Sprintf("Expected text '%s' was not on the page; verify the page copy or adjust the assertion.", d.Expected)
		}
		return "An assertion failed; compare the expected values against the current page."
	case FailureTimeout:
		return "A step timed out; re-run the case or allow more time for the page to load."
	case FailureNavigation:
		return "Navigation failed; verify the page URL is reachable from the test environment."
	default:
		return "Unrecognized failure; inspect the execution log and screenshot for details."
	}
}

func notFoundSuggestion(d Diagnosis) string {
	switch d.Target {
	case TargetInput:
		if len(d.Candidates) > 0 {
			return fmt.Sprintf("Input '%s' was not found; the closest crawled field is '%s'. Update the fill step to match.", d.Locator, d.Candidates[0].Name)
		}
		return fmt.Sprintf("Input '%s' was not found and no similar field exists in the crawled forms; re-crawl the page before regenerating tests.", d.Locator)
	case TargetButton:
		if len(d.Candidates) > 0 {
			return fmt.Sprintf("Button '%s' was not found; the closest crawled button is '%s'. Update the click step to match.", d.Locator, d.Candidates[0].Name)
		}
		return fmt.Sprintf("Button '%s' was not found and no similar button exists in the crawled forms; re-crawl the page before regenerating tests.", d.Locator)
	case TargetSelect:
		if len(d.Candidates) > 0 {
			return fmt.Sprintf("No dropdown offered option '%s'; the crawled select field '%s' is the closest match.", d.Locator, d.Candidates[0].Name)
		}
		return fmt.Sprintf("No dropdown offered option '%s'; verify the select control still exists or re-crawl the page.", d.Locator)
	case TargetCheckbox:
		return "No checkbox was present on the page; remove the check step or re-crawl the page to refresh the form model."
	default:
		return "An expected element was not found; re-crawl the page and regenerate the affected steps."
	}
}
