package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// playwrightReport is the --reporter=json document, reduced to the
// fields the tallies and the per-spec mapping need.
type playwrightReport struct {
	Suites []playwrightSuite `json:"suites"`
	Stats  playwrightStats   `json:"stats"`
}

type playwrightSuite struct {
	Title  string            `json:"title"`
	File   string            `json:"file"`
	Specs  []playwrightSpec  `json:"specs"`
	Suites []playwrightSuite `json:"suites"`
}

type playwrightSpec struct {
	Title string           `json:"title"`
	OK    bool             `json:"ok"`
	Tests []playwrightTest `json:"tests"`
}

type playwrightTest struct {
	Status  string             `json:"status"` // expected, unexpected, flaky, skipped
	Results []playwrightResult `json:"results"`
}

type playwrightResult struct {
	Status   string           `json:"status"`   // passed, failed, timedOut, interrupted, skipped
	Duration float64          `json:"duration"` // milliseconds
	Error    *playwrightError `json:"error,omitempty"`
}

type playwrightError struct {
	Message string `json:"message"`
}

func parseReport(data []byte) (*playwrightReport, error) {
	rep := &playwrightReport{}
	if err := json.Unmarshal(data, rep); err != nil {
		return nil, fmt.Errorf("parsing playwright report: %w", err)
	}
	return rep, nil
}

// tally counts outcomes from the report stats. A flaky test passed on
// retry, so it counts as passed.
func (rep *playwrightReport) tally() (passed, failed, skipped int) {
	return rep.Stats.Expected + rep.Stats.Flaky, rep.Stats.Unexpected, rep.Stats.Skipped
}

// specResults flattens the suite tree into per-test outcomes, keeping
// the last attempt of each test.
func (rep *playwrightReport) specResults() []SpecResult {
	var out []SpecResult
	for _, suite := range rep.Suites {
		out = collectSpecs(suite, out)
	}
	return out
}

func collectSpecs(suite playwrightSuite, out []SpecResult) []SpecResult {
	for _, spec := range suite.Specs {
		out = append(out, specResult(spec))
	}
	for _, child := range suite.Suites {
		out = collectSpecs(child, out)
	}
	return out
}

func specResult(spec playwrightSpec) SpecResult {
	tcid, title := titleTCID(spec.Title)
	res := SpecResult{TCID: tcid, Title: title}

	if len(spec.Tests) == 0 || len(spec.Tests[0].Results) == 0 {
		res.Status = "skipped"
		return res
	}

	attempts := spec.Tests[0].Results
	last := attempts[len(attempts)-1]
	res.Status = last.Status
	res.DurationSeconds = last.Duration / 1000
	if last.Error != nil {
		res.Error = last.Error.Message
	}
	return res
}

// titleTCID splits the "[TC-nnn] condition" titles the script generator
// writes. Titles without the prefix come back whole with an empty id.
func titleTCID(title string) (tcid, rest string) {
	if strings.HasPrefix(title, "[") {
		if end := strings.Index(title, "]"); end > 1 {
			return title[1:end], strings.TrimSpace(title[end+1:])
		}
	}
	return "", title
}

// tallyFromLogs recovers counts from the list reporter's closing
// summary lines ("3 passed", "2 failed (5.5s)") when no JSON report
// survived the run.
func tallyFromLogs(logs string) (passed, failed, skipped int) {
	for _, line := range strings.Split(logs, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "passed") {
			fmt.Sscanf(line, "%d passed", &passed)
		}
		if strings.Contains(line, "failed") {
			fmt.Sscanf(line, "%d failed", &failed)
		}
		if strings.Contains(line, "skipped") {
			fmt.Sscanf(line, "%d skipped", &skipped)
		}
	}
	return passed, failed, skipped
}

func (r *Result) applyReport(rep *playwrightReport) {
	r.Specs = rep.specResults()
	r.Passed, r.Failed, r.Skipped = rep.tally()
	r.Total = r.Passed + r.Failed + r.Skipped
}

func (r *Result) applyLogTally() {
	r.Passed, r.Failed, r.Skipped = tallyFromLogs(r.Logs)
	r.Total = r.Passed + r.Failed + r.Skipped
}
