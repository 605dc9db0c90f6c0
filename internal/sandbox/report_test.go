package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{
  "config": {"rootDir": "/workspace"},
  "suites": [
    {
      "title": "login.spec.ts",
      "file": "login.spec.ts",
      "specs": [],
      "suites": [
        {
          "title": "Login",
          "file": "login.spec.ts",
          "specs": [
            {
              "title": "[TC-001] User can log in with valid credentials",
              "ok": true,
              "tests": [
                {"status": "expected", "results": [{"status": "passed", "duration": 1523.4}]}
              ]
            },
            {
              "title": "[TC-002] User cannot log in with invalid password",
              "ok": false,
              "tests": [
                {
                  "status": "unexpected",
                  "results": [
                    {"status": "failed", "duration": 30001.0, "error": {"message": "Timed out waiting for locator"}},
                    {"status": "failed", "duration": 29850.0, "error": {"message": "Timed out waiting for locator"}}
                  ]
                }
              ]
            },
            {
              "title": "untagged smoke check",
              "ok": true,
              "tests": [{"status": "skipped", "results": []}]
            }
          ]
        }
      ]
    }
  ],
  "stats": {"startTime": "2025-05-02T10:00:00.000Z", "duration": 61374.6, "expected": 1, "unexpected": 1, "flaky": 0, "skipped": 1}
}`

func TestParseReport(t *testing.T) {
	rep, err := parseReport([]byte(sampleReport))
	require.NoError(t, err)

	specs := rep.specResults()
	require.Len(t, specs, 3)

	assert.Equal(t, "TC-001", specs[0].TCID)
	assert.Equal(t, "User can log in with valid credentials", specs[0].Title)
	assert.Equal(t, "passed", specs[0].Status)
	assert.InDelta(t, 1.5234, specs[0].DurationSeconds, 0.0001)
	assert.Empty(t, specs[0].Error)

	// The last attempt of the retried test wins.
	assert.Equal(t, "TC-002", specs[1].TCID)
	assert.Equal(t, "failed", specs[1].Status)
	assert.InDelta(t, 29.85, specs[1].DurationSeconds, 0.0001)
	assert.Contains(t, specs[1].Error, "Timed out")

	// Titles written by hand keep their full text and no id.
	assert.Empty(t, specs[2].TCID)
	assert.Equal(t, "untagged smoke check", specs[2].Title)
	assert.Equal(t, "skipped", specs[2].Status)

	passed, failed, skipped := rep.tally()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)
}

func TestParseReportInvalid(t *testing.T) {
	_, err := parseReport([]byte("not json"))
	assert.Error(t, err)
}

func TestTallyCountsFlakyAsPassed(t *testing.T) {
	rep := &playwrightReport{}
	rep.Stats.Expected = 2
	rep.Stats.Flaky = 1
	rep.Stats.Unexpected = 1

	passed, failed, skipped := rep.tally()
	assert.Equal(t, 3, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, skipped)
}

func TestApplyReport(t *testing.T) {
	rep, err := parseReport([]byte(sampleReport))
	require.NoError(t, err)

	result := &Result{}
	result.applyReport(rep)

	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Specs, 3)
}

func TestTallyFromLogs(t *testing.T) {
	tests := []struct {
		name    string
		logs    string
		passed  int
		failed  int
		skipped int
	}{
		{
			name:   "all passed",
			logs:   "Running 5 tests using 2 workers\n\n  5 passed (3.2s)",
			passed: 5,
		},
		{
			name:    "mixed results",
			logs:    "3 passed\n2 failed\n1 skipped (5.5s)",
			passed:  3,
			failed:  2,
			skipped: 1,
		},
		{
			name: "empty logs",
			logs: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, failed, skipped := tallyFromLogs(tt.logs)
			assert.Equal(t, tt.passed, passed)
			assert.Equal(t, tt.failed, failed)
			assert.Equal(t, tt.skipped, skipped)
		})
	}
}

func TestTitleTCID(t *testing.T) {
	tests := []struct {
		title string
		tcid  string
		rest  string
	}{
		{"[TC-001] User can log in", "TC-001", "User can log in"},
		{"plain title", "", "plain title"},
		{"[] empty brackets", "", "[] empty brackets"},
		{"[TC-010]", "TC-010", ""},
	}

	for _, tt := range tests {
		tcid, rest := titleTCID(tt.title)
		assert.Equal(t, tt.tcid, tcid, tt.title)
		assert.Equal(t, tt.rest, rest, tt.title)
	}
}

func TestResultSummary(t *testing.T) {
	r := &Result{Total: 6, Passed: 3, Failed: 2, Skipped: 1}
	sum := r.Summary()

	assert.Equal(t, 6, sum.Total)
	assert.Equal(t, 3, sum.Passed)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.Errored)
}
