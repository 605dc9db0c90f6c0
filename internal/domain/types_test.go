package domain

import (
	"encoding/json"
	"testing"
)

func TestTestCategory_IsValid(t *testing.T) {
	tests := []struct {
		category TestCategory
		valid    bool
	}{
		{CategoryPositive, true},
		{CategoryNegative, true},
		{CategoryBoundary, true},
		{CategoryEdgeCase, true},
		{TestCategory("positive"), false},
		{TestCategory("Edge"), false},
		{TestCategory(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := tt.category.IsValid(); got != tt.valid {
				t.Errorf("TestCategory(%q).IsValid() = %v, want %v", tt.category, got, tt.valid)
			}
		})
	}
}

func TestPriority_IsValid(t *testing.T) {
	tests := []struct {
		priority Priority
		valid    bool
	}{
		{PriorityHigh, true},
		{PriorityMedium, true},
		{PriorityLow, true},
		{Priority("Critical"), false},
		{Priority(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			if got := tt.priority.IsValid(); got != tt.valid {
				t.Errorf("Priority(%q).IsValid() = %v, want %v", tt.priority, got, tt.valid)
			}
		})
	}
}

func TestExecStatus_IsValid(t *testing.T) {
	tests := []struct {
		status ExecStatus
		valid  bool
	}{
		{ExecStatusPass, true},
		{ExecStatusFail, true},
		{ExecStatusError, true},
		{ExecStatus("pass"), false},
		{ExecStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("ExecStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   RunStatus
		terminal bool
	}{
		{RunStatusPending, false},
		{RunStatusAnalyzing, false},
		{RunStatusExploring, false},
		{RunStatusGenerating, false},
		{RunStatusExecuting, false},
		{RunStatusReporting, false},
		{RunStatusCompleted, true},
		{RunStatusFailed, true},
		{RunStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("RunStatus(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestJSONB_RoundTrip(t *testing.T) {
	j := JSONB{"total": float64(5), "mapped": float64(4)}

	value, err := j.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var back JSONB
	if err := back.Scan(value); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if back["total"] != float64(5) || back["mapped"] != float64(4) {
		t.Errorf("round trip mismatch: %v", back)
	}
}

func TestJSONB_ScanNil(t *testing.T) {
	var j JSONB
	if err := j.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if j != nil {
		t.Errorf("Scan(nil) = %v, want nil", j)
	}
}

func TestTestCase_JSONKeys(t *testing.T) {
	tc := TestCase{
		TCID:            "TC-001",
		Feature:         "Login",
		UserRole:        "user",
		Condition:       "valid login → dashboard",
		Type:            CategoryPositive,
		Priority:        PriorityHigh,
		ManualSteps:     []string{"step"},
		AutomationSteps: []string{"step"},
		Mapped:          true,
	}

	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{"tc_id", "feature", "user_role", "condition",
		"page_url", "page_title", "form_name", "type", "priority",
		"manual_steps", "automation_steps", "mapped"} {
		if _, ok := m[key]; !ok {
			t.Errorf("serialized TestCase missing key %q", key)
		}
	}
}
