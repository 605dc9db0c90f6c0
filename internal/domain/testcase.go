package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// TestCase is one generated, page-mapped test case. Created once by the
// assembler and immutable afterwards. ManualSteps and AutomationSteps are
// paired: equal length, index i describes the same interaction in both.
type TestCase struct {
	TCID            string       `json:"tc_id"`
	Feature         string       `json:"feature"`
	UserRole        string       `json:"user_role"`
	Condition       string       `json:"condition"`
	PageURL         string       `json:"page_url"`
	PageTitle       string       `json:"page_title"`
	FormName        string       `json:"form_name"`
	Type            TestCategory `json:"type"`
	Priority        Priority     `json:"priority"`
	ManualSteps     []string     `json:"manual_steps"`
	AutomationSteps []string     `json:"automation_steps"`
	Mapped          bool         `json:"mapped"`
}

// UnmappedFormName is the form_name placeholder carried by every test case
// that could not be anchored to a crawled form.
const UnmappedFormName = "—"

// TestCaseID formats the 1-based sequential batch id.
func TestCaseID(n int) string {
	return fmt.Sprintf("TC-%03d", n)
}

// TestCaseRepository persists generated batches keyed by run. A batch is
// saved whole; saving again for the same run replaces the previous batch.
type TestCaseRepository interface {
	ReplaceForRun(ctx context.Context, runID uuid.UUID, cases []TestCase) error
	GetByRunID(ctx context.Context, runID uuid.UUID) ([]TestCase, error)
}

// GenerationSummary aggregates one generation batch.
type GenerationSummary struct {
	Total    int                  `json:"total"`
	Mapped   int                  `json:"mapped"`
	Unmapped int                  `json:"unmapped"`
	ByType   map[TestCategory]int `json:"by_type"`
}

// NewGenerationSummary tallies a batch. ByType is pre-seeded with every
// category so absent categories serialize as explicit zeros.
func NewGenerationSummary(cases []TestCase) GenerationSummary {
	s := GenerationSummary{
		Total: len(cases),
		ByType: map[TestCategory]int{
			CategoryPositive: 0,
			CategoryNegative: 0,
			CategoryBoundary: 0,
			CategoryEdgeCase: 0,
		},
	}
	for _, tc := range cases {
		if tc.Mapped {
			s.Mapped++
		} else {
			s.Unmapped++
		}
		if _, known := s.ByType[tc.Type]; known {
			s.ByType[tc.Type]++
		}
	}
	return s
}
