package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/storyqa/storyqa/internal/domain"
)

// TestCaseRepository implements domain.TestCaseRepository with PostgreSQL
type TestCaseRepository struct {
	db *DB
}

// NewTestCaseRepository creates a new test case repository
func NewTestCaseRepository(db *DB) *TestCaseRepository {
	return &TestCaseRepository{db: db}
}

// testCaseRow represents the database row structure. Position preserves
// batch order; tc_ids restart at TC-001 every batch so order cannot be
// recovered from them alone once rows are reloaded.
type testCaseRow struct {
	ID              uuid.UUID `db:"id"`
	RunID           uuid.UUID `db:"run_id"`
	TCID            string    `db:"tc_id"`
	Feature         string    `db:"feature"`
	UserRole        string    `db:"user_role"`
	Condition       string    `db:"condition"`
	PageURL         string    `db:"page_url"`
	PageTitle       string    `db:"page_title"`
	FormName        string    `db:"form_name"`
	Type            string    `db:"type"`
	Priority        string    `db:"priority"`
	ManualSteps     []byte    `db:"manual_steps"`
	AutomationSteps []byte    `db:"automation_steps"`
	Mapped          bool      `db:"mapped"`
	Position        int       `db:"position"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r *testCaseRow) toDomain() (domain.TestCase, error) {
	tc := domain.TestCase{
		TCID:      r.TCID,
		Feature:   r.Feature,
		UserRole:  r.UserRole,
		Condition: r.Condition,
		PageURL:   r.PageURL,
		PageTitle: r.PageTitle,
		FormName:  r.FormName,
		Type:      domain.TestCategory(r.Type),
		Priority:  domain.Priority(r.Priority),
		Mapped:    r.Mapped,
	}

	if r.ManualSteps != nil {
		if err := json.Unmarshal(r.ManualSteps, &tc.ManualSteps); err != nil {
			return domain.TestCase{}, err
		}
	}
	if r.AutomationSteps != nil {
		if err := json.Unmarshal(r.AutomationSteps, &tc.AutomationSteps); err != nil {
			return domain.TestCase{}, err
		}
	}

	return tc, nil
}

// ReplaceForRun replaces the run's generated batch in a single
// transaction: regenerating a run must not leave cases from the old
// batch behind.
func (r *TestCaseRepository) ReplaceForRun(ctx context.Context, runID uuid.UUID, cases []domain.TestCase) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM test_cases WHERE run_id = $1`, runID); err != nil {
			return err
		}

		if len(cases) == 0 {
			return nil
		}

		query := `
			INSERT INTO test_cases (
				id, run_id, tc_id, feature, user_role, condition,
				page_url, page_title, form_name, type, priority,
				manual_steps, automation_steps, mapped, position, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`

		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for i, tc := range cases {
			// Nil slices default to empty arrays for JSONB columns
			manualSteps := tc.ManualSteps
			if manualSteps == nil {
				manualSteps = []string{}
			}
			manualJSON, err := json.Marshal(manualSteps)
			if err != nil {
				return err
			}

			automationSteps := tc.AutomationSteps
			if automationSteps == nil {
				automationSteps = []string{}
			}
			automationJSON, err := json.Marshal(automationSteps)
			if err != nil {
				return err
			}

			_, err = stmt.ExecContext(ctx,
				uuid.New(),
				runID,
				tc.TCID,
				tc.Feature,
				tc.UserRole,
				tc.Condition,
				tc.PageURL,
				tc.PageTitle,
				tc.FormName,
				string(tc.Type),
				string(tc.Priority),
				manualJSON,
				automationJSON,
				tc.Mapped,
				i,
				now,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return domain.AlreadyExistsError("test_case", "tc_id", tc.TCID)
				}
				if isForeignKeyViolation(err) {
					return domain.NotFoundError("run", runID)
				}
				return err
			}
		}

		return nil
	})
}

// GetByRunID retrieves a run's test cases in batch order
func (r *TestCaseRepository) GetByRunID(ctx context.Context, runID uuid.UUID) ([]domain.TestCase, error) {
	query := `
		SELECT id, run_id, tc_id, feature, user_role, condition,
		       page_url, page_title, form_name, type, priority,
		       manual_steps, automation_steps, mapped, position, created_at
		FROM test_cases
		WHERE run_id = $1
		ORDER BY position
	`

	var rows []testCaseRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, err
	}

	cases := make([]domain.TestCase, len(rows))
	for i, row := range rows {
		tc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		cases[i] = tc
	}

	return cases, nil
}
