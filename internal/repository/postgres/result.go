package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/storyqa/storyqa/internal/domain"
)

// ResultRepository implements domain.ResultRepository with PostgreSQL
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a new execution result repository
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// resultRow lifts the queryable fields into columns; the full result,
// including the step log and screenshot reference, rides in the JSONB
// payload so the wire shape survives storage byte for byte.
type resultRow struct {
	ID              uuid.UUID `db:"id"`
	RunID           uuid.UUID `db:"run_id"`
	TCID            string    `db:"tc_id"`
	Status          string    `db:"status"`
	DurationSeconds float64   `db:"duration_seconds"`
	Payload         []byte    `db:"payload"`
	Position        int       `db:"position"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r *resultRow) toDomain() (domain.ExecutionResult, error) {
	var res domain.ExecutionResult
	if err := json.Unmarshal(r.Payload, &res); err != nil {
		return domain.ExecutionResult{}, err
	}
	return res, nil
}

// ReplaceForRun replaces the run's execution results in a single
// transaction, mirroring the test case batch semantics.
func (r *ResultRepository) ReplaceForRun(ctx context.Context, runID uuid.UUID, results []domain.ExecutionResult) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM execution_results WHERE run_id = $1`, runID); err != nil {
			return err
		}

		if len(results) == 0 {
			return nil
		}

		query := `
			INSERT INTO execution_results (
				id, run_id, tc_id, status, duration_seconds, payload, position, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`

		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for i, res := range results {
			payload, err := json.Marshal(res)
			if err != nil {
				return err
			}

			_, err = stmt.ExecContext(ctx,
				uuid.New(),
				runID,
				res.TCID,
				string(res.Status),
				res.DurationSeconds,
				payload,
				i,
				now,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return domain.AlreadyExistsError("execution_result", "tc_id", res.TCID)
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

// GetByRunID retrieves a run's execution results in batch order
func (r *ResultRepository) GetByRunID(ctx context.Context, runID uuid.UUID) ([]domain.ExecutionResult, error) {
	query := `
		SELECT id, run_id, tc_id, status, duration_seconds, payload, position, created_at
		FROM execution_results
		WHERE run_id = $1
		ORDER BY position
	`

	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, err
	}

	results := make([]domain.ExecutionResult, len(rows))
	for i, row := range rows {
		res, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		results[i] = res
	}

	return results, nil
}
