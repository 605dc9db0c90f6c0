package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storyqa/storyqa/internal/domain"
)

// RunRepository implements domain.RunRepository with PostgreSQL
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// runRow represents the database row structure
type runRow struct {
	ID            uuid.UUID  `db:"id"`
	Story         string     `db:"story"`
	Feature       string     `db:"feature"`
	UserRole      string     `db:"user_role"`
	StartURL      string     `db:"start_url"`
	Depth         int        `db:"depth"`
	Status        string     `db:"status"`
	WorkflowID    string     `db:"workflow_id"`
	WorkflowRunID string     `db:"workflow_run_id"`
	Analysis      []byte     `db:"analysis"`
	Crawl         []byte     `db:"crawl"`
	Generation    []byte     `db:"generation"`
	Execution     []byte     `db:"execution"`
	ReportURI     *string    `db:"report_uri"`
	Error         *string    `db:"error"`
	StartedAt     *time.Time `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (r *runRow) toDomain() (*domain.Run, error) {
	run := &domain.Run{
		ID:            r.ID,
		Story:         r.Story,
		Feature:       r.Feature,
		UserRole:      r.UserRole,
		StartURL:      r.StartURL,
		Depth:         r.Depth,
		Status:        domain.RunStatus(r.Status),
		WorkflowID:    r.WorkflowID,
		WorkflowRunID: r.WorkflowRunID,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		Timestamps: domain.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			DeletedAt: r.DeletedAt,
		},
	}

	if r.ReportURI != nil {
		run.ReportURI = *r.ReportURI
	}
	if r.Error != nil {
		run.Error = *r.Error
	}

	if r.Analysis != nil {
		var analysis domain.StoryAnalysis
		if err := json.Unmarshal(r.Analysis, &analysis); err != nil {
			return nil, err
		}
		run.Analysis = &analysis
	}

	if r.Crawl != nil {
		var crawl domain.CrawlResult
		if err := json.Unmarshal(r.Crawl, &crawl); err != nil {
			return nil, err
		}
		run.Crawl = &crawl
	}

	if r.Generation != nil {
		var gen domain.GenerationSummary
		if err := json.Unmarshal(r.Generation, &gen); err != nil {
			return nil, err
		}
		run.Generation = &gen
	}

	if r.Execution != nil {
		var exec domain.ExecutionSummary
		if err := json.Unmarshal(r.Execution, &exec); err != nil {
			return nil, err
		}
		run.Execution = &exec
	}

	return run, nil
}

// marshalPhases encodes the run's phase outputs for JSONB columns,
// using interface{} so nil phases insert as NULL.
func marshalPhases(run *domain.Run) (analysis, crawl, generation, execution interface{}, err error) {
	if run.Analysis != nil {
		if analysis, err = json.Marshal(run.Analysis); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if run.Crawl != nil {
		if crawl, err = json.Marshal(run.Crawl); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if run.Generation != nil {
		if generation, err = json.Marshal(run.Generation); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if run.Execution != nil {
		if execution, err = json.Marshal(run.Execution); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return analysis, crawl, generation, execution, nil
}

// Create inserts a new run
func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	analysis, crawl, generation, execution, err := marshalPhases(run)
	if err != nil {
		return err
	}

	var reportURI *string
	if run.ReportURI != "" {
		reportURI = &run.ReportURI
	}
	var runErr *string
	if run.Error != "" {
		runErr = &run.Error
	}

	query := `
		INSERT INTO runs (
			id, story, feature, user_role, start_url, depth, status,
			workflow_id, workflow_run_id, analysis, crawl, generation, execution,
			report_uri, error, started_at, completed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Story,
		run.Feature,
		run.UserRole,
		run.StartURL,
		run.Depth,
		string(run.Status),
		run.WorkflowID,
		run.WorkflowRunID,
		analysis,
		crawl,
		generation,
		execution,
		reportURI,
		runErr,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)
	return err
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, story, feature, user_role, start_url, depth, status,
		       workflow_id, workflow_run_id, analysis, crawl, generation, execution,
		       report_uri, error, started_at, completed_at, created_at, updated_at, deleted_at
		FROM runs
		WHERE id = $1 AND deleted_at IS NULL
	`

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("run", id)
		}
		return nil, err
	}

	return row.toDomain()
}

// GetByWorkflowID retrieves a run by Temporal workflow ID
func (r *RunRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.Run, error) {
	query := `
		SELECT id, story, feature, user_role, start_url, depth, status,
		       workflow_id, workflow_run_id, analysis, crawl, generation, execution,
		       report_uri, error, started_at, completed_at, created_at, updated_at, deleted_at
		FROM runs
		WHERE workflow_id = $1 AND deleted_at IS NULL
	`

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, workflowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("run", workflowID)
		}
		return nil, err
	}

	return row.toDomain()
}

// List retrieves paginated runs, newest first
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*domain.Run, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM runs WHERE deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, story, feature, user_role, start_url, depth, status,
		       workflow_id, workflow_run_id, analysis, crawl, generation, execution,
		       report_uri, error, started_at, completed_at, created_at, updated_at, deleted_at
		FROM runs
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, err
	}

	runs := make([]*domain.Run, len(rows))
	for i, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		runs[i] = run
	}

	return runs, total, nil
}

// Update updates an existing run
func (r *RunRepository) Update(ctx context.Context, run *domain.Run) error {
	analysis, crawl, generation, execution, err := marshalPhases(run)
	if err != nil {
		return err
	}

	var reportURI *string
	if run.ReportURI != "" {
		reportURI = &run.ReportURI
	}
	var runErr *string
	if run.Error != "" {
		runErr = &run.Error
	}

	query := `
		UPDATE runs
		SET feature = $2, user_role = $3, status = $4,
		    workflow_id = $5, workflow_run_id = $6,
		    analysis = $7, crawl = $8, generation = $9, execution = $10,
		    report_uri = $11, error = $12, started_at = $13, completed_at = $14,
		    updated_at = $15
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Feature,
		run.UserRole,
		string(run.Status),
		run.WorkflowID,
		run.WorkflowRunID,
		analysis,
		crawl,
		generation,
		execution,
		reportURI,
		runErr,
		run.StartedAt,
		run.CompletedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundError("run", run.ID)
	}

	return nil
}

// UpdateStatus updates only the status of a run
func (r *RunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	query := `
		UPDATE runs
		SET status = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundError("run", id)
	}

	return nil
}

// Delete soft deletes a run
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE runs
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundError("run", id)
	}

	return nil
}
