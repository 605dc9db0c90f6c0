package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storyqa/storyqa/internal/domain"
)

// ReportRepository implements domain.ReportRepository with PostgreSQL
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// reportRow represents the database row structure
type reportRow struct {
	ID          uuid.UUID  `db:"id"`
	RunID       uuid.UUID  `db:"run_id"`
	Format      string     `db:"format"`
	URI         string     `db:"uri"`
	SizeBytes   int64      `db:"size_bytes"`
	PassRate    int        `db:"pass_rate"`
	GeneratedAt time.Time  `db:"generated_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
}

func (r *reportRow) toDomain() *domain.Report {
	return &domain.Report{
		ID:          r.ID,
		RunID:       r.RunID,
		Format:      domain.ReportFormat(r.Format),
		URI:         r.URI,
		Size:        r.SizeBytes,
		PassRate:    r.PassRate,
		GeneratedAt: r.GeneratedAt,
		Timestamps: domain.Timestamps{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			DeletedAt: r.DeletedAt,
		},
	}
}

// Create inserts a new report
func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO reports (
			id, run_id, format, uri, size_bytes, pass_rate,
			generated_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.RunID,
		string(report.Format),
		report.URI,
		report.Size,
		report.PassRate,
		report.GeneratedAt,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.NotFoundError("run", report.RunID)
		}
		return err
	}

	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	query := `
		SELECT id, run_id, format, uri, size_bytes, pass_rate,
		       generated_at, created_at, updated_at, deleted_at
		FROM reports
		WHERE id = $1 AND deleted_at IS NULL
	`

	var row reportRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("report", id)
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// GetByRunID retrieves all reports for a run, newest first
func (r *ReportRepository) GetByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.Report, error) {
	query := `
		SELECT id, run_id, format, uri, size_bytes, pass_rate,
		       generated_at, created_at, updated_at, deleted_at
		FROM reports
		WHERE run_id = $1 AND deleted_at IS NULL
		ORDER BY generated_at DESC
	`

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, err
	}

	reports := make([]*domain.Report, len(rows))
	for i, row := range rows {
		reports[i] = row.toDomain()
	}

	return reports, nil
}

// GetLatest retrieves the most recently generated report. Backs the
// download endpoint when the cached copy has expired.
func (r *ReportRepository) GetLatest(ctx context.Context) (*domain.Report, error) {
	query := `
		SELECT id, run_id, format, uri, size_bytes, pass_rate,
		       generated_at, created_at, updated_at, deleted_at
		FROM reports
		WHERE deleted_at IS NULL
		ORDER BY generated_at DESC
		LIMIT 1
	`

	var row reportRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("report", "latest")
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// Delete soft deletes a report
func (r *ReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE reports
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
		return domain.NotFoundError("report", id)
	}

	return nil
}
