package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Report represents a rendered test report stored as an artifact.
type Report struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	RunID       uuid.UUID    `json:"run_id" db:"run_id"`
	Format      ReportFormat `json:"format" db:"format"`
	URI         string       `json:"uri" db:"uri"`
	Size        int64        `json:"size" db:"size"`
	PassRate    int          `json:"pass_rate" db:"pass_rate"`
	GeneratedAt time.Time    `json:"generated_at" db:"generated_at"`
	Timestamps
}

// ReportFormat indicates output format
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatJSON ReportFormat = "json"
)

func (f ReportFormat) IsValid() bool {
	return f == ReportFormatHTML || f == ReportFormatJSON
}

// NewReport creates a report record pointing at a stored artifact.
func NewReport(runID uuid.UUID, format ReportFormat, uri string, size int64, passRate int) *Report {
	now := time.Now().UTC()
	return &Report{
		ID:          uuid.New(),
		RunID:       runID,
		Format:      format,
		URI:         uri,
		Size:        size,
		PassRate:    passRate,
		GeneratedAt: now,
		Timestamps: Timestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// ReportRepository defines data access for reports
type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetByRunID(ctx context.Context, runID uuid.UUID) ([]*Report, error)
	GetLatest(ctx context.Context) (*Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
