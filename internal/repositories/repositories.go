package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sdbooth/internal/models"
)

var ErrNoPendingJob = errors.New("no pending render job")

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// RenderQueue is the job store the tracker and the submission path share.
type RenderQueue interface {
	// FindPendingOldest returns the earliest inserted Pending job or ErrNoPendingJob.
	FindPendingOldest(ctx context.Context) (*models.RenderJob, error)
	Insert(ctx context.Context, job *models.RenderJob) error
	// UpdateStatusByExternalID moves Pending jobs with promptID to status and
	// reports how many rows changed. Jobs already terminal are left alone.
	UpdateStatusByExternalID(ctx context.Context, promptID string, status models.JobStatus) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	List(ctx context.Context, status models.JobStatus, limit int) ([]models.RenderJob, error)
}

// TemplateStore is the read side of the portrait catalogue plus seeding.
type TemplateStore interface {
	FindTemplatesBySex(ctx context.Context, sex string) ([]models.Portrait, error)
	Count(ctx context.Context) (int, error)
	InsertMany(ctx context.Context, portraits []models.Portrait) error
}
