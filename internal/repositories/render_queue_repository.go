package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sdbooth/internal/models"
)

// RenderQueueRepository implements RenderQueue on PostgreSQL.
type RenderQueueRepository struct {
	db DBTX
}

func NewRenderQueueRepository(db DBTX) *RenderQueueRepository {
	return &RenderQueueRepository{db: db}
}

func (r *RenderQueueRepository) FindPendingOldest(ctx context.Context) (*models.RenderJob, error) {
	var j models.RenderJob
	err := r.db.QueryRow(ctx, `
		SELECT id, prompt_id, number, status, created_at
		FROM render_queue
		WHERE status = $1
		ORDER BY seq ASC
		LIMIT 1
	`, models.StatusPending).Scan(&j.ID, &j.PromptID, &j.Number, &j.Status, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingJob
		}
		if isUndefinedTable(err) {
			return nil, fmt.Errorf("find pending job: %w", ErrSchemaMissing)
		}
		return nil, fmt.Errorf("find pending job: %w", err)
	}
	return &j, nil
}

func (r *RenderQueueRepository) Insert(ctx context.Context, job *models.RenderJob) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO render_queue (id, prompt_id, number, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, job.PromptID, job.Number, job.Status, job.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert render job %s: %w", job.ID, ErrDuplicateJob)
		}
		if isUndefinedTable(err) {
			return fmt.Errorf("insert render job: %w", ErrSchemaMissing)
		}
		return fmt.Errorf("insert render job: %w", err)
	}
	return nil
}

func (r *RenderQueueRepository) UpdateStatusByExternalID(ctx context.Context, promptID string, status models.JobStatus) (int64, error) {
	if !models.StatusPending.CanTransition(status) {
		return 0, fmt.Errorf("invalid target status %q", status)
	}
	cmd, err := r.db.Exec(ctx, `
		UPDATE render_queue
		SET status = $2, updated_at = now()
		WHERE prompt_id = $1 AND status = $3
	`, promptID, status, models.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("update render job status: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *RenderQueueRepository) ClearAll(ctx context.Context) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM render_queue`)
	if err != nil {
		return 0, fmt.Errorf("clear render queue: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *RenderQueueRepository) List(ctx context.Context, status models.JobStatus, limit int) ([]models.RenderJob, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, prompt_id, number, status, created_at
			FROM render_queue WHERE status = $1
			ORDER BY seq DESC LIMIT $2
		`, status, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, prompt_id, number, status, created_at
			FROM render_queue
			ORDER BY seq DESC LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list render jobs: %w", err)
	}
	defer rows.Close()

	out := make([]models.RenderJob, 0, limit)
	for rows.Next() {
		var j models.RenderJob
		if err := rows.Scan(&j.ID, &j.PromptID, &j.Number, &j.Status, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan render job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
