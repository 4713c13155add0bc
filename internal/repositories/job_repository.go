package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/binaa-yemen/raster-pipeline/internal/database"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
)

// JobRepository persists jobs and layers against Postgres. It implements
// rasterjob.Store.
type JobRepository struct {
	db *database.DB
}

func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ rasterjob.Store = (*JobRepository)(nil)

func (r *JobRepository) CreateJobAndLayer(ctx context.Context, job *rasterjob.Job, layer *rasterjob.Layer) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gis_layers (id, filename, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = now()`,
		layer.ID, layer.Filename, layer.Status, layer.Metadata)
	if err != nil {
		return fmt.Errorf("upsert layer: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO processing_jobs (id, layer_id, status, progress, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`,
		job.ID, job.LayerID, job.Status, job.Progress, job.Metadata)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return tx.Commit()
}

func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*rasterjob.Job, error) {
	var job rasterjob.Job
	err := r.db.GetContext(ctx, &job, `
		SELECT id, layer_id, status, progress, metadata, created_at, updated_at
		FROM processing_jobs WHERE id = $1`, jobID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// UpdateProgress is guarded by WHERE status NOT IN (terminal states), so a
// worker that lost a cancellation race (or is retrying after the job was
// already finished by a different attempt) can detect it via rows affected.
func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, status rasterjob.Status, progress int, metadata rasterjob.Metadata) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = $1, progress = GREATEST(progress, $2), metadata = metadata || $3, updated_at = now()
		WHERE id = $4 AND status IN ('queued', 'processing')`,
		status, progress, metadata, jobID)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FinishJob writes a terminal status. The WHERE clause enforces terminal
// stickiness: a completed or failed job can never be overwritten, including
// by a late cancellation request racing the same transition.
func (r *JobRepository) FinishJob(ctx context.Context, jobID string, status rasterjob.Status, metadata rasterjob.Metadata) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = $1, progress = CASE WHEN $1 = 'completed' THEN 100 ELSE progress END,
		    metadata = metadata || $2, updated_at = now()
		WHERE id = $3 AND status IN ('queued', 'processing')`,
		status, metadata, jobID)
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *JobRepository) CancelJob(ctx context.Context, jobID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('queued', 'processing')`, jobID)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateLayer writes artifact URLs and geometry onto a layer row. It is
// guarded against a job that already reached a terminal state: if the job
// owning this layer was cancelled while a worker was mid-upload, the worker
// must not resurrect it with "processed" status and live artifact URLs after
// the cancellation already won. A job that finished normally (completed or
// failed) is likewise left alone, since this is always called before the
// matching FinishJob write and a retried/duplicate call must not clobber a
// layer that another attempt already finalized.
func (r *JobRepository) UpdateLayer(ctx context.Context, layer *rasterjob.Layer) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE gis_layers SET
			status = $1, image_url = $2, cog_url = $3, bounds_wgs84 = $4,
			width = $5, height = $6, crs = $7, metadata = metadata || $8, updated_at = now()
		WHERE id = $9
		  AND EXISTS (
		      SELECT 1 FROM processing_jobs
		      WHERE layer_id = $9 AND status IN ('queued', 'processing')
		  )`,
		layer.Status, layer.ImageURL, layer.COGURL, layer.BoundsWGS84,
		layer.Width, layer.Height, layer.CRS, layer.Metadata, layer.ID)
	if err != nil {
		return fmt.Errorf("update layer: %w", err)
	}
	return nil
}

func (r *JobRepository) JobCountsLast24h(ctx context.Context) (rasterjob.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, count(*) FROM processing_jobs
		WHERE created_at > now() - interval '24 hours'
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	defer rows.Close()

	counts := rasterjob.StatusCounts{}
	for rows.Next() {
		var status rasterjob.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *JobRepository) ProcessingStatsLast24h(ctx context.Context) ([]rasterjob.ProcessingStat, error) {
	var stats []rasterjob.ProcessingStat
	err := r.db.SelectContext(ctx, &stats, `
		SELECT status, count(*) as count,
		       COALESCE(extract(epoch from avg(updated_at - created_at)), 0) as avg_duration
		FROM processing_jobs
		WHERE created_at > now() - interval '24 hours'
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("processing stats: %w", err)
	}
	return stats, nil
}

// DeleteOldJobs removes jobs in {completed, failed} older than
// olderThanDays, mirroring the housekeeping task's retention sweep.
// Cancelled jobs are deliberately left out of the sweep: a cancellation can
// still be racing a worker's terminal FinishJob write (see the Dispatcher's
// Cancel handler), and reaping that row early would destroy the audit trail
// of which write actually won before the race is resolved.
func (r *JobRepository) DeleteOldJobs(ctx context.Context, olderThanDays int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM processing_jobs
		WHERE status IN ('completed', 'failed')
		  AND created_at < now() - ($1 || ' days')::interval`, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return res.RowsAffected()
}

func (r *JobRepository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}
