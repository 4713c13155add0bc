package rasterjob

import "context"

// StatusCounts maps a job status to how many jobs held it in the last 24h.
type StatusCounts map[Status]int

// ProcessingStat is one row of the update_processing_statistics aggregate.
type ProcessingStat struct {
	Status      Status  `db:"status"`
	Count       int     `db:"count"`
	AvgDuration float64 `db:"avg_duration"` // seconds
}

// Store is the durable persistence contract for jobs and layers. It is
// implemented by internal/repositories against Postgres.
type Store interface {
	// CreateJobAndLayer writes the job (queued, progress 0) and upserts the
	// layer (processing) in a single transaction, per the Dispatcher's
	// Enqueue contract. The layer upsert uses ON CONFLICT so concurrent
	// enqueues against the same layer_id never produce a torn row.
	CreateJobAndLayer(ctx context.Context, job *Job, layer *Layer) error

	// GetJob returns the job projection, or (nil, nil) if absent.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// UpdateProgress advances a job's progress and status while it is
	// non-terminal. The update is guarded by WHERE status IN (...) so a
	// losing writer can detect a lost race (rows affected == 0).
	UpdateProgress(ctx context.Context, jobID string, status Status, progress int, metadata Metadata) (bool, error)

	// FinishJob writes the terminal status (completed/failed/cancelled)
	// along with final metadata, honoring terminal-state stickiness: once a
	// job is completed or failed, a later cancellation is ignored.
	FinishJob(ctx context.Context, jobID string, status Status, metadata Metadata) (bool, error)

	// CancelJob transitions a job to cancelled only if its current status
	// is queued or processing. Returns false if the job was not cancellable.
	CancelJob(ctx context.Context, jobID string) (bool, error)

	// UpdateLayer applies the final artifact descriptors to a layer on
	// success, or marks it errored on terminal failure.
	UpdateLayer(ctx context.Context, layer *Layer) error

	// JobCountsLast24h aggregates job counts by status for /queue/status.
	JobCountsLast24h(ctx context.Context) (StatusCounts, error)

	// ProcessingStatsLast24h aggregates count and average duration by
	// status for the update_processing_statistics housekeeping task.
	ProcessingStatsLast24h(ctx context.Context) ([]ProcessingStat, error)

	// DeleteOldJobs removes completed and failed jobs older than
	// olderThanDays (cancelled jobs are kept) and returns how many rows
	// were deleted, for cleanup_old_jobs.
	DeleteOldJobs(ctx context.Context, olderThanDays int) (int64, error)

	// Health verifies the store's backing connection is reachable.
	Health(ctx context.Context) error
}
