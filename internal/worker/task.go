package worker

import "time"

// TaskKind names one of the runtime's task bodies.
type TaskKind string

const (
	TaskProcessGeoTIFF TaskKind = "process_geotiff"
	TaskProcessArchive TaskKind = "process_zip_archive"
	TaskCleanupOldJobs TaskKind = "cleanup_old_jobs"
	TaskUpdateStats    TaskKind = "update_processing_statistics"
)

// Priority selects between the normal per-kind queue and the high_priority
// lane for ingest tasks.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Task is one unit of work routed through a QueueSet.
type Task struct {
	Kind     TaskKind
	Queue    QueueName
	JobID    string
	LayerID  string
	SrcPath  string // local staging path of the uploaded file
	Original string // original filename, for the manifest
	Priority Priority

	Attempt    int
	EnqueuedAt time.Time
}

// retriable task kinds get requeued with backoff on io_transient failures;
// cleanup/stats tasks run on a schedule and are never retried mid-run.
func (k TaskKind) retriable() bool {
	return k == TaskProcessGeoTIFF || k == TaskProcessArchive
}
