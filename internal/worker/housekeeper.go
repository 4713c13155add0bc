package worker

import (
	"time"

	"github.com/google/uuid"
)

// runCleanupTicker periodically submits a cleanup_old_jobs task, mirroring
// the hourly beat schedule of the system this runtime replaces.
func (r *Runtime) runCleanupTicker() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.queues.Enqueue(&Task{Kind: TaskCleanupOldJobs, Queue: QueueCleanup, JobID: uuid.NewString()})
		}
	}
}

// runStatsTicker periodically submits an update_processing_statistics
// task, mirroring the 300-second beat schedule.
func (r *Runtime) runStatsTicker() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.queues.Enqueue(&Task{Kind: TaskUpdateStats, Queue: QueueDefault, JobID: uuid.NewString()})
		}
	}
}
