package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/binaa-yemen/raster-pipeline/internal/config"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
	"github.com/binaa-yemen/raster-pipeline/internal/storage"
)

// Runtime is the worker pool: it pulls tasks off a QueueSet, enforces
// per-kind rate limits and time limits, runs the raster engine, persists
// progress, uploads artifacts, and retries transient failures with
// backoff. It is the in-process replacement for the Celery worker fleet
// described in the system this pipeline succeeds.
type Runtime struct {
	cfg   config.Queue
	store rasterjob.Store
	objs  *storage.ObjectStore

	queues *QueueSet

	limiters map[TaskKind]*rate.Limiter

	activeTasks atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// WorkerStats reports configured worker capacity alongside the current
// per-queue backlog.
type WorkerStats struct {
	Workers     int               `json:"workers"`
	QueueDepths map[QueueName]int `json:"queue_depths"`
}

// QueueStats is the /queue/status payload: worker capacity and backlog,
// tasks currently being worked, and a 24h job-count summary, matching the
// `{queue_stats:{worker_stats, active_tasks, job_counts_24h}}` wire
// contract.
type QueueStats struct {
	WorkerStats  WorkerStats            `json:"worker_stats"`
	ActiveTasks  int                    `json:"active_tasks"`
	JobCounts24h rasterjob.StatusCounts `json:"job_counts_24h"`
}

// New builds a Runtime. Call Start to launch its worker goroutines and
// housekeeping tickers.
func New(cfg config.Queue, store rasterjob.Store, objs *storage.ObjectStore) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		cfg:    cfg,
		store:  store,
		objs:   objs,
		queues: newQueueSet(),
		limiters: map[TaskKind]*rate.Limiter{
			TaskProcessGeoTIFF: rate.NewLimiter(rate.Limit(5), 5),
			TaskProcessArchive: rate.NewLimiter(rate.Limit(3), 3),
			TaskCleanupOldJobs: rate.NewLimiter(rate.Limit(10), 10),
			TaskUpdateStats:    rate.NewLimiter(rate.Limit(10), 10),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker pool and housekeeping goroutines.
func (r *Runtime) Start() {
	for i := 0; i < max(r.cfg.Workers, 1); i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(2)
	go r.runCleanupTicker()
	go r.runStatsTicker()
}

// Stop signals every goroutine to exit and waits for them to drain.
func (r *Runtime) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Submit enqueues a task onto its queue, choosing the lane by kind and
// priority so archive extraction (slower, rarer) never starves
// single-GeoTIFF ingests, and a caller-requested "high" priority ingest
// jumps ahead of both onto the high_priority lane.
func (r *Runtime) Submit(t *Task) bool {
	t.EnqueuedAt = time.Now()
	switch {
	case t.Priority == PriorityHigh && (t.Kind == TaskProcessGeoTIFF || t.Kind == TaskProcessArchive):
		t.Queue = QueueHighPriority
	case t.Kind == TaskProcessGeoTIFF:
		t.Queue = QueueProcessing
	case t.Kind == TaskProcessArchive:
		t.Queue = QueueValidation
	case t.Kind == TaskCleanupOldJobs:
		t.Queue = QueueCleanup
	case t.Kind == TaskUpdateStats:
		t.Queue = QueueDefault
	default:
		t.Queue = QueueDefault
	}
	return r.queues.Enqueue(t)
}

// QueueStatus reports the queue backlog, the configured worker count, the
// number of tasks currently being worked, and job counts over the last 24h,
// for the /queue/status endpoint.
func (r *Runtime) QueueStatus(ctx context.Context) (QueueStats, error) {
	counts, err := r.store.JobCountsLast24h(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{
		WorkerStats: WorkerStats{
			Workers:     max(r.cfg.Workers, 1),
			QueueDepths: r.queues.Depths(),
		},
		ActiveTasks:  int(r.activeTasks.Load()),
		JobCounts24h: counts,
	}, nil
}

func (r *Runtime) worker(id int) {
	defer r.wg.Done()
	l := slog.With("worker_id", id)
	processed := 0

	for {
		t, ok := r.dequeue()
		if !ok {
			return
		}

		if lim, ok := r.limiters[t.Kind]; ok {
			if err := lim.Wait(r.ctx); err != nil {
				return
			}
		}

		l.Info("worker picked up task", "kind", t.Kind, "job_id", t.JobID, "attempt", t.Attempt)
		r.activeTasks.Add(1)
		err := r.run(t)
		r.activeTasks.Add(-1)
		if err != nil {
			l.Error("task failed", "kind", t.Kind, "job_id", t.JobID, "error", err)
			r.handleFailure(t, err)
		}

		// A worker goroutine that has handled cfg.MaxTasksPerWorker tasks
		// exits and a fresh goroutine takes its slot. This matches the task
		// count of the original deployment's worker_max_tasks_per_child; the
		// process itself, and its memory, are not recycled.
		processed++
		if r.cfg.MaxTasksPerWorker > 0 && processed >= r.cfg.MaxTasksPerWorker {
			l.Info("worker recycling after max tasks", "processed", processed)
			r.wg.Add(1)
			go r.worker(id)
			return
		}
	}
}

// dequeue polls queues in priority order with a short select so the
// runtime also notices ctx cancellation promptly instead of blocking
// forever on an empty high_priority channel.
func (r *Runtime) dequeue() (*Task, bool) {
	qs := r.queues
	for {
		select {
		case <-r.ctx.Done():
			return nil, false
		case t := <-qs.lanes[QueueHighPriority]:
			return t, true
		default:
		}
		for _, name := range AllQueues[1:] {
			select {
			case t := <-qs.lanes[name]:
				return t, true
			default:
			}
		}
		select {
		case <-r.ctx.Done():
			return nil, false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (r *Runtime) run(t *Task) error {
	timeout := r.cfg.GeoTIFFTimeout
	if t.Kind == TaskProcessArchive {
		timeout = r.cfg.ArchiveTimeout
	}
	ctx, cancel := context.WithTimeout(r.ctx, timeout)
	defer cancel()

	switch t.Kind {
	case TaskProcessGeoTIFF, TaskProcessArchive:
		return r.runIngest(ctx, t)
	case TaskCleanupOldJobs:
		return r.runCleanup(ctx)
	case TaskUpdateStats:
		return r.runStats(ctx)
	default:
		return nil
	}
}

// handleFailure classifies the error, marks the job failed immediately for
// non-retriable kinds, and otherwise requeues with a backoff of
// cfg.RetryInitialDelay × attempt² up to cfg.MaxRetries attempts.
func (r *Runtime) handleFailure(t *Task, err error) {
	je := rasterjob.AsJobError(err)
	ctx := context.Background()

	if !t.Kind.retriable() || !je.Retriable() || t.Attempt >= r.cfg.MaxRetries {
		r.store.UpdateLayer(ctx, &rasterjob.Layer{ID: t.LayerID, Status: rasterjob.LayerError})
		r.store.FinishJob(ctx, t.JobID, rasterjob.StatusFailed, rasterjob.Metadata{
			"error_kind": je.Kind,
			"error":      je.Message,
		})
		return
	}

	t.Attempt++
	delay := r.cfg.RetryInitialDelay * time.Duration(t.Attempt*t.Attempt)
	slog.Warn("requeueing task after transient failure", "job_id", t.JobID, "attempt", t.Attempt, "delay", delay)

	go func() {
		select {
		case <-time.After(delay):
		case <-r.ctx.Done():
			return
		}
		if !r.queues.Enqueue(t) {
			slog.Error("failed to requeue task, queue full", "job_id", t.JobID)
		}
	}()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
