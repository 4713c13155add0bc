package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/binaa-yemen/raster-pipeline/internal/config"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
)

// mockStore is a minimal in-memory rasterjob.Store double, in the style of
// MeKo-Christian-WaterColorMap's pool_test.go mockGenerator: it records the
// calls the runtime makes rather than reimplementing real persistence.
type mockStore struct {
	finishCalls []finishCall
	layerCalls  []*rasterjob.Layer
	jobCounts   rasterjob.StatusCounts
}

type finishCall struct {
	jobID    string
	status   rasterjob.Status
	metadata rasterjob.Metadata
}

func (m *mockStore) CreateJobAndLayer(ctx context.Context, job *rasterjob.Job, layer *rasterjob.Layer) error {
	return nil
}
func (m *mockStore) GetJob(ctx context.Context, jobID string) (*rasterjob.Job, error) {
	return nil, nil
}
func (m *mockStore) UpdateProgress(ctx context.Context, jobID string, status rasterjob.Status, progress int, metadata rasterjob.Metadata) (bool, error) {
	return true, nil
}
func (m *mockStore) FinishJob(ctx context.Context, jobID string, status rasterjob.Status, metadata rasterjob.Metadata) (bool, error) {
	m.finishCalls = append(m.finishCalls, finishCall{jobID, status, metadata})
	return true, nil
}
func (m *mockStore) CancelJob(ctx context.Context, jobID string) (bool, error) { return true, nil }
func (m *mockStore) UpdateLayer(ctx context.Context, layer *rasterjob.Layer) error {
	m.layerCalls = append(m.layerCalls, layer)
	return nil
}
func (m *mockStore) JobCountsLast24h(ctx context.Context) (rasterjob.StatusCounts, error) {
	return m.jobCounts, nil
}
func (m *mockStore) ProcessingStatsLast24h(ctx context.Context) ([]rasterjob.ProcessingStat, error) {
	return nil, nil
}
func (m *mockStore) DeleteOldJobs(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}
func (m *mockStore) Health(ctx context.Context) error { return nil }

var _ rasterjob.Store = (*mockStore)(nil)

func TestSubmitRoutesTaskToExpectedQueue(t *testing.T) {
	store := &mockStore{}
	r := New(config.Queue{Workers: 0}, store, nil)

	cases := []struct {
		kind TaskKind
		want QueueName
	}{
		{TaskProcessGeoTIFF, QueueProcessing},
		{TaskProcessArchive, QueueValidation},
		{TaskCleanupOldJobs, QueueCleanup},
		{TaskUpdateStats, QueueDefault},
	}
	for _, tc := range cases {
		task := &Task{Kind: tc.kind, JobID: "job-1"}
		require.True(t, r.Submit(task))
		require.Equal(t, tc.want, task.Queue)
	}

	depths := r.queues.Depths()
	require.Equal(t, 1, depths[QueueProcessing])
	require.Equal(t, 1, depths[QueueValidation])
	require.Equal(t, 1, depths[QueueCleanup])
	require.Equal(t, 1, depths[QueueDefault])
}

func TestSubmitRoutesHighPriorityIngestToHighPriorityQueue(t *testing.T) {
	store := &mockStore{}
	r := New(config.Queue{Workers: 0}, store, nil)

	task := &Task{Kind: TaskProcessGeoTIFF, Priority: PriorityHigh, JobID: "job-1"}
	require.True(t, r.Submit(task))
	require.Equal(t, QueueHighPriority, task.Queue)
	require.Equal(t, 1, r.queues.Depths()[QueueHighPriority])
}

func TestQueueStatusReportsWorkersActiveTasksAndJobCounts(t *testing.T) {
	store := &mockStore{jobCounts: rasterjob.StatusCounts{rasterjob.StatusCompleted: 3}}
	r := New(config.Queue{Workers: 4}, store, nil)
	r.activeTasks.Add(2)

	stats, err := r.QueueStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.WorkerStats.Workers)
	require.Equal(t, 2, stats.ActiveTasks)
	require.Equal(t, rasterjob.StatusCounts{rasterjob.StatusCompleted: 3}, stats.JobCounts24h)
}

func TestQueueSetEnqueueRejectsWhenFull(t *testing.T) {
	qs := &QueueSet{lanes: map[QueueName]chan *Task{QueueDefault: make(chan *Task, 1)}}
	require.True(t, qs.Enqueue(&Task{Queue: QueueDefault}))
	require.False(t, qs.Enqueue(&Task{Queue: QueueDefault}), "a full lane must reject rather than block")
}

func TestHandleFailureMarksJobFailedForNonRetriableKind(t *testing.T) {
	store := &mockStore{}
	r := New(config.Queue{MaxRetries: 3, RetryInitialDelay: time.Millisecond}, store, nil)
	defer r.cancel()

	task := &Task{Kind: TaskCleanupOldJobs, JobID: "job-1", LayerID: "layer-1"}
	r.handleFailure(task, rasterjob.NewIOTransientError(errBoom("disk full")))

	require.Len(t, store.finishCalls, 1)
	require.Equal(t, rasterjob.StatusFailed, store.finishCalls[0].status)
	require.Len(t, store.layerCalls, 1)
	require.Equal(t, rasterjob.LayerError, store.layerCalls[0].Status)
}

func TestHandleFailureMarksJobFailedForNonRetriableError(t *testing.T) {
	store := &mockStore{}
	r := New(config.Queue{MaxRetries: 3, RetryInitialDelay: time.Millisecond}, store, nil)
	defer r.cancel()

	task := &Task{Kind: TaskProcessGeoTIFF, JobID: "job-1", LayerID: "layer-1"}
	r.handleFailure(task, rasterjob.NewValidationError("corrupt_tiff"))

	require.Len(t, store.finishCalls, 1)
	require.Equal(t, rasterjob.StatusFailed, store.finishCalls[0].status)
}

func TestHandleFailureRequeuesRetriableTransientFailure(t *testing.T) {
	store := &mockStore{}
	r := New(config.Queue{MaxRetries: 3, RetryInitialDelay: time.Millisecond}, store, nil)
	defer r.cancel()

	task := &Task{Kind: TaskProcessGeoTIFF, JobID: "job-1", LayerID: "layer-1", Queue: QueueProcessing}
	r.handleFailure(task, rasterjob.NewIOTransientError(errBoom("connection reset")))

	require.Equal(t, 1, task.Attempt, "attempt counter must increment before the backoff requeue")
	require.Empty(t, store.finishCalls, "a retriable transient failure must not finish the job yet")

	require.Eventually(t, func() bool {
		return r.queues.Depths()[QueueProcessing] == 1
	}, time.Second, 5*time.Millisecond, "task must reappear on its queue after the backoff delay")
}

func TestHandleFailureGivesUpAfterMaxRetries(t *testing.T) {
	store := &mockStore{}
	r := New(config.Queue{MaxRetries: 1, RetryInitialDelay: time.Millisecond}, store, nil)
	defer r.cancel()

	task := &Task{Kind: TaskProcessGeoTIFF, JobID: "job-1", LayerID: "layer-1", Attempt: 1}
	r.handleFailure(task, rasterjob.NewIOTransientError(errBoom("still failing")))

	require.Len(t, store.finishCalls, 1, "attempt already at MaxRetries must fail rather than requeue again")
}

type errBoom string

func (e errBoom) Error() string { return string(e) }
