// Package worker implements the in-process job-queue and worker-pool
// runtime that replaces the original system's Celery deployment: the same
// named queues, per-task rate limits, and retry/backoff policy, but backed
// by buffered Go channels instead of a Redis broker.
package worker

// QueueName identifies one of the runtime's named lanes. Tasks are routed
// to a queue by kind and priority, mirroring the Celery routing table this
// runtime replaces.
type QueueName string

const (
	QueueDefault       QueueName = "default"
	QueueProcessing    QueueName = "processing"
	QueueValidation    QueueName = "validation"
	QueueCleanup       QueueName = "cleanup"
	QueueNotifications QueueName = "notifications"
	QueueHighPriority  QueueName = "high_priority"
)

// AllQueues lists every lane the runtime services, in the order workers
// poll them (high_priority first).
var AllQueues = []QueueName{
	QueueHighPriority,
	QueueProcessing,
	QueueValidation,
	QueueDefault,
	QueueNotifications,
	QueueCleanup,
}

const queueCapacity = 1000

// QueueSet holds one buffered channel per named queue.
type QueueSet struct {
	lanes map[QueueName]chan *Task
}

func newQueueSet() *QueueSet {
	qs := &QueueSet{lanes: make(map[QueueName]chan *Task, len(AllQueues))}
	for _, q := range AllQueues {
		qs.lanes[q] = make(chan *Task, queueCapacity)
	}
	return qs
}

// Enqueue places t on its named queue. It does not block indefinitely: a
// full queue means the system is overloaded, and the caller (the
// dispatcher) is expected to surface that as a 503 rather than hang the
// HTTP request.
func (qs *QueueSet) Enqueue(t *Task) bool {
	select {
	case qs.lanes[t.Queue] <- t:
		return true
	default:
		return false
	}
}

// Depths reports the current backlog per queue, for /queue/status.
func (qs *QueueSet) Depths() map[QueueName]int {
	out := make(map[QueueName]int, len(qs.lanes))
	for name, ch := range qs.lanes {
		out[name] = len(ch)
	}
	return out
}
