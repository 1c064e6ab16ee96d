package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of deferred work. Returning an error requeues the job until
// the retry budget runs out; delivery is at least once with no ordering
// guarantee across jobs. Alias so callers can hand in plain funcs through
// their own queue interfaces.
type Job = func(ctx context.Context) error

type task struct {
	name    string
	fn      Job
	attempt int
}

// Queue is an in-process task queue: a buffered channel drained by a fixed
// pool of workers.
type Queue struct {
	tasks      chan task
	log        *slog.Logger
	workers    int
	maxRetries int
	backoff    time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(workers int, log *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 4
	}
	return &Queue{
		tasks:      make(chan task, 256),
		log:        log,
		workers:    workers,
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
}

func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx)
	}
}

// Enqueue schedules fn for execution. After Stop it is a no-op.
func (q *Queue) Enqueue(name string, fn Job) {
	q.push(task{name: name, fn: fn})
}

func (q *Queue) push(t task) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.log.Warn("queue closed, dropping task", "task", t.name)
		return
	}
	q.tasks <- t
}

// Stop closes intake and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for t := range q.tasks {
		if err := t.fn(ctx); err != nil {
			q.retry(t, err)
		}
	}
}

func (q *Queue) retry(t task, err error) {
	t.attempt++
	if t.attempt >= q.maxRetries {
		q.log.Error("task failed permanently", "task", t.name, "attempts", t.attempt, "err", err)
		return
	}
	q.log.Warn("task failed, retrying", "task", t.name, "attempt", t.attempt, "err", err)
	delay := time.Duration(t.attempt) * q.backoff
	time.AfterFunc(delay, func() { q.push(t) })
}
