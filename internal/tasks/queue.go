// Package tasks provides a single-worker FIFO executor for long-running
// background jobs, decoupled from the request path. Tasks execute strictly
// in submission order; a failure in one task never stops the worker.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Func is the deferred unit of work. The context is canceled when the queue
// shuts down; tasks are expected to check it at safe points, they are never
// forcibly terminated.
type Func func(ctx context.Context) error

// State is the task lifecycle state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Record is the retained outcome of one task. Failures are recorded here,
// never propagated to the submitter, which has already returned.
type Record struct {
	ID        string
	Name      string
	State     State
	Submitted time.Time
	Started   time.Time
	Finished  time.Time
	Err       string
}

type task struct {
	rec *Record
	fn  Func
}

const defaultHistory = 64

// Queue owns submitted tasks from Submit until terminal state. One worker
// goroutine executes tasks one at a time in FIFO order.
type Queue struct {
	log     zerolog.Logger
	history int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*task
	records []*Record
	closed  bool
	done    chan struct{}
}

// New builds a queue and starts its worker. history bounds how many task
// records are retained; zero means a package default.
func New(log zerolog.Logger, history int) *Queue {
	if history <= 0 {
		history = defaultHistory
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		log:     log,
		history: history,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.worker()
	return q
}

// Submit enqueues fn and returns its task ID immediately. It never blocks on
// task execution. Submitting to a closed queue records an immediate failure.
func (q *Queue) Submit(name string, fn Func) string {
	rec := &Record{
		ID:        uuid.NewString(),
		Name:      name,
		State:     StateQueued,
		Submitted: time.Now(),
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.appendRecord(rec)
	if q.closed {
		rec.State = StateFailed
		rec.Finished = time.Now()
		rec.Err = "queue closed"
		tasksFailedTotal.Inc()
		return rec.ID
	}
	q.pending = append(q.pending, &task{rec: rec, fn: fn})
	queueDepth.Set(float64(len(q.pending)))
	tasksSubmittedTotal.Inc()
	q.cond.Signal()
	return rec.ID
}

// Depth returns the number of queued, not yet started tasks.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Records returns a snapshot of retained task records, oldest first.
func (q *Queue) Records() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Record, len(q.records))
	for i, r := range q.records {
		out[i] = *r
	}
	return out
}

// Close stops the worker after the in-flight task finishes and cancels the
// task context. Queued tasks that never started stay recorded as queued.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	q.cancel()
	<-q.done
}

func (q *Queue) worker() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		queueDepth.Set(float64(len(q.pending)))
		t.rec.State = StateRunning
		t.rec.Started = time.Now()
		q.mu.Unlock()

		q.log.Debug().Str("task_id", t.rec.ID).Str("task", t.rec.Name).Msg("task start")
		err := q.run(t.fn)

		q.mu.Lock()
		t.rec.Finished = time.Now()
		if err != nil {
			t.rec.State = StateFailed
			t.rec.Err = err.Error()
			tasksFailedTotal.Inc()
		} else {
			t.rec.State = StateCompleted
			tasksCompletedTotal.Inc()
		}
		q.mu.Unlock()
		if err != nil {
			q.log.Error().Err(err).Str("task_id", t.rec.ID).Str("task", t.rec.Name).Msg("task failed")
		} else {
			q.log.Debug().Str("task_id", t.rec.ID).Str("task", t.rec.Name).Msg("task done")
		}
	}
}

// run executes one task, converting a panic into a recorded failure so the
// worker survives misbehaving tasks.
func (q *Queue) run(fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn(q.ctx)
}

// appendRecord retains rec, trimming the oldest terminal records beyond the
// history bound. Active records are never trimmed.
func (q *Queue) appendRecord(rec *Record) {
	q.records = append(q.records, rec)
	if len(q.records) <= q.history {
		return
	}
	trimmed := q.records[:0]
	excess := len(q.records) - q.history
	for _, r := range q.records {
		if excess > 0 && (r.State == StateCompleted || r.State == StateFailed) {
			excess--
			continue
		}
		trimmed = append(trimmed, r)
	}
	q.records = trimmed
}
