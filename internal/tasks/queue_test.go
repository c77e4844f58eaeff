package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitTerminal(t *testing.T, q *Queue, id string) Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, rec := range q.Records() {
			if rec.ID == id && (rec.State == StateCompleted || rec.State == StateFailed) {
				return rec
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return Record{}
}

func TestQueueExecutesInSubmissionOrder(t *testing.T) {
	q := New(zerolog.Nop(), 16)
	defer q.Close()

	var mu sync.Mutex
	var order []string
	mk := func(name string, fail bool) Func {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			if fail {
				return errors.New(name + " failed")
			}
			return nil
		}
	}
	q.Submit("t1", mk("t1", false))
	id2 := q.Submit("t2", mk("t2", true))
	id3 := q.Submit("t3", mk("t3", false))

	rec2 := waitTerminal(t, q, id2)
	rec3 := waitTerminal(t, q, id3)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "t1" || order[1] != "t2" || order[2] != "t3" {
		t.Fatalf("expected FIFO start order, got %v", order)
	}
	if rec2.State != StateFailed || rec2.Err == "" {
		t.Fatalf("t2 failure must be recorded, got %+v", rec2)
	}
	if rec3.State != StateCompleted {
		t.Fatalf("a failure in t2 must not stop t3, got %+v", rec3)
	}
}

func TestQueueSubmitNeverBlocks(t *testing.T) {
	q := New(zerolog.Nop(), 64)
	defer q.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	q.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			q.Submit("quick", func(ctx context.Context) error { return nil })
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Submit blocked behind a running task")
	}
	if q.Depth() != 20 {
		t.Fatalf("expected 20 queued tasks, got %d", q.Depth())
	}
	close(block)
}

func TestQueueRecoversFromPanic(t *testing.T) {
	q := New(zerolog.Nop(), 16)
	defer q.Close()

	idPanic := q.Submit("panics", func(ctx context.Context) error {
		panic("boom")
	})
	idNext := q.Submit("survivor", func(ctx context.Context) error { return nil })

	rec := waitTerminal(t, q, idPanic)
	if rec.State != StateFailed {
		t.Fatalf("panicking task must be recorded as failed, got %+v", rec)
	}
	next := waitTerminal(t, q, idNext)
	if next.State != StateCompleted {
		t.Fatalf("worker must survive a panic, got %+v", next)
	}
}

func TestQueueRecordLifecycle(t *testing.T) {
	q := New(zerolog.Nop(), 16)
	defer q.Close()

	id := q.Submit("job", func(ctx context.Context) error { return nil })
	rec := waitTerminal(t, q, id)
	if rec.Submitted.IsZero() || rec.Started.IsZero() || rec.Finished.IsZero() {
		t.Fatalf("expected all timestamps set, got %+v", rec)
	}
	if rec.Started.Before(rec.Submitted) || rec.Finished.Before(rec.Started) {
		t.Fatalf("timestamps out of order: %+v", rec)
	}
	if rec.Name != "job" || rec.ID == "" {
		t.Fatalf("record missing identity: %+v", rec)
	}
}

func TestQueueCloseStopsWorker(t *testing.T) {
	q := New(zerolog.Nop(), 16)
	started := make(chan struct{})
	id := q.Submit("long", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	q.Close()

	rec := waitTerminal(t, q, id)
	if rec.State != StateFailed {
		t.Fatalf("canceled in-flight task should record its context error, got %+v", rec)
	}

	// submissions after close fail immediately without running
	id2 := q.Submit("late", func(ctx context.Context) error { return nil })
	for _, rec := range q.Records() {
		if rec.ID == id2 {
			if rec.State != StateFailed || rec.Err != "queue closed" {
				t.Fatalf("late submit should fail closed, got %+v", rec)
			}
			return
		}
	}
	t.Fatalf("late submission not recorded")
}

func TestQueueHistoryTrimsTerminalRecords(t *testing.T) {
	q := New(zerolog.Nop(), 4)
	defer q.Close()

	for i := 0; i < 12; i++ {
		id := q.Submit("n", func(ctx context.Context) error { return nil })
		waitTerminal(t, q, id)
	}
	if n := len(q.Records()); n > 4 {
		t.Fatalf("history should stay within its bound, got %d records", n)
	}
}
