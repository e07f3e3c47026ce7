// Package tasks runs fire-and-forget work on a small worker pool.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/sichatas/internal/metrics"
)

// ErrDropped is passed to OnFailure when a task could not be queued.
var ErrDropped = errors.New("task queue full")

// Task is one unit of background work. OnSuccess and OnFailure are optional
// and run on the worker goroutine.
type Task struct {
	Name      string
	Run       func(ctx context.Context) error
	OnSuccess func()
	OnFailure func(err error)
}

// Queue executes tasks with a fixed number of workers.
type Queue struct {
	ch      chan Task
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts workers that each run one task at a time, bounded by
// timeout when it is positive.
func NewQueue(workers, depth int, timeout time.Duration) *Queue {
	if workers < 1 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	q := &Queue{ch: make(chan Task, depth), timeout: timeout}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Submit enqueues t without blocking. It returns false when the queue is
// full or closed; the task's OnFailure is then called with ErrDropped.
func (q *Queue) Submit(t Task) bool {
	if q.enqueue(t) {
		return true
	}

	metrics.TasksDropped.Inc()
	slog.Warn("task dropped", "task", t.Name)
	if t.OnFailure != nil {
		t.OnFailure(ErrDropped)
	}
	return false
}

func (q *Queue) enqueue(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- t:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for t := range q.ch {
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	err := safeRun(ctx, t)
	if err != nil {
		if t.OnFailure != nil {
			t.OnFailure(err)
		}
		return
	}
	if t.OnSuccess != nil {
		t.OnSuccess()
	}
}

func safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	if t.Run == nil {
		return nil
	}
	return t.Run(ctx)
}
