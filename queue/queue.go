// Package queue decouples scan submission from execution. Submit hands
// back an opaque task handle immediately; worker goroutines own the job
// lifecycle from there, and callers poll the scan record for status.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/costhound/costhound/telemetry"
)

// ErrQueueFull rejects a submit when the buffer is at capacity. The
// caller decides whether to retry or surface backpressure.
var ErrQueueFull = errors.New("scan queue full")

// ErrClosed rejects submits after shutdown began
var ErrClosed = errors.New("scan queue closed")

const (
	DefaultWorkers = 2
	DefaultBuffer  = 64
)

// ExecuteFunc runs one scan to a terminal state. It receives the task
// handle so the executor can record it on the job before running. It
// must not panic; errors belong on the scan record, not the queue.
type ExecuteFunc func(ctx context.Context, scanID, handle string)

// Config sizes the queue
type Config struct {
	Workers int
	Buffer  int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultBuffer
	}
	return c
}

type task struct {
	handle string
	scanID string
}

// Queue is a bounded in-process scan queue
type Queue struct {
	execute ExecuteFunc
	tasks   chan task
	logger  *telemetry.Logger
	cfg     Config
	seq     atomic.Int64
	closed  atomic.Bool
}

// New creates a queue; call Run to start the workers
func New(execute ExecuteFunc, cfg Config) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		execute: execute,
		tasks:   make(chan task, cfg.Buffer),
		logger:  telemetry.NewLogger("queue"),
		cfg:     cfg,
	}
}

// Submit enqueues a scan and returns its task handle without waiting
// for execution.
func (q *Queue) Submit(scanID string) (string, error) {
	if q.closed.Load() {
		return "", ErrClosed
	}

	t := task{
		handle: fmt.Sprintf("task-%08d", q.seq.Add(1)),
		scanID: scanID,
	}
	select {
	case q.tasks <- t:
		q.logger.Debug().
			Str("scan_id", scanID).
			Str("handle", t.handle).
			Msg("scan queued")
		return t.handle, nil
	default:
		return "", ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is done. Queued tasks
// not yet picked up when ctx ends are dropped; their jobs stay pending
// and the operator can resubmit them.
func (q *Queue) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.worker(ctx)
		}()
	}

	<-ctx.Done()
	q.closed.Store(true)
	wg.Wait()
	return ctx.Err()
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.logger.Debug().
				Str("scan_id", t.scanID).
				Str("handle", t.handle).
				Msg("scan picked up")
			q.execute(ctx, t.scanID, t.handle)
		}
	}
}

// Depth reports how many tasks are waiting
func (q *Queue) Depth() int {
	return len(q.tasks)
}
