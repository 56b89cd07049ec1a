package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool shut down")

// Task is a unit of work. The context carries the per-task timeout.
type Task func(ctx context.Context) error

// WorkerPool runs submitted tasks on a fixed number of workers in
// submission order per worker. A pool with one worker is a serialized queue.
type WorkerPool struct {
	workers  int
	taskName string
	timeout  time.Duration
	logger   logrus.FieldLogger

	workCh chan Task
	doneCh chan struct{}
	errCh  chan error
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// PoolOption configures a WorkerPool.
type PoolOption func(*WorkerPool)

// WithLogger sets the pool's logger.
func WithLogger(logger logrus.FieldLogger) PoolOption {
	return func(p *WorkerPool) { p.logger = logger }
}

// WithTaskTimeout bounds every task; zero disables the bound.
func WithTaskTimeout(timeout time.Duration) PoolOption {
	return func(p *WorkerPool) { p.timeout = timeout }
}

// WithQueueSize sets the submit buffer. Submit blocks when it is full.
func WithQueueSize(n int) PoolOption {
	return func(p *WorkerPool) {
		if n >= 0 {
			p.workCh = make(chan Task, n)
		}
	}
}

// NewWorkerPool starts workers goroutines.
func NewWorkerPool(ctx context.Context, workers int, taskName string, opts ...PoolOption) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		logger:   logrus.StandardLogger(),
		workCh:   make(chan Task, workers*2),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				p.worker(id)
			}(i)
		}
		wg.Wait()
		close(p.doneCh)
	}()
	return p
}

// Submit queues fn. It blocks while the queue is full and fails once the
// pool is shut down or its context is done.
func (p *WorkerPool) Submit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.workCh <- fn:
		p.submitted.Add(1)
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("%w: %v", ErrPoolClosed, p.ctx.Err())
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the queued ones
// to finish. A zero timeout waits without limit.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.workCh)
	}
	p.mu.Unlock()

	if timeout <= 0 {
		<-p.doneCh
		p.cancel()
		return nil
	}
	select {
	case <-p.doneCh:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
	}
}

// Errors receives task errors, including recovered panics as *PanicError.
// When nobody reads it the oldest errors are kept and later ones dropped.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

// Stats returns submitted, completed and failed task counts.
func (p *WorkerPool) Stats() (submitted, completed, failed int64) {
	return p.submitted.Load(), p.completed.Load(), p.failed.Load()
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			if err := p.run(fn); err != nil {
				p.failed.Add(1)
				p.report(id, err)
			}
			p.completed.Add(1)
		}
	}
}

func (p *WorkerPool) run(fn Task) (err error) {
	ctx, cancel := withOptionalTimeout(p.ctx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: p.taskName, Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

func (p *WorkerPool) report(id int, err error) {
	entry := p.logger.WithFields(logrus.Fields{"pool": p.taskName, "worker": id})
	var pe *PanicError
	if errors.As(err, &pe) {
		entry.WithField("stack", string(pe.Stack)).Error(pe.Error())
	}
	select {
	case p.errCh <- err:
	default:
		entry.WithError(err).Warn("error channel full, dropping error")
	}
}
