package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrStopped is returned by Submit after shutdown and passed to done for tasks that never ran.
	ErrStopped = errors.New("worker pool stopped")
)

type task struct {
	name string
	run  func(ctx context.Context) error
	done func(err error)
}

// Pool runs tasks on a fixed number of workers fed by a bounded queue.
type Pool struct {
	concurrency int
	timeout     time.Duration
	queue       chan task
	logger      *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

func NewPool(concurrency, queueSize int, timeout time.Duration, logger *zap.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		concurrency: concurrency,
		timeout:     timeout,
		queue:       make(chan task, queueSize),
		logger:      logger,
	}
}

// Submit enqueues without blocking. done, when non-nil, receives the task's result exactly once.
func (p *Pool) Submit(name string, run func(ctx context.Context) error, done func(err error)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- task{name: name, run: run, done: done}:
		metrics.GradingQueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled. Tasks still queued at
// shutdown are not run; their done callback receives ErrStopped.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				select {
				case <-gctx.Done():
					return nil
				case t := <-p.queue:
					metrics.GradingQueueDepth.Set(float64(len(p.queue)))
					p.execute(gctx, t)
				}
			}
		})
	}
	err := g.Wait()

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	for {
		select {
		case t := <-p.queue:
			finish(t, ErrStopped)
		default:
			metrics.GradingQueueDepth.Set(0)
			return err
		}
	}
}

func (p *Pool) execute(ctx context.Context, t task) {
	// Work already taken off the queue finishes even while shutting down.
	runCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if p.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, p.timeout)
	}
	defer cancel()

	err := safeRun(runCtx, t.run)
	if err != nil {
		p.logger.Debug("task failed", zap.String("task", t.name), zap.Error(err))
	}
	finish(t, err)
}

func safeRun(ctx context.Context, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("task panicked")
		}
	}()
	return run(ctx)
}

func finish(t task, err error) {
	if t.done != nil {
		t.done(err)
	}
}
