package pool

import (
	"context"
	"sync"

	"CoilScan/pkg/logger"
)

// Task is one unit of work executed by the pool.
type Task func(ctx context.Context) error

// Config contains the configuration for the worker pool.
type Config struct {
	Workers   int // number of workers
	QueueSize int // size of the pending task buffer
}

// Pool is a bounded in-process worker pool. Submitted tasks are fanned out
// to a fixed number of goroutines; task errors are collected and returned
// from Wait without stopping the other workers.
type Pool struct {
	workers int
	tasks   chan Task
	logger  *logger.Logger

	mu   sync.Mutex
	errs []error
	wg   sync.WaitGroup
}

// New creates a worker pool and starts its workers immediately.
func New(ctx context.Context, lgr *logger.Logger, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}
	p := &Pool{
		workers: cfg.Workers,
		tasks:   make(chan Task, cfg.QueueSize),
		logger:  lgr,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return p
}

// Submit enqueues a task. It blocks when the buffer is full and returns the
// context error if the pool's context ends before the task is accepted.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait closes the intake, waits for all workers to drain, and returns the
// errors collected from failed tasks.
func (p *Pool) Wait() []error {
	close(p.tasks)
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task(ctx); err != nil {
				p.mu.Lock()
				p.errs = append(p.errs, err)
				p.mu.Unlock()
				if p.logger != nil {
					p.logger.Warn("pool task failed",
						logger.Int("worker_id", id),
						logger.Error(err),
					)
				}
			}
		case <-ctx.Done():
			// Drain remaining tasks as context errors so callers see
			// how much work was abandoned.
			p.mu.Lock()
			p.errs = append(p.errs, ctx.Err())
			p.mu.Unlock()
			return
		}
	}
}
