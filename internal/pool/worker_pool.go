// Package pool provides the bounded worker pool that runs background
// persistence and cache-invalidation tasks. Loss on a full queue is
// acceptable; shutdown drains the queue best-effort.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrQueueFull  = errors.New("pool queue is full")
)

// Task is one unit of background work. The context carries the shutdown
// deadline, not the originating request, so tasks outlive their requests.
type Task func(ctx context.Context)

// Config configures the worker pool.
type Config struct {
	Workers     int           `yaml:"workers" json:"workers"`
	QueueSize   int           `yaml:"queue_size" json:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout" json:"task_timeout"`
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   256,
		TaskTimeout: 30 * time.Second,
	}
}

// WorkerPool runs tasks on a fixed set of workers with a bounded queue.
type WorkerPool struct {
	config Config
	queue  chan Task
	logger *zap.Logger

	closed atomic.Bool
	wg     sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	dropped   atomic.Int64
}

// NewWorkerPool creates and starts a pool.
func NewWorkerPool(config Config, logger *zap.Logger) *WorkerPool {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 30 * time.Second
	}
	p := &WorkerPool{
		config: config,
		queue:  make(chan Task, config.QueueSize),
		logger: logger.With(zap.String("component", "worker_pool")),
	}
	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *WorkerPool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background task panicked", zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), p.config.TaskTimeout)
	defer cancel()
	task(ctx)
	p.completed.Add(1)
}

// Submit enqueues a task without blocking. A full queue drops the task.
func (p *WorkerPool) Submit(task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	select {
	case p.queue <- task:
		return nil
	default:
		p.dropped.Add(1)
		p.logger.Warn("background task dropped, queue full")
		return ErrQueueFull
	}
}

// Stats reports pool counters.
func (p *WorkerPool) Stats() (submitted, completed, dropped int64) {
	return p.submitted.Load(), p.completed.Load(), p.dropped.Load()
}

// Close stops intake and waits for queued tasks to finish, up to the given
// timeout. Remaining tasks after the timeout are lost.
func (p *WorkerPool) Close(timeout time.Duration) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Warn("worker pool close timed out, abandoning queued tasks")
	}
}
