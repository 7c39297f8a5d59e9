package sync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/metrics"
)

// Runner executes one order sync.
type Runner interface {
	SyncOrder(ctx context.Context, orderID int64, trigger Trigger) Result
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, orderID int64, trigger Trigger) Result

func (f RunnerFunc) SyncOrder(ctx context.Context, orderID int64, trigger Trigger) Result {
	return f(ctx, orderID, trigger)
}

// WorkerPool drains queued tasks with a fixed number of workers. Each task
// runs to completion; stopping the pool waits for queued tasks to finish.
type WorkerPool struct {
	workers []*Worker
	tasks   chan Task
	runner  Runner
	ctx     context.Context
	wg      sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int, runner Runner) *WorkerPool {
	pool := &WorkerPool{
		workers: make([]*Worker, workers),
		tasks:   make(chan Task, queueSize),
		runner:  runner,
		ctx:     context.Background(),
	}

	for i := 0; i < workers; i++ {
		pool.workers[i] = newWorker(i, pool)
	}

	return pool
}

func (p *WorkerPool) Start() {
	logger.Log.Info("Starting worker pool", zap.Int("workers", len(p.workers)), zap.Int("queue_size", cap(p.tasks)))
	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run()
	}
}

// Stop closes the queue and waits for the workers to drain it. Submit must
// not be called after Stop.
func (p *WorkerPool) Stop() {
	close(p.tasks)
	p.wg.Wait()
	metrics.QueueDepth.Set(0)
	logger.Log.Info("Stopped worker pool")
}

// Submit queues t without blocking and reports whether there was room.
func (p *WorkerPool) Submit(t Task) bool {
	select {
	case p.tasks <- t:
		metrics.QueueDepth.Set(float64(len(p.tasks)))
		return true
	default:
		return false
	}
}

func (p *WorkerPool) Pending() int {
	return len(p.tasks)
}

func (p *WorkerPool) Capacity() int {
	return cap(p.tasks)
}

type Worker struct {
	id   int
	pool *WorkerPool
}

func newWorker(id int, pool *WorkerPool) *Worker {
	return &Worker{
		id:   id,
		pool: pool,
	}
}

func (w *Worker) run() {
	defer w.pool.wg.Done()

	for task := range w.pool.tasks {
		metrics.QueueDepth.Set(float64(len(w.pool.tasks)))
		logger.Log.Debug("Processing task", zap.Int("workerID", w.id), zap.Stringer("task", task))
		w.process(task)
	}
}

func (w *Worker) process(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Sync run panicked",
				zap.Int("workerID", w.id),
				zap.Int64("order_id", task.OrderID),
				zap.Any("panic", r),
			)
		}
	}()
	w.pool.runner.SyncOrder(w.pool.ctx, task.OrderID, task.Trigger)
}
