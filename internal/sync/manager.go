package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
)

const (
	StateIdle    = "idle"
	StateRunning = "running"
)

var (
	ErrQueueFull     = errors.New("sync queue is full")
	ErrNotRunning    = errors.New("sync manager is not running")
	ErrAlreadyQueued = errors.New("order is already queued or syncing")
)

// Dispatcher queues order syncs for background processing.
type Dispatcher interface {
	Dispatch(orderID int64, trigger Trigger) error
}

// Status is a snapshot of the dispatch queue.
type Status struct {
	State      string    `json:"state"`
	Workers    int       `json:"workers"`
	Pending    int       `json:"pending"`
	QueueSize  int       `json:"queue_size"`
	InFlight   int       `json:"in_flight"`
	Dispatched uint64    `json:"dispatched"`
	Rejected   uint64    `json:"rejected"`
	Coalesced  uint64    `json:"coalesced"`
	StartedAt  time.Time `json:"started_at"`
}

// Manager owns the worker pool and is the single entry point for order
// syncs, both queued and synchronous. An order is queued or syncing at most
// once at a time.
type Manager struct {
	cfg        config.SyncConfig
	runner     Runner
	workerPool *WorkerPool
	mu         sync.RWMutex
	status     string
	startedAt  time.Time
	dispatched uint64
	rejected   uint64
	coalesced  uint64

	// guarded by flightMu; workers release entries while Stop holds mu
	flightMu sync.Mutex
	inFlight map[int64]struct{}
}

func NewManager(cfg config.SyncConfig, runner Runner) *Manager {
	return &Manager{
		cfg:      cfg,
		runner:   runner,
		status:   StateIdle,
		inFlight: make(map[int64]struct{}),
	}
}

func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StateRunning {
		return fmt.Errorf("sync manager is already running")
	}

	logger.Log.Info("Starting sync manager")

	m.workerPool = NewWorkerPool(m.cfg.Workers, m.cfg.QueueSize, RunnerFunc(m.runClaimed))
	m.workerPool.Start()

	m.status = StateRunning
	m.startedAt = time.Now()
	return nil
}

// Stop refuses new tasks and waits for queued ones to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StateRunning {
		return
	}

	logger.Log.Info("Stopping sync manager")

	m.workerPool.Stop()
	m.workerPool = nil
	m.status = StateIdle
}

// Dispatch queues an order sync and returns immediately. An order that is
// already queued or syncing is not queued again and ErrAlreadyQueued is
// returned.
func (m *Manager) Dispatch(orderID int64, trigger Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StateRunning {
		return ErrNotRunning
	}
	if !m.claim(orderID) {
		m.coalesced++
		logger.Log.Debug("Order already queued", zap.Int64("order_id", orderID), zap.String("trigger", string(trigger)))
		return ErrAlreadyQueued
	}
	if !m.workerPool.Submit(Task{OrderID: orderID, Trigger: trigger}) {
		m.release(orderID)
		m.rejected++
		logger.Log.Warn("Sync queue full, order not dispatched", zap.Int64("order_id", orderID), zap.String("trigger", string(trigger)))
		return ErrQueueFull
	}
	m.dispatched++
	logger.Log.Debug("Order dispatched", zap.Int64("order_id", orderID), zap.String("trigger", string(trigger)))
	return nil
}

// SyncNow runs an order sync on the caller's goroutine. It does not need the
// worker pool to be started.
func (m *Manager) SyncNow(ctx context.Context, orderID int64, trigger Trigger) (Result, error) {
	if !m.claim(orderID) {
		return Result{}, ErrAlreadyQueued
	}
	return m.runClaimed(ctx, orderID, trigger), nil
}

func (m *Manager) runClaimed(ctx context.Context, orderID int64, trigger Trigger) Result {
	defer m.release(orderID)
	return m.runner.SyncOrder(ctx, orderID, trigger)
}

func (m *Manager) claim(orderID int64) bool {
	m.flightMu.Lock()
	defer m.flightMu.Unlock()
	if _, ok := m.inFlight[orderID]; ok {
		return false
	}
	m.inFlight[orderID] = struct{}{}
	return true
}

func (m *Manager) release(orderID int64) {
	m.flightMu.Lock()
	delete(m.inFlight, orderID)
	m.flightMu.Unlock()
}

func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		State:      m.status,
		Workers:    m.cfg.Workers,
		QueueSize:  m.cfg.QueueSize,
		Dispatched: m.dispatched,
		Rejected:   m.rejected,
		Coalesced:  m.coalesced,
	}
	m.flightMu.Lock()
	s.InFlight = len(m.inFlight)
	m.flightMu.Unlock()
	if m.workerPool != nil {
		s.Pending = m.workerPool.Pending()
		s.StartedAt = m.startedAt
	}
	return s
}
