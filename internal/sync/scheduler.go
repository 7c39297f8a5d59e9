package sync

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/logger"
)

// UnsyncedLister finds orders that never received a sync status.
type UnsyncedLister interface {
	ListUnsyncedOrders(ctx context.Context, postStatuses []string, limit int) ([]int64, error)
}

// Scheduler periodically dispatches orders whose checkout trigger was missed.
// Orders with a failed status are not picked up again; re-syncing those is a
// manual action.
type Scheduler struct {
	cfg        config.SchedulerConfig
	statuses   []string
	orders     UnsyncedLister
	dispatcher Dispatcher
	cron       *cron.Cron
	entryID    cron.EntryID
}

func NewScheduler(cfg config.SchedulerConfig, statuses []string, orders UnsyncedLister, dispatcher Dispatcher) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		statuses:   statuses,
		orders:     orders,
		dispatcher: dispatcher,
		cron:       cron.New(),
	}
}

func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		logger.Log.Info("Scheduler is disabled")
		return nil
	}

	logger.Log.Info("Starting scheduler", zap.String("interval", s.cfg.Interval))

	id, err := s.cron.AddFunc(s.cfg.Interval, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}

	s.entryID = id
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	logger.Log.Info("Stopped scheduler")
}

// Sweep dispatches one batch of unsynced orders and returns how many were
// queued.
func (s *Scheduler) Sweep(ctx context.Context) int {
	ids, err := s.orders.ListUnsyncedOrders(ctx, s.statuses, s.cfg.BatchSize)
	if err != nil {
		logger.Log.Error("Failed to list unsynced orders", zap.Error(err))
		return 0
	}

	queued := 0
	for _, id := range ids {
		if err := s.dispatcher.Dispatch(id, TriggerSweep); err != nil {
			if errors.Is(err, ErrAlreadyQueued) {
				continue
			}
			if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrNotRunning) {
				logger.Log.Info("Stopping sweep early", zap.Int("queued", queued), zap.Error(err))
				break
			}
			logger.Log.Warn("Failed to dispatch order", zap.Int64("order_id", id), zap.Error(err))
			continue
		}
		queued++
	}

	if len(ids) > 0 {
		logger.Log.Info("Sweep dispatched unsynced orders", zap.Int("found", len(ids)), zap.Int("queued", queued))
	}
	return queued
}
