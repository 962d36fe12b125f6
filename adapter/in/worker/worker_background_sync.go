package worker

import (
	"context"
	"time"

	"calndr/core/domain"
	"calndr/core/port/in"
	"calndr/pkg/logger"
)

// BatchSyncScheduler fires SyncAll for every provider kind on a fixed
// interval. This is the "sequential per provider-kind, aggregate
// counts" batch orchestration driving normal operation; individual
// on-demand syncs go through SyncProcessor instead.
type BatchSyncScheduler struct {
	syncService   in.SyncService
	checkInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

func NewBatchSyncScheduler(syncService in.SyncService, interval time.Duration) *BatchSyncScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchSyncScheduler{
		syncService:   syncService,
		checkInterval: interval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *BatchSyncScheduler) Start() {
	logger.Info("[BatchSyncScheduler] starting with interval %v", s.checkInterval)
	go s.run()
}

func (s *BatchSyncScheduler) Stop() {
	logger.Info("[BatchSyncScheduler] stopping")
	s.cancel()
}

func (s *BatchSyncScheduler) run() {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.runBatch()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[BatchSyncScheduler] stopped")
			return
		case <-ticker.C:
			s.runBatch()
		}
	}
}

func (s *BatchSyncScheduler) runBatch() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
	defer cancel()

	for _, kind := range []domain.ProviderKind{domain.ProviderSchool, domain.ProviderDaycare} {
		synced, failed, err := s.syncService.SyncAll(ctx, kind)
		if err != nil {
			logger.Error("[BatchSyncScheduler] kind=%s batch failed: %v", kind, err)
			continue
		}
		logger.Info("[BatchSyncScheduler] kind=%s synced=%d failed=%d", kind, synced, failed)
	}
}

// SetCheckInterval sets the check interval (for testing).
func (s *BatchSyncScheduler) SetCheckInterval(interval time.Duration) {
	s.checkInterval = interval
}
