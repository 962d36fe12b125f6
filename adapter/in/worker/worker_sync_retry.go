package worker

import (
	"context"
	"time"

	"calndr/core/domain"
	"calndr/core/port/in"
	"calndr/core/port/out"
	"calndr/pkg/logger"
)

// RetrySyncScheduler polls for providers whose last sync failed and
// whose backoff window has elapsed, then retries them one at a time.
type RetrySyncScheduler struct {
	syncRepo      out.ProviderSyncRepository
	syncService   in.SyncService
	checkInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

func NewRetrySyncScheduler(syncRepo out.ProviderSyncRepository, syncService in.SyncService) *RetrySyncScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetrySyncScheduler{
		syncRepo:      syncRepo,
		syncService:   syncService,
		checkInterval: 30 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *RetrySyncScheduler) Start() {
	logger.Info("[RetrySyncScheduler] starting with interval %v", s.checkInterval)
	go s.run()
}

func (s *RetrySyncScheduler) Stop() {
	logger.Info("[RetrySyncScheduler] stopping")
	s.cancel()
}

func (s *RetrySyncScheduler) run() {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.processPendingRetries()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[RetrySyncScheduler] stopped")
			return
		case <-ticker.C:
			s.processPendingRetries()
		}
	}
}

func (s *RetrySyncScheduler) processPendingRetries() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()

	due, err := s.syncRepo.ListDueForRetry(ctx, time.Now())
	if err != nil {
		logger.Error("[RetrySyncScheduler] failed to list due retries: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	logger.Info("[RetrySyncScheduler] found %d due retries", len(due))
	for _, row := range due {
		s.retry(row)
	}
}

func (s *RetrySyncScheduler) retry(row domain.ProviderCalendarSync) {
	ctx, cancel := context.WithTimeout(s.ctx, 1*time.Minute)
	defer cancel()

	logger.Info("[RetrySyncScheduler] retrying kind=%s provider=%s attempt=%d", row.ProviderKind, row.ProviderID, row.RetryCount+1)

	if err := s.syncService.SyncProvider(ctx, row.ProviderKind, row.ProviderID, row.URL); err != nil {
		logger.Error("[RetrySyncScheduler] retry failed kind=%s provider=%s: %v", row.ProviderKind, row.ProviderID, err)
		return
	}

	logger.Info("[RetrySyncScheduler] retry succeeded kind=%s provider=%s", row.ProviderKind, row.ProviderID)
}

// SetCheckInterval sets the check interval (for testing).
func (s *RetrySyncScheduler) SetCheckInterval(interval time.Duration) {
	s.checkInterval = interval
}
