package worker

import (
	"context"
	"fmt"

	"calndr/core/domain"
	"calndr/core/port/in"
	"calndr/pkg/logger"
	"calndr/pkg/ratelimit"
)

// SyncJobsPerSecond caps how fast this worker drains sync.provider jobs,
// shared across every worker process via Redis so a burst of enqueued
// jobs never turns into a burst of HEAD/GET requests against school and
// daycare sites.
const SyncJobsPerSecond = 5

// SyncProcessor handles C6 provider-sync jobs.
type SyncProcessor struct {
	syncService in.SyncService
	limiter     *ratelimit.SlidingWindowLimiter
}

func NewSyncProcessor(syncService in.SyncService, limiter *ratelimit.SlidingWindowLimiter) *SyncProcessor {
	return &SyncProcessor{syncService: syncService, limiter: limiter}
}

func (p *SyncProcessor) ProcessSync(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[ProviderSyncPayload](msg)
	if err != nil {
		return fmt.Errorf("parse sync.provider payload: %w", err)
	}

	if p.limiter != nil {
		if allowed, retryAfter := p.limiter.Allow(ctx, "sync.provider"); !allowed {
			return fmt.Errorf("sync.provider throttled, retry after %v", retryAfter)
		}
	}

	if err := p.syncService.SyncProvider(ctx, domain.ProviderKind(payload.Kind), payload.ProviderID, payload.URL); err != nil {
		logger.Warn("[SyncProcessor.ProcessSync] provider=%s kind=%s failed: %v", payload.ProviderID, payload.Kind, err)
		return err
	}

	logger.Info("[SyncProcessor.ProcessSync] provider=%s kind=%s synced", payload.ProviderID, payload.Kind)
	return nil
}

func (p *SyncProcessor) ProcessBatch(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[ProviderSyncBatchPayload](msg)
	if err != nil {
		return fmt.Errorf("parse sync.batch payload: %w", err)
	}

	synced, failed, err := p.syncService.SyncAll(ctx, domain.ProviderKind(payload.Kind))
	if err != nil {
		return fmt.Errorf("sync all kind=%s: %w", payload.Kind, err)
	}

	logger.Info("[SyncProcessor.ProcessBatch] kind=%s synced=%d failed=%d", payload.Kind, synced, failed)
	return nil
}
