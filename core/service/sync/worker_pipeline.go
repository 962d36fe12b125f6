package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/in"
	"calndr/core/port/out"
	"calndr/pkg/apperr"
	"calndr/pkg/logger"
)

// Discoverer and Parser are the two scrape-layer stages this pipeline
// orchestrates; kept as narrow interfaces so the service doesn't
// depend on the concrete goquery-backed adapter.
type Discoverer interface {
	Discover(ctx context.Context, baseURL string) (string, error)
}

type Parser interface {
	Parse(ctx context.Context, url string) ([]domain.ProviderEvent, error)
}

// Pipeline is C6: discover → fetch/parse → persist, with failure
// semantics that never touch existing ProviderEvents on a failed run.
type Pipeline struct {
	discoverer Discoverer
	parser     Parser
	syncRepo   out.ProviderSyncRepository
	eventRepo  out.ProviderEventRepository
	txManager  out.TxManager
	retryBase  time.Duration
	retryMax   time.Duration
}

var _ in.SyncService = (*Pipeline)(nil)

func NewPipeline(discoverer Discoverer, parser Parser, syncRepo out.ProviderSyncRepository, eventRepo out.ProviderEventRepository, txManager out.TxManager, retryBase, retryMax time.Duration) *Pipeline {
	return &Pipeline{
		discoverer: discoverer,
		parser:     parser,
		syncRepo:   syncRepo,
		eventRepo:  eventRepo,
		txManager:  txManager,
		retryBase:  retryBase,
		retryMax:   retryMax,
	}
}

func (p *Pipeline) SyncProvider(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, baseURL string) error {
	existing, err := p.syncRepo.GetSync(ctx, kind, providerID, baseURL)
	if err != nil {
		return fmt.Errorf("sync provider: get existing sync row: %w", err)
	}

	calendarURL, err := p.discoverer.Discover(ctx, baseURL)
	if err == nil && calendarURL == "" {
		err = fmt.Errorf("no calendar page discovered at %s", baseURL)
	}
	if err == nil {
		var events []domain.ProviderEvent
		events, err = p.parser.Parse(ctx, calendarURL)
		if err == nil {
			return p.persistSuccess(ctx, kind, providerID, baseURL, existing, events)
		}
	}

	return p.persistFailure(ctx, kind, providerID, baseURL, existing, err)
}

func (p *Pipeline) persistSuccess(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, url string, existing *domain.ProviderCalendarSync, events []domain.ProviderEvent) error {
	txCtx, tx, err := p.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sync provider: begin tx: %w", err)
	}
	if err := p.eventRepo.ReplaceAllTx(txCtx, tx, kind, providerID, events); err != nil {
		_ = tx.Rollback(txCtx)
		return fmt.Errorf("sync provider: replace events: %w", err)
	}

	now := time.Now()
	row := syncRowFor(existing, kind, providerID, url)
	row.Status = domain.SyncStatusOK
	row.LastError = nil
	row.EventCount = len(events)
	row.LastSyncedAt = &now
	row.RetryCount = 0
	row.NextRetryAt = nil

	if err := p.syncRepo.UpsertSync(txCtx, row); err != nil {
		_ = tx.Rollback(txCtx)
		return fmt.Errorf("sync provider: upsert sync row: %w", err)
	}
	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("sync provider: commit: %w", err)
	}

	logger.Info("[Pipeline.SyncProvider] synced kind=%s provider=%s events=%d", kind, providerID, len(events))
	return nil
}

// persistFailure records the error on the sync row without touching
// ProviderEvents: a provider whose page briefly 500s should not lose
// its previously known closures.
func (p *Pipeline) persistFailure(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, url string, existing *domain.ProviderCalendarSync, syncErr error) error {
	row := syncRowFor(existing, kind, providerID, url)
	row.Status = domain.SyncStatusFailed
	msg := syncErr.Error()
	row.LastError = &msg
	row.RetryCount++
	next := time.Now().Add(backoff(row.RetryCount, p.retryBase, p.retryMax))
	row.NextRetryAt = &next

	if err := p.syncRepo.UpsertSync(ctx, row); err != nil {
		logger.Error("[Pipeline.persistFailure] failed to record sync failure kind=%s provider=%s: %v", kind, providerID, err)
	}
	logger.Warn("[Pipeline.SyncProvider] sync failed kind=%s provider=%s: %v", kind, providerID, syncErr)
	return apperr.ProviderSyncFailed(string(kind), syncErr)
}

func syncRowFor(existing *domain.ProviderCalendarSync, kind domain.ProviderKind, providerID uuid.UUID, url string) *domain.ProviderCalendarSync {
	if existing != nil {
		copied := *existing
		return &copied
	}
	return &domain.ProviderCalendarSync{
		ID:           uuid.New(),
		ProviderKind: kind,
		ProviderID:   providerID,
		URL:          url,
	}
}

func backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// SyncAll orchestrates every known provider of a kind sequentially.
// One provider's failure never aborts the rest of the batch; counts
// are aggregated and returned.
func (p *Pipeline) SyncAll(ctx context.Context, kind domain.ProviderKind) (synced, failed int, err error) {
	rows, err := p.syncRepo.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sync all: list known providers: %w", err)
	}
	for _, row := range rows {
		if row.ProviderKind != kind {
			continue
		}
		if syncErr := p.SyncProvider(ctx, row.ProviderKind, row.ProviderID, row.URL); syncErr != nil {
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}
