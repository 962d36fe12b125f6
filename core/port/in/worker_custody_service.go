package in

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
)

// CustodyService is C4: single-day and bulk custody mutation.
type CustodyService interface {
	CreateDay(ctx context.Context, familyID uuid.UUID, date time.Time, custodianID uuid.UUID, handoff *bool, handoffTime, handoffLocation *string) (*domain.CustodyRecord, error)
	UpdateDay(ctx context.Context, familyID uuid.UUID, date time.Time, custodianID uuid.UUID, handoff *bool, handoffTime, handoffLocation *string) (*domain.CustodyRecord, error)
	BulkCreate(ctx context.Context, familyID uuid.UUID, records []domain.CustodyRecord) ([]domain.CustodyRecord, error)
}

// TemplateService is C3: materializing CustodyRecords from a schedule
// template over a date range.
type TemplateService interface {
	Generate(ctx context.Context, familyID uuid.UUID, template *domain.ScheduleTemplate, from, to time.Time) ([]domain.CustodyRecord, error)
}

// MonthlyQueryService is C5: cache-through monthly reads.
type MonthlyQueryService interface {
	GetMonth(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.CustodyRecord, error)
	GetMonthHandoffsOnly(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.HandoffOnly, error)
}

// EventAggregationService is C7.
type EventAggregationService interface {
	GetMonth(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.AggregatedEvent, error)
}

// SyncService is C6's batch orchestration entry point.
type SyncService interface {
	SyncProvider(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, url string) error
	SyncAll(ctx context.Context, kind domain.ProviderKind) (synced, failed int, err error)
}

// IntegrityService is C8.
type IntegrityService interface {
	Audit(ctx context.Context, familyID uuid.UUID, dryRun bool) ([]domain.CustodyRecord, error)
}
