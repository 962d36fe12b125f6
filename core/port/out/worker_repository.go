package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
)

// Tx is a started relational transaction. Gateways that need
// multi-statement atomicity (bulk insert + cache invalidation staging,
// sync delete-all+insert-all, integrity repair) accept one explicitly
// rather than hiding transaction boundaries inside the gateway.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager starts a transaction bound to the pool. Begin returns a
// context carrying the Tx; repository calls made with that context run
// inside it.
type TxManager interface {
	Begin(ctx context.Context) (context.Context, Tx, error)
}

type FamilyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Family, error)
	ListMembers(ctx context.Context, familyID uuid.UUID) ([]domain.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateUserStatus(ctx context.Context, userID uuid.UUID, status domain.UserStatus) error
}

type ScheduleTemplateRepository interface {
	GetActive(ctx context.Context, familyID uuid.UUID) (*domain.ScheduleTemplate, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleTemplate, error)
	Create(ctx context.Context, t *domain.ScheduleTemplate) error
	Update(ctx context.Context, t *domain.ScheduleTemplate) error
	DeactivateAll(ctx context.Context, familyID uuid.UUID) error
}

type CustodyRepository interface {
	GetByDate(ctx context.Context, familyID uuid.UUID, date time.Time) (*domain.CustodyRecord, error)
	// GetLatestBefore returns the most recent CustodyRecord strictly
	// before the given date, or nil if none exists. Used to seed the
	// previous-custodian pointer when the caller's range start may fall
	// after a gap in authored days.
	GetLatestBefore(ctx context.Context, familyID uuid.UUID, beforeDate time.Time) (*domain.CustodyRecord, error)
	GetByMonth(ctx context.Context, key domain.MonthKey) ([]domain.CustodyRecord, error)
	Create(ctx context.Context, rec *domain.CustodyRecord) error
	Update(ctx context.Context, rec *domain.CustodyRecord) error
	BulkInsert(ctx context.Context, records []domain.CustodyRecord) error
	// BulkInsertTx behaves like BulkInsert but participates in the
	// caller's transaction, used by C3 generation and C4 bulk create
	// so the whole batch commits or rolls back as one unit.
	BulkInsertTx(ctx context.Context, tx Tx, records []domain.CustodyRecord) error
	RepairCustodian(ctx context.Context, tx Tx, recordID uuid.UUID, newCustodian uuid.UUID) error
	ListByCustodian(ctx context.Context, familyID uuid.UUID, custodianID uuid.UUID) ([]domain.CustodyRecord, error)
	// ListAll returns every CustodyRecord for the family regardless of
	// custodian, used by the integrity auditor to find records whose
	// custodian no longer belongs to the family at all.
	ListAll(ctx context.Context, familyID uuid.UUID) ([]domain.CustodyRecord, error)
}

type FamilyEventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FamilyEvent, error)
	ListByMonth(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.FamilyEvent, error)
	Create(ctx context.Context, e *domain.FamilyEvent) error
	Update(ctx context.Context, e *domain.FamilyEvent) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProviderRepository interface {
	GetSchoolProvider(ctx context.Context, id uuid.UUID) (*domain.SchoolProvider, error)
	GetDaycareProvider(ctx context.Context, id uuid.UUID) (*domain.DaycareProvider, error)
	ListEnabledProviders(ctx context.Context, kind domain.ProviderKind) ([]uuid.UUID, error)
	GetFamilyAssignment(ctx context.Context, familyID uuid.UUID, kind domain.ProviderKind) (*domain.FamilyProviderAssignment, error)
	SetFamilyAssignment(ctx context.Context, a domain.FamilyProviderAssignment) error
}

type ProviderSyncRepository interface {
	GetSync(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, url string) (*domain.ProviderCalendarSync, error)
	UpsertSync(ctx context.Context, sync *domain.ProviderCalendarSync) error
	ListDueForRetry(ctx context.Context, now time.Time) ([]domain.ProviderCalendarSync, error)
	ListAll(ctx context.Context) ([]domain.ProviderCalendarSync, error)
}

type ProviderEventRepository interface {
	ListByProviderAndMonth(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, year, month int) ([]domain.ProviderEvent, error)
	// ReplaceAllTx deletes every event for the provider and inserts the
	// freshly parsed set, atomically, inside the caller's transaction.
	ReplaceAllTx(ctx context.Context, tx Tx, kind domain.ProviderKind, providerID uuid.UUID, events []domain.ProviderEvent) error
}
