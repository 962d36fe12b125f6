package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
)

type fakeEventRepo struct {
	byMonth []domain.FamilyEvent
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FamilyEvent, error) {
	return nil, nil
}
func (r *fakeEventRepo) ListByMonth(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.FamilyEvent, error) {
	return r.byMonth, nil
}
func (r *fakeEventRepo) Create(ctx context.Context, e *domain.FamilyEvent) error { return nil }
func (r *fakeEventRepo) Update(ctx context.Context, e *domain.FamilyEvent) error { return nil }
func (r *fakeEventRepo) Delete(ctx context.Context, id uuid.UUID) error          { return nil }

type fakeProviderRepo struct {
	assignments map[domain.ProviderKind]*domain.FamilyProviderAssignment
	enabled     map[domain.ProviderKind][]uuid.UUID
}

func newFakeProviderRepo() *fakeProviderRepo {
	return &fakeProviderRepo{
		assignments: make(map[domain.ProviderKind]*domain.FamilyProviderAssignment),
		enabled:     make(map[domain.ProviderKind][]uuid.UUID),
	}
}

func (r *fakeProviderRepo) GetSchoolProvider(ctx context.Context, id uuid.UUID) (*domain.SchoolProvider, error) {
	return nil, nil
}
func (r *fakeProviderRepo) GetDaycareProvider(ctx context.Context, id uuid.UUID) (*domain.DaycareProvider, error) {
	return nil, nil
}
func (r *fakeProviderRepo) ListEnabledProviders(ctx context.Context, kind domain.ProviderKind) ([]uuid.UUID, error) {
	return r.enabled[kind], nil
}
func (r *fakeProviderRepo) GetFamilyAssignment(ctx context.Context, familyID uuid.UUID, kind domain.ProviderKind) (*domain.FamilyProviderAssignment, error) {
	return r.assignments[kind], nil
}
func (r *fakeProviderRepo) SetFamilyAssignment(ctx context.Context, a domain.FamilyProviderAssignment) error {
	r.assignments[a.Kind] = &a
	return nil
}

type fakeProviderEventRepo struct {
	events map[uuid.UUID][]domain.ProviderEvent
}

func newFakeProviderEventRepo() *fakeProviderEventRepo {
	return &fakeProviderEventRepo{events: make(map[uuid.UUID][]domain.ProviderEvent)}
}

func (r *fakeProviderEventRepo) ListByProviderAndMonth(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, year, month int) ([]domain.ProviderEvent, error) {
	return r.events[providerID], nil
}
func (r *fakeProviderEventRepo) ReplaceAllTx(ctx context.Context, tx out.Tx, kind domain.ProviderKind, providerID uuid.UUID, events []domain.ProviderEvent) error {
	r.events[providerID] = events
	return nil
}

type fakeCacheCoordinator struct {
	store   map[string][]byte
	deleted []string
}

func newFakeCacheCoordinator() *fakeCacheCoordinator {
	return &fakeCacheCoordinator{store: make(map[string][]byte)}
}

func (c *fakeCacheCoordinator) Get(ctx context.Context, key string, dest any) (bool, error) {
	_, ok := c.store[key]
	return ok, nil
}
func (c *fakeCacheCoordinator) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.store[key] = []byte("cached")
	return nil
}
func (c *fakeCacheCoordinator) Delete(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}
func (c *fakeCacheCoordinator) DeletePattern(ctx context.Context, pattern string) error {
	c.deleted = append(c.deleted, pattern)
	for k := range c.store {
		delete(c.store, k)
	}
	return nil
}

func TestAggregator_GetMonth_UnionsFamilyAndEnabledAssignedProviderEvents(t *testing.T) {
	familyID := uuid.New()
	schoolID := uuid.New()

	eventRepo := &fakeEventRepo{byMonth: []domain.FamilyEvent{
		{ID: uuid.New(), FamilyID: familyID, Title: "Dentist", StartsAt: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)},
	}}
	providerRepo := newFakeProviderRepo()
	providerRepo.assignments[domain.ProviderSchool] = &domain.FamilyProviderAssignment{FamilyID: familyID, Kind: domain.ProviderSchool, ProviderID: schoolID}
	providerRepo.enabled[domain.ProviderSchool] = []uuid.UUID{schoolID}

	providerEvt := newFakeProviderEventRepo()
	providerEvt.events[schoolID] = []domain.ProviderEvent{
		{ID: uuid.New(), ProviderKind: domain.ProviderSchool, ProviderID: schoolID, Title: "No School", EventDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
	}

	agg := NewAggregator(eventRepo, providerRepo, providerEvt, newFakeCacheCoordinator())
	result, err := agg.GetMonth(context.TODO(), familyID, 2026, 3)
	if err != nil {
		t.Fatalf("GetMonth() error = %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("len(result) = %d, want 2", len(result))
	}

	var sawFamily, sawSchool bool
	for _, e := range result {
		switch e.Source {
		case domain.SourceFamilyEvent:
			sawFamily = true
		case domain.SourceSchoolProvider:
			sawSchool = true
		}
	}
	if !sawFamily || !sawSchool {
		t.Errorf("result missing expected sources: family=%v school=%v", sawFamily, sawSchool)
	}
}

func TestAggregator_GetMonth_SkipsAssignedButDisabledProvider(t *testing.T) {
	familyID := uuid.New()
	schoolID := uuid.New()

	providerRepo := newFakeProviderRepo()
	providerRepo.assignments[domain.ProviderSchool] = &domain.FamilyProviderAssignment{FamilyID: familyID, Kind: domain.ProviderSchool, ProviderID: schoolID}
	// Not in the enabled list: disabled provider.

	providerEvt := newFakeProviderEventRepo()
	providerEvt.events[schoolID] = []domain.ProviderEvent{
		{ID: uuid.New(), ProviderKind: domain.ProviderSchool, ProviderID: schoolID, Title: "No School", EventDate: time.Now()},
	}

	agg := NewAggregator(&fakeEventRepo{}, providerRepo, providerEvt, newFakeCacheCoordinator())
	result, err := agg.GetMonth(context.TODO(), familyID, 2026, 3)
	if err != nil {
		t.Fatalf("GetMonth() error = %v", err)
	}
	if len(result) != 0 {
		t.Errorf("len(result) = %d, want 0 for a disabled provider", len(result))
	}
}

func TestAggregator_GetMonth_SkipsUnassignedProvider(t *testing.T) {
	familyID := uuid.New()
	agg := NewAggregator(&fakeEventRepo{}, newFakeProviderRepo(), newFakeProviderEventRepo(), newFakeCacheCoordinator())

	result, err := agg.GetMonth(context.TODO(), familyID, 2026, 3)
	if err != nil {
		t.Fatalf("GetMonth() error = %v", err)
	}
	if len(result) != 0 {
		t.Errorf("len(result) = %d, want 0 with no family events and no provider assignment", len(result))
	}
}

func TestAggregator_Invalidate_DeletesCachePattern(t *testing.T) {
	familyID := uuid.New()
	cache := newFakeCacheCoordinator()
	agg := NewAggregator(&fakeEventRepo{}, newFakeProviderRepo(), newFakeProviderEventRepo(), cache)

	agg.Invalidate(context.TODO(), familyID)

	if len(cache.deleted) != 1 || cache.deleted[0] != domain.EventsCachePattern(familyID) {
		t.Errorf("DeletePattern calls = %v, want one call with %s", cache.deleted, domain.EventsCachePattern(familyID))
	}
}
