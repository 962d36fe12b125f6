package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
)

type fakeDiscoverer struct {
	url string
	err error
}

func (d *fakeDiscoverer) Discover(ctx context.Context, baseURL string) (string, error) {
	return d.url, d.err
}

type fakeParser struct {
	events []domain.ProviderEvent
	err    error
}

func (p *fakeParser) Parse(ctx context.Context, url string) ([]domain.ProviderEvent, error) {
	return p.events, p.err
}

type fakeSyncRepo struct {
	rows     map[string]*domain.ProviderCalendarSync
	upserted []domain.ProviderCalendarSync
	all      []domain.ProviderCalendarSync
}

func newFakeSyncRepo() *fakeSyncRepo {
	return &fakeSyncRepo{rows: make(map[string]*domain.ProviderCalendarSync)}
}

func syncKey(kind domain.ProviderKind, providerID uuid.UUID, url string) string {
	return string(kind) + ":" + providerID.String() + ":" + url
}

func (r *fakeSyncRepo) GetSync(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, url string) (*domain.ProviderCalendarSync, error) {
	return r.rows[syncKey(kind, providerID, url)], nil
}

func (r *fakeSyncRepo) UpsertSync(ctx context.Context, sync *domain.ProviderCalendarSync) error {
	r.rows[syncKey(sync.ProviderKind, sync.ProviderID, sync.URL)] = sync
	r.upserted = append(r.upserted, *sync)
	return nil
}

func (r *fakeSyncRepo) ListDueForRetry(ctx context.Context, now time.Time) ([]domain.ProviderCalendarSync, error) {
	return nil, nil
}

func (r *fakeSyncRepo) ListAll(ctx context.Context) ([]domain.ProviderCalendarSync, error) {
	return r.all, nil
}

type fakeEventRepo struct {
	replaced map[uuid.UUID][]domain.ProviderEvent
	err      error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{replaced: make(map[uuid.UUID][]domain.ProviderEvent)}
}

func (r *fakeEventRepo) ListByProviderAndMonth(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, year, month int) ([]domain.ProviderEvent, error) {
	return r.replaced[providerID], nil
}

func (r *fakeEventRepo) ReplaceAllTx(ctx context.Context, tx out.Tx, kind domain.ProviderKind, providerID uuid.UUID, events []domain.ProviderEvent) error {
	if r.err != nil {
		return r.err
	}
	r.replaced[providerID] = events
	return nil
}

type fakeTx struct{}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTxManager struct{}

func (fakeTxManager) Begin(ctx context.Context) (context.Context, out.Tx, error) {
	return ctx, fakeTx{}, nil
}

func newPipelineForTest(discoverer Discoverer, parser Parser, syncRepo *fakeSyncRepo, eventRepo *fakeEventRepo) *Pipeline {
	return NewPipeline(discoverer, parser, syncRepo, eventRepo, fakeTxManager{}, time.Second, time.Minute)
}

func TestPipeline_SyncProvider_Success(t *testing.T) {
	providerID := uuid.New()
	discoverer := &fakeDiscoverer{url: "https://school.example.org/calendar"}
	parser := &fakeParser{events: []domain.ProviderEvent{
		{ID: uuid.New(), ProviderKind: domain.ProviderSchool, ProviderID: providerID, Title: "No School", EventDate: time.Now()},
	}}
	syncRepo := newFakeSyncRepo()
	eventRepo := newFakeEventRepo()
	p := newPipelineForTest(discoverer, parser, syncRepo, eventRepo)

	if err := p.SyncProvider(context.TODO(), domain.ProviderSchool, providerID, "https://school.example.org"); err != nil {
		t.Fatalf("SyncProvider() error = %v", err)
	}

	if len(eventRepo.replaced[providerID]) != 1 {
		t.Errorf("replaced events = %d, want 1", len(eventRepo.replaced[providerID]))
	}
	row := syncRepo.rows[syncKey(domain.ProviderSchool, providerID, "https://school.example.org")]
	if row == nil || row.Status != domain.SyncStatusOK {
		t.Fatalf("sync row = %v, want status OK", row)
	}
	if row.RetryCount != 0 || row.NextRetryAt != nil {
		t.Errorf("successful sync should reset retry state, got count=%d next=%v", row.RetryCount, row.NextRetryAt)
	}
}

func TestPipeline_SyncProvider_DiscoveryFailureDoesNotTouchEvents(t *testing.T) {
	providerID := uuid.New()
	discoverer := &fakeDiscoverer{err: errors.New("no page found")}
	parser := &fakeParser{}
	syncRepo := newFakeSyncRepo()
	eventRepo := newFakeEventRepo()
	eventRepo.replaced[providerID] = []domain.ProviderEvent{{ID: uuid.New()}}
	p := newPipelineForTest(discoverer, parser, syncRepo, eventRepo)

	err := p.SyncProvider(context.TODO(), domain.ProviderSchool, providerID, "https://school.example.org")
	if err == nil {
		t.Fatal("SyncProvider() with a discovery failure, want error")
	}
	if len(eventRepo.replaced[providerID]) != 1 {
		t.Errorf("a failed sync must not alter previously persisted events, got %d", len(eventRepo.replaced[providerID]))
	}

	row := syncRepo.rows[syncKey(domain.ProviderSchool, providerID, "https://school.example.org")]
	if row == nil || row.Status != domain.SyncStatusFailed {
		t.Fatalf("sync row = %v, want status Failed", row)
	}
	if row.RetryCount != 1 || row.NextRetryAt == nil {
		t.Errorf("failed sync should bump retry count and schedule a retry, got count=%d next=%v", row.RetryCount, row.NextRetryAt)
	}
}

func TestPipeline_SyncProvider_NoCalendarDiscoveredIsAFailure(t *testing.T) {
	providerID := uuid.New()
	discoverer := &fakeDiscoverer{url: ""}
	parser := &fakeParser{}
	syncRepo := newFakeSyncRepo()
	eventRepo := newFakeEventRepo()
	p := newPipelineForTest(discoverer, parser, syncRepo, eventRepo)

	if err := p.SyncProvider(context.TODO(), domain.ProviderDaycare, providerID, "https://daycare.example.org"); err == nil {
		t.Fatal("SyncProvider() with no discovered calendar URL, want error")
	}
}

func TestPipeline_SyncProvider_ParseFailureIsAFailure(t *testing.T) {
	providerID := uuid.New()
	discoverer := &fakeDiscoverer{url: "https://school.example.org/calendar"}
	parser := &fakeParser{err: errors.New("malformed html")}
	syncRepo := newFakeSyncRepo()
	eventRepo := newFakeEventRepo()
	p := newPipelineForTest(discoverer, parser, syncRepo, eventRepo)

	if err := p.SyncProvider(context.TODO(), domain.ProviderSchool, providerID, "https://school.example.org"); err == nil {
		t.Fatal("SyncProvider() with a parse failure, want error")
	}
}

func TestPipeline_SyncAll_AggregatesAcrossProvidersOfOneKind(t *testing.T) {
	schoolID, daycareID, failingID := uuid.New(), uuid.New(), uuid.New()
	syncRepo := newFakeSyncRepo()
	syncRepo.all = []domain.ProviderCalendarSync{
		{ProviderKind: domain.ProviderSchool, ProviderID: schoolID, URL: "https://a.example.org"},
		{ProviderKind: domain.ProviderDaycare, ProviderID: daycareID, URL: "https://b.example.org"},
		{ProviderKind: domain.ProviderSchool, ProviderID: failingID, URL: "https://c.example.org"},
	}

	eventRepo := newFakeEventRepo()
	discoverer := &conditionalDiscoverer{failFor: "https://c.example.org"}
	parser := &fakeParser{events: []domain.ProviderEvent{{ID: uuid.New()}}}
	p := newPipelineForTest(discoverer, parser, syncRepo, eventRepo)

	synced, failed, err := p.SyncAll(context.TODO(), domain.ProviderSchool)
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if synced != 1 || failed != 1 {
		t.Errorf("synced=%d failed=%d, want synced=1 failed=1 (daycare row excluded by kind)", synced, failed)
	}
}

type conditionalDiscoverer struct {
	failFor string
}

func (d *conditionalDiscoverer) Discover(ctx context.Context, baseURL string) (string, error) {
	if baseURL == d.failFor {
		return "", errors.New("unreachable")
	}
	return baseURL + "/calendar", nil
}

func TestBackoff_DoublesUntilCap(t *testing.T) {
	base := time.Second
	max := 10 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt, base, max); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
