package custody

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
)

// fakeFamilyRepo and fakeCustodyRepo are minimal in-memory stand-ins for
// the out ports, just enough surface for the custody service tests in
// this package. No mocking framework is used, same as the rest of this
// module.

type fakeFamilyRepo struct {
	members map[uuid.UUID][]domain.User
}

func newFakeFamilyRepo() *fakeFamilyRepo {
	return &fakeFamilyRepo{members: make(map[uuid.UUID][]domain.User)}
}

func (f *fakeFamilyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Family, error) {
	return &domain.Family{ID: id}, nil
}

func (f *fakeFamilyRepo) ListMembers(ctx context.Context, familyID uuid.UUID) ([]domain.User, error) {
	return f.members[familyID], nil
}

func (f *fakeFamilyRepo) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	for _, users := range f.members {
		for _, u := range users {
			if u.ID == userID {
				return &u, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeFamilyRepo) UpdateUserStatus(ctx context.Context, userID uuid.UUID, status domain.UserStatus) error {
	return nil
}

type fakeScheduleTemplateRepo struct {
	active map[uuid.UUID]*domain.ScheduleTemplate
}

func newFakeScheduleTemplateRepo() *fakeScheduleTemplateRepo {
	return &fakeScheduleTemplateRepo{active: make(map[uuid.UUID]*domain.ScheduleTemplate)}
}

func (r *fakeScheduleTemplateRepo) GetActive(ctx context.Context, familyID uuid.UUID) (*domain.ScheduleTemplate, error) {
	return r.active[familyID], nil
}

func (r *fakeScheduleTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleTemplate, error) {
	for _, t := range r.active {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeScheduleTemplateRepo) Create(ctx context.Context, t *domain.ScheduleTemplate) error {
	r.active[t.FamilyID] = t
	return nil
}

func (r *fakeScheduleTemplateRepo) Update(ctx context.Context, t *domain.ScheduleTemplate) error {
	r.active[t.FamilyID] = t
	return nil
}

func (r *fakeScheduleTemplateRepo) DeactivateAll(ctx context.Context, familyID uuid.UUID) error {
	delete(r.active, familyID)
	return nil
}

type fakeTx struct{}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTxManager struct{}

func (fakeTxManager) Begin(ctx context.Context) (context.Context, out.Tx, error) {
	return ctx, fakeTx{}, nil
}

type fakeCustodyRepo struct {
	byDate    map[string]*domain.CustodyRecord
	inserted  []domain.CustodyRecord
	updated   []domain.CustodyRecord
	createErr error
}

func newFakeCustodyRepo() *fakeCustodyRepo {
	return &fakeCustodyRepo{byDate: make(map[string]*domain.CustodyRecord)}
}

func dateKey(familyID uuid.UUID, date time.Time) string {
	return familyID.String() + ":" + date.Format("2006-01-02")
}

func (r *fakeCustodyRepo) GetByDate(ctx context.Context, familyID uuid.UUID, date time.Time) (*domain.CustodyRecord, error) {
	rec, ok := r.byDate[dateKey(familyID, date)]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (r *fakeCustodyRepo) GetLatestBefore(ctx context.Context, familyID uuid.UUID, beforeDate time.Time) (*domain.CustodyRecord, error) {
	var latest *domain.CustodyRecord
	for _, rec := range r.byDate {
		if rec.FamilyID != familyID || !rec.Date.Before(beforeDate) {
			continue
		}
		if latest == nil || rec.Date.After(latest.Date) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeCustodyRepo) GetByMonth(ctx context.Context, key domain.MonthKey) ([]domain.CustodyRecord, error) {
	var out []domain.CustodyRecord
	start, end := key.Range()
	for _, rec := range r.byDate {
		if rec.FamilyID == key.FamilyID && !rec.Date.Before(start) && rec.Date.Before(end) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeCustodyRepo) Create(ctx context.Context, rec *domain.CustodyRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, exists := r.byDate[dateKey(rec.FamilyID, rec.Date)]; exists {
		return errConflict
	}
	cp := *rec
	r.byDate[dateKey(rec.FamilyID, rec.Date)] = &cp
	r.inserted = append(r.inserted, cp)
	return nil
}

func (r *fakeCustodyRepo) Update(ctx context.Context, rec *domain.CustodyRecord) error {
	if _, exists := r.byDate[dateKey(rec.FamilyID, rec.Date)]; !exists {
		return errNotFound
	}
	cp := *rec
	r.byDate[dateKey(rec.FamilyID, rec.Date)] = &cp
	r.updated = append(r.updated, cp)
	return nil
}

func (r *fakeCustodyRepo) BulkInsert(ctx context.Context, records []domain.CustodyRecord) error {
	for i := range records {
		cp := records[i]
		r.byDate[dateKey(cp.FamilyID, cp.Date)] = &cp
		r.inserted = append(r.inserted, cp)
	}
	return nil
}

func (r *fakeCustodyRepo) BulkInsertTx(ctx context.Context, tx out.Tx, records []domain.CustodyRecord) error {
	return r.BulkInsert(ctx, records)
}

func (r *fakeCustodyRepo) RepairCustodian(ctx context.Context, tx out.Tx, recordID uuid.UUID, newCustodian uuid.UUID) error {
	for k, rec := range r.byDate {
		if rec.ID == recordID {
			rec.CustodianUserID = newCustodian
			r.byDate[k] = rec
			return nil
		}
	}
	return errNotFound
}

func (r *fakeCustodyRepo) ListByCustodian(ctx context.Context, familyID, custodianID uuid.UUID) ([]domain.CustodyRecord, error) {
	var out []domain.CustodyRecord
	for _, rec := range r.byDate {
		if rec.FamilyID == familyID && rec.CustodianUserID == custodianID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeCustodyRepo) ListAll(ctx context.Context, familyID uuid.UUID) ([]domain.CustodyRecord, error) {
	var out []domain.CustodyRecord
	for _, rec := range r.byDate {
		if rec.FamilyID == familyID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// fakeCache round-trips values through JSON on Get/Set, mirroring the
// real Redis-backed coordinator's marshal/unmarshal semantics closely
// enough that tests can seed c.store directly and read it back typed.
type fakeCache struct {
	store   map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store[key] = data
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.store, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	return nil
}

type fakePusher struct {
	sent int
}

func (p *fakePusher) Send(ctx context.Context, deviceID, title, body string, data map[string]string) error {
	p.sent++
	return nil
}

var (
	errConflict = simpleErr("already exists")
	errNotFound = simpleErr("not found")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
