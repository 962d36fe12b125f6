package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
)

type fakeFamilyRepo struct {
	members []domain.User
}

func (f *fakeFamilyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Family, error) {
	return &domain.Family{ID: id}, nil
}
func (f *fakeFamilyRepo) ListMembers(ctx context.Context, familyID uuid.UUID) ([]domain.User, error) {
	return f.members, nil
}
func (f *fakeFamilyRepo) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return nil, nil
}
func (f *fakeFamilyRepo) UpdateUserStatus(ctx context.Context, userID uuid.UUID, status domain.UserStatus) error {
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
	all      []domain.CustodyRecord
	repaired map[uuid.UUID]uuid.UUID
}

func newFakeCustodyRepo(records []domain.CustodyRecord) *fakeCustodyRepo {
	return &fakeCustodyRepo{all: records, repaired: make(map[uuid.UUID]uuid.UUID)}
}

func (r *fakeCustodyRepo) GetByDate(ctx context.Context, familyID uuid.UUID, date time.Time) (*domain.CustodyRecord, error) {
	return nil, nil
}
func (r *fakeCustodyRepo) GetLatestBefore(ctx context.Context, familyID uuid.UUID, beforeDate time.Time) (*domain.CustodyRecord, error) {
	return nil, nil
}
func (r *fakeCustodyRepo) GetByMonth(ctx context.Context, key domain.MonthKey) ([]domain.CustodyRecord, error) {
	return nil, nil
}
func (r *fakeCustodyRepo) Create(ctx context.Context, rec *domain.CustodyRecord) error { return nil }
func (r *fakeCustodyRepo) Update(ctx context.Context, rec *domain.CustodyRecord) error { return nil }
func (r *fakeCustodyRepo) BulkInsert(ctx context.Context, records []domain.CustodyRecord) error {
	return nil
}
func (r *fakeCustodyRepo) BulkInsertTx(ctx context.Context, tx out.Tx, records []domain.CustodyRecord) error {
	return nil
}
func (r *fakeCustodyRepo) RepairCustodian(ctx context.Context, tx out.Tx, recordID uuid.UUID, newCustodian uuid.UUID) error {
	r.repaired[recordID] = newCustodian
	return nil
}
func (r *fakeCustodyRepo) ListByCustodian(ctx context.Context, familyID, custodianID uuid.UUID) ([]domain.CustodyRecord, error) {
	return nil, nil
}
func (r *fakeCustodyRepo) ListAll(ctx context.Context, familyID uuid.UUID) ([]domain.CustodyRecord, error) {
	return r.all, nil
}

type fakeCache struct {
	deleted []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) { return false, nil }
func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) Delete(ctx context.Context, key string) error { return nil }
func (c *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	c.deleted = append(c.deleted, pattern)
	return nil
}

func TestAuditor_Audit_FindsOrphanedCustodian(t *testing.T) {
	familyID := uuid.New()
	parent1ID, parent2ID := uuid.New(), uuid.New()
	orphanID := uuid.New()

	records := []domain.CustodyRecord{
		{ID: uuid.New(), FamilyID: familyID, CustodianUserID: parent1ID},
		{ID: uuid.New(), FamilyID: familyID, CustodianUserID: orphanID},
	}
	familyRepo := &fakeFamilyRepo{members: []domain.User{
		{ID: parent1ID, Status: domain.UserStatusActive},
		{ID: parent2ID, Status: domain.UserStatusActive},
	}}
	custodyRepo := newFakeCustodyRepo(records)
	cache := &fakeCache{}
	auditor := NewAuditor(custodyRepo, familyRepo, fakeTxManager{}, cache)

	suspect, err := auditor.Audit(context.TODO(), familyID, true)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(suspect) != 1 || suspect[0].CustodianUserID != orphanID {
		t.Fatalf("suspect = %v, want one record with orphan custodian %s", suspect, orphanID)
	}
	if len(custodyRepo.repaired) != 0 {
		t.Errorf("dry-run must not repair anything, got %v", custodyRepo.repaired)
	}
}

func TestAuditor_Audit_RepairsWhenNotDryRun(t *testing.T) {
	familyID := uuid.New()
	parent1ID, parent2ID := uuid.New(), uuid.New()
	orphanID := uuid.New()
	recordID := uuid.New()

	records := []domain.CustodyRecord{
		{ID: recordID, FamilyID: familyID, CustodianUserID: orphanID},
	}
	familyRepo := &fakeFamilyRepo{members: []domain.User{
		{ID: parent1ID, Status: domain.UserStatusActive, CreatedAt: time.Now().AddDate(-2, 0, 0)},
		{ID: parent2ID, Status: domain.UserStatusActive, CreatedAt: time.Now().AddDate(-1, 0, 0)},
	}}
	custodyRepo := newFakeCustodyRepo(records)
	cache := &fakeCache{}
	auditor := NewAuditor(custodyRepo, familyRepo, fakeTxManager{}, cache)

	suspect, err := auditor.Audit(context.TODO(), familyID, false)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(suspect) != 1 {
		t.Fatalf("len(suspect) = %d, want 1", len(suspect))
	}
	if got, ok := custodyRepo.repaired[recordID]; !ok || got != parent2ID {
		t.Errorf("repaired[%s] = %s, ok=%v, want parent2 %s", recordID, got, ok, parent2ID)
	}
	if len(cache.deleted) != 1 {
		t.Errorf("expected one cache pattern delete, got %v", cache.deleted)
	}
}

func TestAuditor_Audit_NoOrphans(t *testing.T) {
	familyID := uuid.New()
	parent1ID := uuid.New()
	records := []domain.CustodyRecord{
		{ID: uuid.New(), FamilyID: familyID, CustodianUserID: parent1ID},
	}
	familyRepo := &fakeFamilyRepo{members: []domain.User{{ID: parent1ID, Status: domain.UserStatusActive}}}
	custodyRepo := newFakeCustodyRepo(records)
	auditor := NewAuditor(custodyRepo, familyRepo, fakeTxManager{}, &fakeCache{})

	suspect, err := auditor.Audit(context.TODO(), familyID, false)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(suspect) != 0 {
		t.Errorf("suspect = %v, want none", suspect)
	}
}

func TestSuggestReplacement_NoActiveMembers(t *testing.T) {
	_, err := suggestReplacement([]domain.User{{ID: uuid.New(), Status: domain.UserStatusInvited}})
	if err == nil {
		t.Fatal("suggestReplacement() with no active members, want error")
	}
}

func TestSuggestReplacement_SingleActiveMember(t *testing.T) {
	onlyID := uuid.New()
	replacement, err := suggestReplacement([]domain.User{{ID: onlyID, Status: domain.UserStatusActive}})
	if err != nil {
		t.Fatalf("suggestReplacement() error = %v", err)
	}
	if replacement == nil || replacement.ID != onlyID {
		t.Errorf("replacement = %v, want %s", replacement, onlyID)
	}
}
