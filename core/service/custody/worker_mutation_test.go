package custody

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/service/notify"
)

func newMutationEngineForTest() (*MutationEngine, *fakeCustodyRepo, *fakeCache, *fakePusher, uuid.UUID, uuid.UUID, uuid.UUID) {
	familyID := uuid.New()
	parent1ID, parent2ID := uuid.New(), uuid.New()

	familyRepo := newFakeFamilyRepo()
	familyRepo.members[familyID] = []domain.User{
		{ID: parent1ID, Status: domain.UserStatusActive, CreatedAt: time.Now().AddDate(-2, 0, 0), DeviceID: strPtr("device-1")},
		{ID: parent2ID, Status: domain.UserStatusActive, CreatedAt: time.Now().AddDate(-1, 0, 0), DeviceID: strPtr("device-2")},
	}

	custodyRepo := newFakeCustodyRepo()
	cache := newFakeCache()
	pusher := &fakePusher{}
	fanout := notify.NewFanout(familyRepo, pusher, nil)
	engine := NewMutationEngine(custodyRepo, fakeTxManager{}, cache, fanout)

	return engine, custodyRepo, cache, pusher, familyID, parent1ID, parent2ID
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestMutationEngine_CreateDay(t *testing.T) {
	engine, _, cache, pusher, familyID, parent1ID, _ := newMutationEngineForTest()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	rec, err := engine.CreateDay(context.TODO(), familyID, date, parent1ID, boolPtr(false), nil, nil)
	if err != nil {
		t.Fatalf("CreateDay() error = %v", err)
	}
	if rec.CustodianUserID != parent1ID {
		t.Errorf("CustodianUserID = %s, want %s", rec.CustodianUserID, parent1ID)
	}

	mk := domain.MonthKey{FamilyID: familyID, Year: 2026, Month: 3}
	if _, ok := cache.store[mk.CacheKeyCustody()]; ok {
		t.Errorf("expected month cache entry to be invalidated")
	}
	if pusher.sent != 1 {
		t.Errorf("pusher.sent = %d, want 1 (the other parent should be notified)", pusher.sent)
	}
}

func TestMutationEngine_CreateDay_Conflict(t *testing.T) {
	engine, _, _, _, familyID, parent1ID, _ := newMutationEngineForTest()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	if _, err := engine.CreateDay(context.TODO(), familyID, date, parent1ID, boolPtr(false), nil, nil); err != nil {
		t.Fatalf("first CreateDay() error = %v", err)
	}
	if _, err := engine.CreateDay(context.TODO(), familyID, date, parent1ID, boolPtr(false), nil, nil); err == nil {
		t.Fatal("second CreateDay() on the same date, want conflict error")
	}
}

func TestMutationEngine_UpdateDay_NotFound(t *testing.T) {
	engine, _, _, _, familyID, parent1ID, _ := newMutationEngineForTest()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	if _, err := engine.UpdateDay(context.TODO(), familyID, date, parent1ID, boolPtr(false), nil, nil); err == nil {
		t.Fatal("UpdateDay() on a nonexistent record, want not-found error")
	}
}

func TestMutationEngine_UpdateDay_RepairsAdjacency(t *testing.T) {
	engine, custodyRepo, _, _, familyID, parent1ID, parent2ID := newMutationEngineForTest()
	day1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	if _, err := engine.CreateDay(context.TODO(), familyID, day1, parent1ID, boolPtr(false), nil, nil); err != nil {
		t.Fatalf("CreateDay(day1) error = %v", err)
	}
	if _, err := engine.CreateDay(context.TODO(), familyID, day2, parent1ID, boolPtr(false), nil, nil); err != nil {
		t.Fatalf("CreateDay(day2) error = %v", err)
	}

	// Flip day1's custodian to parent2. day2 should now be repaired into a handoff day.
	if _, err := engine.UpdateDay(context.TODO(), familyID, day1, parent2ID, boolPtr(false), nil, nil); err != nil {
		t.Fatalf("UpdateDay(day1) error = %v", err)
	}

	updatedDay2, err := custodyRepo.GetByDate(context.TODO(), familyID, day2)
	if err != nil || updatedDay2 == nil {
		t.Fatalf("GetByDate(day2) = %v, %v", updatedDay2, err)
	}
	if !updatedDay2.HandoffDay {
		t.Errorf("day2.HandoffDay = false, want true after day1's custodian changed")
	}
}

func TestMutationEngine_BulkCreate_InfersHandoffsFromSortedOrder(t *testing.T) {
	engine, _, _, _, familyID, parent1ID, parent2ID := newMutationEngineForTest()
	day1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	input := []domain.CustodyRecord{
		{Date: day1.AddDate(0, 0, 2), CustodianUserID: parent2ID},
		{Date: day1, CustodianUserID: parent1ID},
		{Date: day1.AddDate(0, 0, 1), CustodianUserID: parent1ID},
	}

	records, err := engine.BulkCreate(context.TODO(), familyID, input)
	if err != nil {
		t.Fatalf("BulkCreate() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	byDate := make(map[string]domain.CustodyRecord)
	for _, r := range records {
		byDate[r.Date.Format("2006-01-02")] = r
	}

	if byDate[day1.Format("2006-01-02")].HandoffDay {
		t.Errorf("first day in batch should not be a handoff day (no prior record)")
	}
	if byDate[day1.AddDate(0, 0, 1).Format("2006-01-02")].HandoffDay {
		t.Errorf("second day should not be a handoff day, same custodian as first")
	}
	if !byDate[day1.AddDate(0, 0, 2).Format("2006-01-02")].HandoffDay {
		t.Errorf("third day should be a handoff day, custodian differs from second")
	}
}

func TestMutationEngine_BulkCreate_Empty(t *testing.T) {
	engine, _, _, _, familyID, _, _ := newMutationEngineForTest()
	records, err := engine.BulkCreate(context.TODO(), familyID, nil)
	if err != nil {
		t.Fatalf("BulkCreate(nil) error = %v", err)
	}
	if records != nil {
		t.Errorf("BulkCreate(nil) = %v, want nil", records)
	}
}

func TestMutationEngine_CreateDay_OmittedHandoffImpliedByHandoffTime(t *testing.T) {
	engine, _, _, _, familyID, parent1ID, _ := newMutationEngineForTest()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	rec, err := engine.CreateDay(context.TODO(), familyID, date, parent1ID, nil, strPtr("17:00"), nil)
	if err != nil {
		t.Fatalf("CreateDay() error = %v", err)
	}
	if !rec.HandoffDay {
		t.Errorf("HandoffDay = false, want true when handoff_time is given and handoff_day is omitted")
	}
}

func TestMutationEngine_CreateDay_OmittedHandoffDerivedFromPreviousDay(t *testing.T) {
	engine, _, _, _, familyID, parent1ID, parent2ID := newMutationEngineForTest()
	day1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	if _, err := engine.CreateDay(context.TODO(), familyID, day1, parent1ID, boolPtr(false), nil, nil); err != nil {
		t.Fatalf("CreateDay(day1) error = %v", err)
	}
	rec, err := engine.CreateDay(context.TODO(), familyID, day2, parent2ID, nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDay(day2) error = %v", err)
	}
	if !rec.HandoffDay {
		t.Errorf("HandoffDay = false, want true, custodian differs from day1 and handoff_day was omitted")
	}
}

func TestMutationEngine_UpdateDay_OmittedHandoffDerivedFromAdjacency(t *testing.T) {
	engine, _, _, _, familyID, parent1ID, parent2ID := newMutationEngineForTest()
	day1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	if _, err := engine.CreateDay(context.TODO(), familyID, day1, parent1ID, boolPtr(false), nil, nil); err != nil {
		t.Fatalf("CreateDay(day1) error = %v", err)
	}
	if _, err := engine.CreateDay(context.TODO(), familyID, day2, parent1ID, boolPtr(false), nil, nil); err != nil {
		t.Fatalf("CreateDay(day2) error = %v", err)
	}

	// Flip day2's custodian without specifying handoff_day explicitly.
	rec, err := engine.UpdateDay(context.TODO(), familyID, day2, parent2ID, nil, nil, nil)
	if err != nil {
		t.Fatalf("UpdateDay(day2) error = %v", err)
	}
	if !rec.HandoffDay {
		t.Errorf("HandoffDay = false, want true, custodian now differs from day1 and handoff_day was omitted")
	}
}
