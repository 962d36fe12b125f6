package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestApplyDefaultHandoff(t *testing.T) {
	tests := []struct {
		name       string
		date       time.Time
		handoffDay bool
		wantTime   string
		wantLoc    string
		wantNil    bool
	}{
		{"non-handoff day leaves fields nil", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), false, "", "", true},
		{"weekday handoff gets weekday defaults", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), true, DefaultWeekdayHandoffTime, DefaultWeekdayHandoffLocation, false},
		{"saturday handoff gets weekend defaults", time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), true, DefaultWeekendHandoffTime, DefaultWeekendHandoffLocation, false},
		{"sunday handoff gets weekend defaults", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), true, DefaultWeekendHandoffTime, DefaultWeekendHandoffLocation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &CustodyRecord{Date: tt.date, HandoffDay: tt.handoffDay}
			rec.ApplyDefaultHandoff()

			if tt.wantNil {
				if rec.HandoffTime != nil || rec.HandoffLocation != nil {
					t.Fatalf("expected nil handoff fields, got time=%v location=%v", rec.HandoffTime, rec.HandoffLocation)
				}
				return
			}
			if rec.HandoffTime == nil || *rec.HandoffTime != tt.wantTime {
				t.Errorf("HandoffTime = %v, want %s", rec.HandoffTime, tt.wantTime)
			}
			if rec.HandoffLocation == nil || *rec.HandoffLocation != tt.wantLoc {
				t.Errorf("HandoffLocation = %v, want %s", rec.HandoffLocation, tt.wantLoc)
			}
		})
	}
}

func TestApplyDefaultHandoff_RespectsExplicitValues(t *testing.T) {
	explicitTime := "08:00"
	explicitLoc := "school"
	rec := &CustodyRecord{
		Date:            time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		HandoffDay:      true,
		HandoffTime:     &explicitTime,
		HandoffLocation: &explicitLoc,
	}
	rec.ApplyDefaultHandoff()

	if *rec.HandoffTime != explicitTime {
		t.Errorf("HandoffTime overwritten: got %s, want %s", *rec.HandoffTime, explicitTime)
	}
	if *rec.HandoffLocation != explicitLoc {
		t.Errorf("HandoffLocation overwritten: got %s, want %s", *rec.HandoffLocation, explicitLoc)
	}
}

func TestMonthKey_Range(t *testing.T) {
	k := MonthKey{FamilyID: uuid.New(), Year: 2026, Month: 2}
	start, end := k.Range()

	wantStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestMonthKey_IsFuture(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		month MonthKey
		want  bool
	}{
		{"current month is not future", MonthKey{Year: 2026, Month: 8}, false},
		{"next month is future", MonthKey{Year: 2026, Month: 9}, true},
		{"past month is not future", MonthKey{Year: 2026, Month: 7}, false},
		{"next year is future", MonthKey{Year: 2027, Month: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.month.IsFuture(now); got != tt.want {
				t.Errorf("IsFuture() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthKey_CacheKeys(t *testing.T) {
	familyID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	k := MonthKey{FamilyID: familyID, Year: 2026, Month: 3}

	wantCustody := "calndr:custody_opt:11111111-1111-1111-1111-111111111111:2026-03"
	if got := k.CacheKeyCustody(); got != wantCustody {
		t.Errorf("CacheKeyCustody() = %s, want %s", got, wantCustody)
	}

	wantHandoff := "calndr:handoff_only:11111111-1111-1111-1111-111111111111:2026-03"
	if got := k.CacheKeyHandoffOnly(); got != wantHandoff {
		t.Errorf("CacheKeyHandoffOnly() = %s, want %s", got, wantHandoff)
	}

	wantPattern := "calndr:custody_opt:11111111-1111-1111-1111-111111111111:*"
	if got := CachePatternFamilyCustody(familyID); got != wantPattern {
		t.Errorf("CachePatternFamilyCustody() = %s, want %s", got, wantPattern)
	}
}
