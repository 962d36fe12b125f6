package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default handoff fields applied when a transition day's location/time
// aren't explicitly supplied by the schedule template or caller.
const (
	DefaultWeekendHandoffTime     = "12:00"
	DefaultWeekendHandoffLocation = "other"
	DefaultWeekdayHandoffTime     = "17:00"
	DefaultWeekdayHandoffLocation = "daycare"
)

// CustodyRecord assigns custody of a single calendar date to a family
// member. Invariants (enforced by the mutation engine, not this struct):
// A2 one record per family+date, A3 custodian belongs to the family,
// A4 handoff/custodian fields stay consistent with the adjacent day,
// A5 handoff_day=true requires non-null handoff_time/handoff_location.
type CustodyRecord struct {
	ID              uuid.UUID `json:"id" db:"id"`
	FamilyID        uuid.UUID `json:"family_id" db:"family_id"`
	Date            time.Time `json:"date" db:"date"`
	CustodianUserID uuid.UUID `json:"custodian_user_id" db:"custodian_user_id"`
	HandoffDay      bool      `json:"handoff_day" db:"handoff_day"`
	HandoffTime     *string   `json:"handoff_time,omitempty" db:"handoff_time"`
	HandoffLocation *string   `json:"handoff_location,omitempty" db:"handoff_location"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ApplyDefaultHandoff fills handoff_time/handoff_location with the
// weekend or weekday defaults when the record is a handoff day and the
// caller left them unset.
func (c *CustodyRecord) ApplyDefaultHandoff() {
	if !c.HandoffDay {
		return
	}
	if c.HandoffTime == nil || c.HandoffLocation == nil {
		t, loc := DefaultWeekdayHandoffTime, DefaultWeekdayHandoffLocation
		if IsWeekend(c.Date) {
			t, loc = DefaultWeekendHandoffTime, DefaultWeekendHandoffLocation
		}
		if c.HandoffTime == nil {
			c.HandoffTime = &t
		}
		if c.HandoffLocation == nil {
			c.HandoffLocation = &loc
		}
	}
}

// MonthKey identifies a (family, year, month) unit for caching and
// bulk querying. Month is 1-indexed.
type MonthKey struct {
	FamilyID uuid.UUID
	Year     int
	Month    int
}

func (k MonthKey) Range() (start, end time.Time) {
	start = time.Date(k.Year, time.Month(k.Month), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

func (k MonthKey) IsFuture(now time.Time) bool {
	start, _ := k.Range()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start.After(current)
}

func (k MonthKey) IsPast(now time.Time) bool {
	_, end := k.Range()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return end.Before(current.AddDate(0, 1, 0)) && !k.IsFuture(now)
}

const cacheNamespace = "calndr"

func (k MonthKey) CacheKeyCustody() string {
	return fmt.Sprintf("%s:custody_opt:%s:%04d-%02d", cacheNamespace, k.FamilyID, k.Year, k.Month)
}

func (k MonthKey) CacheKeyHandoffOnly() string {
	return fmt.Sprintf("%s:handoff_only:%s:%04d-%02d", cacheNamespace, k.FamilyID, k.Year, k.Month)
}

// CachePatternFamilyCustody matches every custody_opt month entry for a
// family; CachePatternFamilyHandoffOnly below matches the family's
// handoff_only month entries.
func CachePatternFamilyCustody(familyID uuid.UUID) string {
	return fmt.Sprintf("%s:custody_opt:%s:*", cacheNamespace, familyID)
}

func CachePatternFamilyHandoffOnly(familyID uuid.UUID) string {
	return fmt.Sprintf("%s:handoff_only:%s:*", cacheNamespace, familyID)
}

// HandoffOnly projects a CustodyRecord to the subset of fields the
// handoff-only monthly view exposes.
type HandoffOnly struct {
	Date            time.Time `json:"date"`
	HandoffDay      bool      `json:"handoff_day"`
	HandoffTime     *string   `json:"handoff_time,omitempty"`
	HandoffLocation *string   `json:"handoff_location,omitempty"`
}
