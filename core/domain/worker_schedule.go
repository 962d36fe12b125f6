package domain

import (
	"time"

	"github.com/google/uuid"
)

type SchedulePatternType string

const (
	PatternWeekly           SchedulePatternType = "weekly"
	PatternAlternatingWeeks SchedulePatternType = "alternating_weeks"
	PatternAlternatingDays  SchedulePatternType = "alternating_days"
	PatternCustom           SchedulePatternType = "custom"
)

// WeekdaySlot assigns one of three outcomes to a weekday: parent1,
// parent2, or unassigned (no record authored for that day).
type WeekdaySlot string

const (
	SlotParent1    WeekdaySlot = "parent1"
	SlotParent2    WeekdaySlot = "parent2"
	SlotUnassigned WeekdaySlot = "unassigned"
)

// ScheduleTemplate drives custody generation. Only one template per
// family may be active at a time (Invariant A1); callers enforce this
// at creation/activation time, not the struct itself.
type ScheduleTemplate struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	FamilyID    uuid.UUID           `json:"family_id" db:"family_id"`
	PatternType SchedulePatternType `json:"pattern_type" db:"pattern_type"`
	Active      bool                `json:"active" db:"active"`

	// WeeklyPattern maps time.Weekday (0=Sunday..6=Saturday) to a slot.
	// Populated for PatternWeekly; nil otherwise.
	WeeklyPattern map[time.Weekday]WeekdaySlot `json:"weekly_pattern,omitempty" db:"-"`

	// AlternatingAnchor is the reference date a 1-week or 1-day
	// alternation starts counting from, with AnchorParent holding that
	// anchor day. Used for PatternAlternatingWeeks/Days.
	AlternatingAnchor *time.Time `json:"alternating_anchor,omitempty" db:"alternating_anchor"`
	AnchorParent      WeekdaySlot `json:"anchor_parent,omitempty" db:"anchor_parent"`

	// RawPattern is the serialized form persisted to the pattern_config
	// column; the gateway is responsible for marshaling WeeklyPattern /
	// AlternatingAnchor into and out of it.
	RawPattern []byte `json:"-" db:"pattern_config"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SlotForDate resolves which parent (if any) has custody of a given
// calendar date under this template, independent of handoff fields.
func (t *ScheduleTemplate) SlotForDate(date time.Time) WeekdaySlot {
	switch t.PatternType {
	case PatternWeekly:
		if t.WeeklyPattern == nil {
			return SlotUnassigned
		}
		slot, ok := t.WeeklyPattern[date.Weekday()]
		if !ok {
			return SlotUnassigned
		}
		return slot
	case PatternAlternatingWeeks:
		if t.AlternatingAnchor == nil {
			return SlotUnassigned
		}
		anchorWeekStart := startOfWeek(*t.AlternatingAnchor)
		thisWeekStart := startOfWeek(date)
		weeks := int(thisWeekStart.Sub(anchorWeekStart).Hours() / (24 * 7))
		if weeks%2 == 0 {
			return t.AnchorParent
		}
		return opposite(t.AnchorParent)
	case PatternAlternatingDays:
		if t.AlternatingAnchor == nil {
			return SlotUnassigned
		}
		days := int(truncateDay(date).Sub(truncateDay(*t.AlternatingAnchor)).Hours() / 24)
		if days%2 == 0 {
			return t.AnchorParent
		}
		return opposite(t.AnchorParent)
	default:
		return SlotUnassigned
	}
}

func opposite(s WeekdaySlot) WeekdaySlot {
	switch s {
	case SlotParent1:
		return SlotParent2
	case SlotParent2:
		return SlotParent1
	default:
		return SlotUnassigned
	}
}

func startOfWeek(t time.Time) time.Time {
	d := truncateDay(t)
	offset := int(d.Weekday())
	return d.AddDate(0, 0, -offset)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
