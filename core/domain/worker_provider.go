package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProviderKind string

const (
	ProviderSchool  ProviderKind = "school"
	ProviderDaycare ProviderKind = "daycare"
)

// SchoolProvider is a school calendar source a family can assign to
// itself; its enabled flag gates whether C7 includes its events in the
// aggregated view.
type SchoolProvider struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	URL       string    `json:"url" db:"url"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type DaycareProvider struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	URL       string    `json:"url" db:"url"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FamilyProviderAssignment records which school/daycare provider a
// family has opted into; C7 only surfaces events from assigned AND
// enabled providers.
type FamilyProviderAssignment struct {
	FamilyID   uuid.UUID    `json:"family_id" db:"family_id"`
	Kind       ProviderKind `json:"kind" db:"kind"`
	ProviderID uuid.UUID    `json:"provider_id" db:"provider_id"`
	AssignedAt time.Time    `json:"assigned_at" db:"assigned_at"`
}

type SyncStatus string

const (
	SyncStatusOK     SyncStatus = "ok"
	SyncStatusFailed SyncStatus = "failed"
)

// ProviderCalendarSync is the per-provider sync bookkeeping row, keyed
// by (provider_kind, provider_id, url). On failure the row records the
// error but existing ProviderEvents are left untouched.
type ProviderCalendarSync struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	ProviderKind ProviderKind `json:"provider_kind" db:"provider_kind"`
	ProviderID   uuid.UUID  `json:"provider_id" db:"provider_id"`
	URL          string     `json:"url" db:"url"`
	Status       SyncStatus `json:"status" db:"status"`
	LastError    *string    `json:"last_error,omitempty" db:"last_error"`
	EventCount   int        `json:"event_count" db:"event_count"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	RetryCount   int        `json:"retry_count" db:"retry_count"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// ProviderEvent is a discrete closure/event row scraped from a
// provider's public calendar page. Invariant A6: unique per
// (provider_kind, provider_id, event_date, title).
type ProviderEvent struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	ProviderKind ProviderKind `json:"provider_kind" db:"provider_kind"`
	ProviderID   uuid.UUID    `json:"provider_id" db:"provider_id"`
	EventDate    time.Time    `json:"event_date" db:"event_date"`
	Title        string       `json:"title" db:"title"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

const ProviderEventTitleMaxLen = 100

func TruncateTitle(title string) string {
	r := []rune(title)
	if len(r) <= ProviderEventTitleMaxLen {
		return title
	}
	return string(r[:ProviderEventTitleMaxLen])
}
