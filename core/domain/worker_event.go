package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FamilyEvent is a user-authored calendar event, distinct from custody
// assignments and from provider-sourced closure events.
type FamilyEvent struct {
	ID          uuid.UUID `json:"id" db:"id"`
	FamilyID    uuid.UUID `json:"family_id" db:"family_id"`
	CreatedBy   uuid.UUID `json:"created_by" db:"created_by"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	StartsAt    time.Time `json:"starts_at" db:"starts_at"`
	EndsAt      time.Time `json:"ends_at" db:"ends_at"`
	AllDay      bool      `json:"all_day" db:"all_day"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// AggregatedEventSource identifies which underlying table an
// AggregatedEvent was projected from.
type AggregatedEventSource string

const (
	SourceFamilyEvent     AggregatedEventSource = "family_event"
	SourceSchoolProvider  AggregatedEventSource = "school_provider"
	SourceDaycareProvider AggregatedEventSource = "daycare_provider"
)

// AggregatedEvent is the uniform projection C7 returns: FamilyEvents
// unioned with all events from assigned, enabled providers (provider
// events are not filtered by type).
type AggregatedEvent struct {
	ID          string                 `json:"id"`
	Source      AggregatedEventSource  `json:"source"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	StartsAt    time.Time              `json:"starts_at"`
	EndsAt      time.Time              `json:"ends_at"`
	AllDay      bool                   `json:"all_day"`
}

func FromFamilyEvent(e FamilyEvent) AggregatedEvent {
	return AggregatedEvent{
		ID:          e.ID.String(),
		Source:      SourceFamilyEvent,
		Title:       e.Title,
		Description: e.Description,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		AllDay:      e.AllDay,
	}
}

func EventsCacheKey(familyID uuid.UUID, year, month int) string {
	return fmt.Sprintf("%s:events:%s:%04d-%02d", cacheNamespace, familyID, year, month)
}

func EventsCachePattern(familyID uuid.UUID) string {
	return fmt.Sprintf("%s:events:%s:*", cacheNamespace, familyID)
}

func FromProviderEvent(e ProviderEvent, source AggregatedEventSource) AggregatedEvent {
	return AggregatedEvent{
		ID:       e.ID.String(),
		Source:   source,
		Title:    e.Title,
		StartsAt: e.EventDate,
		EndsAt:   e.EventDate,
		AllDay:   true,
	}
}
