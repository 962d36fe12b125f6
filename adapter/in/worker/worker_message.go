package worker

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for job scheduling.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// JobType represents the type of a job.
type JobType = string

const (
	// JobCustodyGenerate materializes CustodyRecords from a family's
	// active ScheduleTemplate over a date range (C3).
	JobCustodyGenerate JobType = "custody.generate"

	// JobProviderSync runs C6's discover→fetch→parse→persist pipeline
	// for a single provider.
	JobProviderSync JobType = "sync.provider"

	// JobProviderSyncBatch runs SyncAll for every provider of a kind,
	// fired on the configured batch cadence.
	JobProviderSyncBatch JobType = "sync.batch"

	// JobProviderSyncRetry re-attempts providers whose last sync
	// failed and whose backoff window has elapsed.
	JobProviderSyncRetry JobType = "sync.retry"

	// JobIntegrityAudit runs C8 for a family, optionally repairing
	// what it finds.
	JobIntegrityAudit JobType = "integrity.audit"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// NewPriorityMessage creates a message with specific priority.
func NewPriorityMessage(jobType string, payload map[string]any, priority Priority) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// IsPriority checks if message should go to priority queue.
func (m *Message) IsPriority() bool {
	return m.Priority >= PriorityHigh
}

// CustodyGeneratePayload triggers C3 generation for a family.
type CustodyGeneratePayload struct {
	FamilyID uuid.UUID `json:"family_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

// ProviderSyncPayload triggers a single-provider C6 sync.
type ProviderSyncPayload struct {
	Kind       string    `json:"kind"` // "school" or "daycare"
	ProviderID uuid.UUID `json:"provider_id"`
	URL        string    `json:"url"`
}

// ProviderSyncBatchPayload triggers SyncAll for a provider kind.
type ProviderSyncBatchPayload struct {
	Kind string `json:"kind"`
}

// IntegrityAuditPayload triggers C8 for a family.
type IntegrityAuditPayload struct {
	FamilyID uuid.UUID `json:"family_id"`
	DryRun   bool      `json:"dry_run"`
}
