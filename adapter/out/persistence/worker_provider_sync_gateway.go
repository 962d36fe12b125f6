package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"calndr/core/domain"
	"calndr/core/port/out"
)

// ProviderSyncGateway persists ProviderCalendarSync rows, keyed by
// (provider_kind, provider_id, url) rather than a surrogate pair the
// way the teacher's calendar-sync adapter keyed on
// (connection_id, calendar_id).
type ProviderSyncGateway struct {
	db *sqlx.DB
}

func NewProviderSyncGateway(db *sqlx.DB) *ProviderSyncGateway {
	return &ProviderSyncGateway{db: db}
}

var _ out.ProviderSyncRepository = (*ProviderSyncGateway)(nil)

type providerSyncRow struct {
	ID           uuid.UUID    `db:"id"`
	ProviderKind string       `db:"provider_kind"`
	ProviderID   uuid.UUID    `db:"provider_id"`
	URL          string       `db:"url"`
	Status       string       `db:"status"`
	LastError    sql.NullString `db:"last_error"`
	EventCount   int          `db:"event_count"`
	LastSyncedAt sql.NullTime `db:"last_synced_at"`
	RetryCount   int          `db:"retry_count"`
	NextRetryAt  sql.NullTime `db:"next_retry_at"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (r providerSyncRow) toEntity() domain.ProviderCalendarSync {
	s := domain.ProviderCalendarSync{
		ID:           r.ID,
		ProviderKind: domain.ProviderKind(r.ProviderKind),
		ProviderID:   r.ProviderID,
		URL:          r.URL,
		Status:       domain.SyncStatus(r.Status),
		EventCount:   r.EventCount,
		RetryCount:   r.RetryCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastError.Valid {
		s.LastError = &r.LastError.String
	}
	if r.LastSyncedAt.Valid {
		s.LastSyncedAt = &r.LastSyncedAt.Time
	}
	if r.NextRetryAt.Valid {
		s.NextRetryAt = &r.NextRetryAt.Time
	}
	return s
}

const providerSyncSelectCols = `id, provider_kind, provider_id, url, status, last_error, event_count, last_synced_at, retry_count, next_retry_at, created_at, updated_at`

func (g *ProviderSyncGateway) GetSync(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, url string) (*domain.ProviderCalendarSync, error) {
	var row providerSyncRow
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &row,
		`SELECT `+providerSyncSelectCols+` FROM provider_calendar_syncs WHERE provider_kind = $1 AND provider_id = $2 AND url = $3`,
		kind, providerID, url)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider sync %s/%s: %w", kind, providerID, err)
	}
	entity := row.toEntity()
	return &entity, nil
}

func (g *ProviderSyncGateway) UpsertSync(ctx context.Context, sync *domain.ProviderCalendarSync) error {
	if sync.ID == uuid.Nil {
		sync.ID = uuid.New()
	}
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`INSERT INTO provider_calendar_syncs (id, provider_kind, provider_id, url, status, last_error, event_count, last_synced_at, retry_count, next_retry_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		 ON CONFLICT (provider_kind, provider_id, url) DO UPDATE SET
		   status = EXCLUDED.status,
		   last_error = EXCLUDED.last_error,
		   event_count = EXCLUDED.event_count,
		   last_synced_at = COALESCE(EXCLUDED.last_synced_at, provider_calendar_syncs.last_synced_at),
		   retry_count = EXCLUDED.retry_count,
		   next_retry_at = EXCLUDED.next_retry_at,
		   updated_at = now()`,
		sync.ID, sync.ProviderKind, sync.ProviderID, sync.URL, sync.Status, sync.LastError,
		sync.EventCount, sync.LastSyncedAt, sync.RetryCount, sync.NextRetryAt)
	if err != nil {
		return fmt.Errorf("upsert provider sync %s/%s: %w", sync.ProviderKind, sync.ProviderID, err)
	}
	return nil
}

func (g *ProviderSyncGateway) ListDueForRetry(ctx context.Context, now time.Time) ([]domain.ProviderCalendarSync, error) {
	var rows []providerSyncRow
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &rows,
		`SELECT `+providerSyncSelectCols+` FROM provider_calendar_syncs
		 WHERE status = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("list syncs due for retry: %w", err)
	}
	syncs := make([]domain.ProviderCalendarSync, 0, len(rows))
	for _, r := range rows {
		syncs = append(syncs, r.toEntity())
	}
	return syncs, nil
}

func (g *ProviderSyncGateway) ListAll(ctx context.Context) ([]domain.ProviderCalendarSync, error) {
	var rows []providerSyncRow
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &rows,
		`SELECT `+providerSyncSelectCols+` FROM provider_calendar_syncs ORDER BY provider_kind, provider_id`)
	if err != nil {
		return nil, fmt.Errorf("list provider syncs: %w", err)
	}
	syncs := make([]domain.ProviderCalendarSync, 0, len(rows))
	for _, r := range rows {
		syncs = append(syncs, r.toEntity())
	}
	return syncs, nil
}
