package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"calndr/core/domain"
	"calndr/core/port/out"
)

type ProviderEventGateway struct {
	db *sqlx.DB
}

func NewProviderEventGateway(db *sqlx.DB) *ProviderEventGateway {
	return &ProviderEventGateway{db: db}
}

var _ out.ProviderEventRepository = (*ProviderEventGateway)(nil)

func (g *ProviderEventGateway) ListByProviderAndMonth(ctx context.Context, kind domain.ProviderKind, providerID uuid.UUID, year, month int) ([]domain.ProviderEvent, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var events []domain.ProviderEvent
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &events,
		`SELECT id, provider_kind, provider_id, event_date, title, created_at FROM provider_events
		 WHERE provider_kind = $1 AND provider_id = $2 AND event_date >= $3 AND event_date < $4
		 ORDER BY event_date ASC`,
		kind, providerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list provider events %s/%s %04d-%02d: %w", kind, providerID, year, month, err)
	}
	return events, nil
}

// ReplaceAllTx deletes every event for a provider and inserts the
// freshly parsed batch, atomically: a parse that finds zero events
// never silently wipes a provider's history outside a transaction the
// caller controls and can roll back on downstream failure.
func (g *ProviderEventGateway) ReplaceAllTx(ctx context.Context, tx out.Tx, kind domain.ProviderKind, providerID uuid.UUID, events []domain.ProviderEvent) error {
	sqlxT := txFromOut(tx)
	if sqlxT == nil {
		return fmt.Errorf("replace provider events: tx not owned by this gateway")
	}

	if _, err := sqlxT.ExecContext(ctx,
		`DELETE FROM provider_events WHERE provider_kind = $1 AND provider_id = $2`, kind, providerID); err != nil {
		return fmt.Errorf("delete provider events %s/%s: %w", kind, providerID, err)
	}

	if len(events) == 0 {
		return nil
	}

	stmt, err := sqlxT.PreparexContext(ctx,
		`INSERT INTO provider_events (id, provider_kind, provider_id, event_date, title, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (provider_kind, provider_id, event_date, title) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare provider event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		id := e.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, id, kind, providerID, e.EventDate, domain.TruncateTitle(e.Title)); err != nil {
			return fmt.Errorf("insert provider event %s: %w", e.Title, err)
		}
	}
	return nil
}
