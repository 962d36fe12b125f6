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

type FamilyEventGateway struct {
	db *sqlx.DB
}

func NewFamilyEventGateway(db *sqlx.DB) *FamilyEventGateway {
	return &FamilyEventGateway{db: db}
}

var _ out.FamilyEventRepository = (*FamilyEventGateway)(nil)

const eventSelectCols = `id, family_id, created_by, title, description, starts_at, ends_at, all_day, created_at, updated_at`

func (g *FamilyEventGateway) GetByID(ctx context.Context, id uuid.UUID) (*domain.FamilyEvent, error) {
	var e domain.FamilyEvent
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &e,
		`SELECT `+eventSelectCols+` FROM family_events WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family event %s: %w", id, err)
	}
	return &e, nil
}

func (g *FamilyEventGateway) ListByMonth(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.FamilyEvent, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var events []domain.FamilyEvent
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &events,
		`SELECT `+eventSelectCols+` FROM family_events
		 WHERE family_id = $1 AND starts_at < $3 AND ends_at >= $2 ORDER BY starts_at ASC`,
		familyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list family events %s %04d-%02d: %w", familyID, year, month, err)
	}
	return events, nil
}

func (g *FamilyEventGateway) Create(ctx context.Context, e *domain.FamilyEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`INSERT INTO family_events (id, family_id, created_by, title, description, starts_at, ends_at, all_day, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		e.ID, e.FamilyID, e.CreatedBy, e.Title, e.Description, e.StartsAt, e.EndsAt, e.AllDay)
	if err != nil {
		return fmt.Errorf("create family event: %w", err)
	}
	return nil
}

func (g *FamilyEventGateway) Update(ctx context.Context, e *domain.FamilyEvent) error {
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`UPDATE family_events SET title = $1, description = $2, starts_at = $3, ends_at = $4, all_day = $5, updated_at = now()
		 WHERE id = $6`,
		e.Title, e.Description, e.StartsAt, e.EndsAt, e.AllDay, e.ID)
	if err != nil {
		return fmt.Errorf("update family event %s: %w", e.ID, err)
	}
	return nil
}

func (g *FamilyEventGateway) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx, `DELETE FROM family_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete family event %s: %w", id, err)
	}
	return nil
}
