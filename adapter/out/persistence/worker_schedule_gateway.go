package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"calndr/core/domain"
	"calndr/core/port/out"
)

type ScheduleTemplateGateway struct {
	db *sqlx.DB
}

func NewScheduleTemplateGateway(db *sqlx.DB) *ScheduleTemplateGateway {
	return &ScheduleTemplateGateway{db: db}
}

var _ out.ScheduleTemplateRepository = (*ScheduleTemplateGateway)(nil)

type scheduleTemplateRow struct {
	ID                uuid.UUID      `db:"id"`
	FamilyID          uuid.UUID      `db:"family_id"`
	PatternType       string         `db:"pattern_type"`
	Active            bool           `db:"active"`
	PatternConfig     []byte         `db:"pattern_config"`
	AlternatingAnchor sql.NullTime   `db:"alternating_anchor"`
	AnchorParent      sql.NullString `db:"anchor_parent"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r scheduleTemplateRow) toEntity() (*domain.ScheduleTemplate, error) {
	t := &domain.ScheduleTemplate{
		ID:          r.ID,
		FamilyID:    r.FamilyID,
		PatternType: domain.SchedulePatternType(r.PatternType),
		Active:      r.Active,
		RawPattern:  r.PatternConfig,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.AlternatingAnchor.Valid {
		t.AlternatingAnchor = &r.AlternatingAnchor.Time
	}
	if r.AnchorParent.Valid {
		t.AnchorParent = domain.WeekdaySlot(r.AnchorParent.String)
	}
	if t.PatternType == domain.PatternWeekly && len(r.PatternConfig) > 0 {
		var weekly map[string]string
		if err := json.Unmarshal(r.PatternConfig, &weekly); err != nil {
			return nil, fmt.Errorf("decode weekly pattern: %w", err)
		}
		t.WeeklyPattern = make(map[time.Weekday]domain.WeekdaySlot, len(weekly))
		for k, v := range weekly {
			var wd int
			if _, err := fmt.Sscanf(k, "%d", &wd); err == nil {
				t.WeeklyPattern[time.Weekday(wd)] = domain.WeekdaySlot(v)
			}
		}
	}
	return t, nil
}

func (g *ScheduleTemplateGateway) GetActive(ctx context.Context, familyID uuid.UUID) (*domain.ScheduleTemplate, error) {
	var row scheduleTemplateRow
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &row,
		`SELECT id, family_id, pattern_type, active, pattern_config, alternating_anchor, anchor_parent, created_at, updated_at
		 FROM schedule_templates WHERE family_id = $1 AND active = true LIMIT 1`, familyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active template %s: %w", familyID, err)
	}
	return row.toEntity()
}

func (g *ScheduleTemplateGateway) Create(ctx context.Context, t *domain.ScheduleTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	pattern := t.RawPattern
	if pattern == nil && t.WeeklyPattern != nil {
		encoded := make(map[string]string, len(t.WeeklyPattern))
		for wd, slot := range t.WeeklyPattern {
			encoded[fmt.Sprintf("%d", int(wd))] = string(slot)
		}
		b, err := json.Marshal(encoded)
		if err != nil {
			return fmt.Errorf("encode weekly pattern: %w", err)
		}
		pattern = b
	}
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`INSERT INTO schedule_templates (id, family_id, pattern_type, active, pattern_config, alternating_anchor, anchor_parent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		t.ID, t.FamilyID, t.PatternType, t.Active, pattern, t.AlternatingAnchor, string(t.AnchorParent))
	if err != nil {
		return fmt.Errorf("create schedule template: %w", err)
	}
	return nil
}

func (g *ScheduleTemplateGateway) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleTemplate, error) {
	var row scheduleTemplateRow
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &row,
		`SELECT id, family_id, pattern_type, active, pattern_config, alternating_anchor, anchor_parent, created_at, updated_at
		 FROM schedule_templates WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return row.toEntity()
}

func (g *ScheduleTemplateGateway) Update(ctx context.Context, t *domain.ScheduleTemplate) error {
	pattern := t.RawPattern
	if pattern == nil && t.WeeklyPattern != nil {
		encoded := make(map[string]string, len(t.WeeklyPattern))
		for wd, slot := range t.WeeklyPattern {
			encoded[fmt.Sprintf("%d", int(wd))] = string(slot)
		}
		b, err := json.Marshal(encoded)
		if err != nil {
			return fmt.Errorf("encode weekly pattern: %w", err)
		}
		pattern = b
	}
	res, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`UPDATE schedule_templates SET pattern_type = $2, pattern_config = $3, alternating_anchor = $4, anchor_parent = $5, updated_at = now()
		 WHERE id = $1`,
		t.ID, t.PatternType, pattern, t.AlternatingAnchor, string(t.AnchorParent))
	if err != nil {
		return fmt.Errorf("update schedule template %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule template %s: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update schedule template %s: not found", t.ID)
	}
	return nil
}

func (g *ScheduleTemplateGateway) DeactivateAll(ctx context.Context, familyID uuid.UUID) error {
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`UPDATE schedule_templates SET active = false, updated_at = now() WHERE family_id = $1 AND active = true`, familyID)
	if err != nil {
		return fmt.Errorf("deactivate templates %s: %w", familyID, err)
	}
	return nil
}
