package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"calndr/core/domain"
	"calndr/core/port/out"
)

type ProviderGateway struct {
	db *sqlx.DB
}

func NewProviderGateway(db *sqlx.DB) *ProviderGateway {
	return &ProviderGateway{db: db}
}

var _ out.ProviderRepository = (*ProviderGateway)(nil)

func (g *ProviderGateway) GetSchoolProvider(ctx context.Context, id uuid.UUID) (*domain.SchoolProvider, error) {
	var p domain.SchoolProvider
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &p,
		`SELECT id, name, url, enabled, created_at FROM school_providers WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get school provider %s: %w", id, err)
	}
	return &p, nil
}

func (g *ProviderGateway) GetDaycareProvider(ctx context.Context, id uuid.UUID) (*domain.DaycareProvider, error) {
	var p domain.DaycareProvider
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &p,
		`SELECT id, name, url, enabled, created_at FROM daycare_providers WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daycare provider %s: %w", id, err)
	}
	return &p, nil
}

func (g *ProviderGateway) ListEnabledProviders(ctx context.Context, kind domain.ProviderKind) ([]uuid.UUID, error) {
	table := providerTable(kind)
	var ids []uuid.UUID
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &ids,
		fmt.Sprintf(`SELECT id FROM %s WHERE enabled = true`, table))
	if err != nil {
		return nil, fmt.Errorf("list enabled %s providers: %w", kind, err)
	}
	return ids, nil
}

func (g *ProviderGateway) GetFamilyAssignment(ctx context.Context, familyID uuid.UUID, kind domain.ProviderKind) (*domain.FamilyProviderAssignment, error) {
	var a domain.FamilyProviderAssignment
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &a,
		`SELECT family_id, kind, provider_id, assigned_at FROM family_provider_assignments
		 WHERE family_id = $1 AND kind = $2`, familyID, kind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family provider assignment %s/%s: %w", familyID, kind, err)
	}
	return &a, nil
}

func (g *ProviderGateway) SetFamilyAssignment(ctx context.Context, a domain.FamilyProviderAssignment) error {
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`INSERT INTO family_provider_assignments (family_id, kind, provider_id, assigned_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (family_id, kind) DO UPDATE SET provider_id = EXCLUDED.provider_id, assigned_at = EXCLUDED.assigned_at`,
		a.FamilyID, a.Kind, a.ProviderID)
	if err != nil {
		return fmt.Errorf("set family provider assignment: %w", err)
	}
	return nil
}

func providerTable(kind domain.ProviderKind) string {
	if kind == domain.ProviderDaycare {
		return "daycare_providers"
	}
	return "school_providers"
}
