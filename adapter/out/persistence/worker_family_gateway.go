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

type FamilyGateway struct {
	db *sqlx.DB
}

func NewFamilyGateway(db *sqlx.DB) *FamilyGateway {
	return &FamilyGateway{db: db}
}

var _ out.FamilyRepository = (*FamilyGateway)(nil)

func (g *FamilyGateway) GetByID(ctx context.Context, id uuid.UUID) (*domain.Family, error) {
	var f domain.Family
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &f,
		`SELECT id, name, timezone, created_at, updated_at FROM families WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family %s: %w", id, err)
	}
	return &f, nil
}

func (g *FamilyGateway) ListMembers(ctx context.Context, familyID uuid.UUID) ([]domain.User, error) {
	var users []domain.User
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &users,
		`SELECT id, family_id, email, name, status, device_id, created_at, updated_at
		 FROM users WHERE family_id = $1 ORDER BY created_at ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list family members %s: %w", familyID, err)
	}
	return users, nil
}

func (g *FamilyGateway) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &u,
		`SELECT id, family_id, email, name, status, device_id, created_at, updated_at
		 FROM users WHERE id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &u, nil
}

func (g *FamilyGateway) UpdateUserStatus(ctx context.Context, userID uuid.UUID, status domain.UserStatus) error {
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`UPDATE users SET status = $1, updated_at = now() WHERE id = $2`, status, userID)
	if err != nil {
		return fmt.Errorf("update user status %s: %w", userID, err)
	}
	return nil
}
