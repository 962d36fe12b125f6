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

type CustodyGateway struct {
	db *sqlx.DB
}

func NewCustodyGateway(db *sqlx.DB) *CustodyGateway {
	return &CustodyGateway{db: db}
}

var _ out.CustodyRepository = (*CustodyGateway)(nil)

type custodyRow struct {
	ID              uuid.UUID      `db:"id"`
	FamilyID        uuid.UUID      `db:"family_id"`
	Date            time.Time      `db:"date"`
	CustodianUserID uuid.UUID      `db:"custodian_user_id"`
	HandoffDay      bool           `db:"handoff_day"`
	HandoffTime     sql.NullString `db:"handoff_time"`
	HandoffLocation sql.NullString `db:"handoff_location"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r custodyRow) toEntity() domain.CustodyRecord {
	rec := domain.CustodyRecord{
		ID:              r.ID,
		FamilyID:        r.FamilyID,
		Date:            r.Date,
		CustodianUserID: r.CustodianUserID,
		HandoffDay:      r.HandoffDay,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.HandoffTime.Valid {
		rec.HandoffTime = &r.HandoffTime.String
	}
	if r.HandoffLocation.Valid {
		rec.HandoffLocation = &r.HandoffLocation.String
	}
	return rec
}

const custodySelectCols = `id, family_id, date, custodian_user_id, handoff_day, handoff_time, handoff_location, created_at, updated_at`

func (g *CustodyGateway) GetByDate(ctx context.Context, familyID uuid.UUID, date time.Time) (*domain.CustodyRecord, error) {
	var row custodyRow
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &row,
		`SELECT `+custodySelectCols+` FROM custody_records WHERE family_id = $1 AND date = $2`, familyID, date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get custody %s/%s: %w", familyID, date.Format("2006-01-02"), err)
	}
	rec := row.toEntity()
	return &rec, nil
}

func (g *CustodyGateway) GetLatestBefore(ctx context.Context, familyID uuid.UUID, beforeDate time.Time) (*domain.CustodyRecord, error) {
	var row custodyRow
	err := sqlx.GetContext(ctx, dbFromCtx(ctx, g.db), &row,
		`SELECT `+custodySelectCols+` FROM custody_records WHERE family_id = $1 AND date < $2 ORDER BY date DESC LIMIT 1`,
		familyID, beforeDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest custody before %s/%s: %w", familyID, beforeDate.Format("2006-01-02"), err)
	}
	rec := row.toEntity()
	return &rec, nil
}

func (g *CustodyGateway) GetByMonth(ctx context.Context, key domain.MonthKey) ([]domain.CustodyRecord, error) {
	start, end := key.Range()
	var rows []custodyRow
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &rows,
		`SELECT `+custodySelectCols+` FROM custody_records
		 WHERE family_id = $1 AND date >= $2 AND date < $3 ORDER BY date ASC`,
		key.FamilyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get custody month %v: %w", key, err)
	}
	records := make([]domain.CustodyRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toEntity())
	}
	return records, nil
}

func (g *CustodyGateway) Create(ctx context.Context, rec *domain.CustodyRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`INSERT INTO custody_records (id, family_id, date, custodian_user_id, handoff_day, handoff_time, handoff_location, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		rec.ID, rec.FamilyID, rec.Date, rec.CustodianUserID, rec.HandoffDay, rec.HandoffTime, rec.HandoffLocation)
	if err != nil {
		return fmt.Errorf("create custody record: %w", err)
	}
	return nil
}

func (g *CustodyGateway) Update(ctx context.Context, rec *domain.CustodyRecord) error {
	_, err := dbFromCtx(ctx, g.db).ExecContext(ctx,
		`UPDATE custody_records SET custodian_user_id = $1, handoff_day = $2, handoff_time = $3, handoff_location = $4, updated_at = now()
		 WHERE id = $5`,
		rec.CustodianUserID, rec.HandoffDay, rec.HandoffTime, rec.HandoffLocation, rec.ID)
	if err != nil {
		return fmt.Errorf("update custody record %s: %w", rec.ID, err)
	}
	return nil
}

func (g *CustodyGateway) BulkInsert(ctx context.Context, records []domain.CustodyRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert tx: %w", err)
	}
	if err := g.bulkInsert(ctx, tx, records); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

func (g *CustodyGateway) BulkInsertTx(ctx context.Context, tx out.Tx, records []domain.CustodyRecord) error {
	sqlxT := txFromOut(tx)
	if sqlxT == nil {
		return fmt.Errorf("bulk insert: tx not owned by this gateway")
	}
	return g.bulkInsert(ctx, sqlxT, records)
}

func (g *CustodyGateway) bulkInsert(ctx context.Context, tx *sqlx.Tx, records []domain.CustodyRecord) error {
	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO custody_records (id, family_id, date, custodian_user_id, handoff_day, handoff_time, handoff_location, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`)
	if err != nil {
		return fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		id := rec.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, id, rec.FamilyID, rec.Date, rec.CustodianUserID, rec.HandoffDay, rec.HandoffTime, rec.HandoffLocation); err != nil {
			return fmt.Errorf("bulk insert row %s: %w", rec.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (g *CustodyGateway) RepairCustodian(ctx context.Context, tx out.Tx, recordID uuid.UUID, newCustodian uuid.UUID) error {
	sqlxT := txFromOut(tx)
	if sqlxT == nil {
		return fmt.Errorf("repair custodian: tx not owned by this gateway")
	}
	_, err := sqlxT.ExecContext(ctx,
		`UPDATE custody_records SET custodian_user_id = $1, updated_at = now() WHERE id = $2`, newCustodian, recordID)
	if err != nil {
		return fmt.Errorf("repair custodian %s: %w", recordID, err)
	}
	return nil
}

func (g *CustodyGateway) ListByCustodian(ctx context.Context, familyID uuid.UUID, custodianID uuid.UUID) ([]domain.CustodyRecord, error) {
	var rows []custodyRow
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &rows,
		`SELECT `+custodySelectCols+` FROM custody_records WHERE family_id = $1 AND custodian_user_id = $2 ORDER BY date ASC`,
		familyID, custodianID)
	if err != nil {
		return nil, fmt.Errorf("list custody by custodian %s: %w", custodianID, err)
	}
	records := make([]domain.CustodyRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toEntity())
	}
	return records, nil
}

func (g *CustodyGateway) ListAll(ctx context.Context, familyID uuid.UUID) ([]domain.CustodyRecord, error) {
	var rows []custodyRow
	err := sqlx.SelectContext(ctx, dbFromCtx(ctx, g.db), &rows,
		`SELECT `+custodySelectCols+` FROM custody_records WHERE family_id = $1 ORDER BY date ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list all custody for family %s: %w", familyID, err)
	}
	records := make([]domain.CustodyRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toEntity())
	}
	return records, nil
}
