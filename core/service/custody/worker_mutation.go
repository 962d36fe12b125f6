package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
	"calndr/core/service/notify"
	"calndr/pkg/apperr"
)

// MutationEngine is C4: single-day custody create/update and
// deterministic bulk create, repairing handoff adjacency (A4) on
// every write that can change it. Every operation runs inside a
// single transaction so the write and its adjacency repair commit or
// roll back together.
type MutationEngine struct {
	custodyRepo out.CustodyRepository
	txManager   out.TxManager
	cache       out.CacheCoordinator
	fanout      *notify.Fanout
}

func NewMutationEngine(custodyRepo out.CustodyRepository, txManager out.TxManager, cache out.CacheCoordinator, fanout *notify.Fanout) *MutationEngine {
	return &MutationEngine{custodyRepo: custodyRepo, txManager: txManager, cache: cache, fanout: fanout}
}

// CreateDay resolves handoff_day in three steps when the caller leaves
// it unset: true if a handoff_time was given, else derived by
// comparing with the previous day's custodian.
func (m *MutationEngine) CreateDay(ctx context.Context, familyID uuid.UUID, date time.Time, custodianID uuid.UUID, handoff *bool, handoffTime, handoffLocation *string) (*domain.CustodyRecord, error) {
	date = truncate(date)

	txCtx, tx, err := m.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create day: begin tx: %w", err)
	}

	existing, err := m.custodyRepo.GetByDate(txCtx, familyID, date)
	if err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("create day: %w", err)
	}
	if existing != nil {
		_ = tx.Rollback(txCtx)
		return nil, apperr.Conflict(fmt.Sprintf("custody record already exists for %s", date.Format("2006-01-02")))
	}

	handoffDay, err := m.resolveHandoff(txCtx, familyID, date, custodianID, handoff, handoffTime)
	if err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("create day: %w", err)
	}

	rec := &domain.CustodyRecord{
		ID:              uuid.New(),
		FamilyID:        familyID,
		Date:            date,
		CustodianUserID: custodianID,
		HandoffDay:      handoffDay,
		HandoffTime:     handoffTime,
		HandoffLocation: handoffLocation,
	}
	rec.ApplyDefaultHandoff()

	if err := m.custodyRepo.Create(txCtx, rec); err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("create day: %w", err)
	}

	m.repairAdjacency(txCtx, familyID, date)

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("create day: commit: %w", err)
	}

	m.invalidateMonth(ctx, familyID, date)
	m.fanout.NotifyCustodyChange(ctx, familyID, custodianID, *rec, domain.EventCustodyCreated)

	return rec, nil
}

// UpdateDay overwrites the custodian for an existing day. If the
// caller did not explicitly set handoff_day, it's re-derived from
// adjacency with the previous day rather than left at its stale value.
func (m *MutationEngine) UpdateDay(ctx context.Context, familyID uuid.UUID, date time.Time, custodianID uuid.UUID, handoff *bool, handoffTime, handoffLocation *string) (*domain.CustodyRecord, error) {
	date = truncate(date)

	txCtx, tx, err := m.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update day: begin tx: %w", err)
	}

	existing, err := m.custodyRepo.GetByDate(txCtx, familyID, date)
	if err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("update day: %w", err)
	}
	if existing == nil {
		_ = tx.Rollback(txCtx)
		return nil, apperr.NotFound(fmt.Sprintf("custody record for %s", date.Format("2006-01-02")))
	}

	handoffDay, err := m.resolveHandoff(txCtx, familyID, date, custodianID, handoff, handoffTime)
	if err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("update day: %w", err)
	}

	existing.CustodianUserID = custodianID
	existing.HandoffDay = handoffDay
	existing.HandoffTime = handoffTime
	existing.HandoffLocation = handoffLocation
	existing.ApplyDefaultHandoff()

	if err := m.custodyRepo.Update(txCtx, existing); err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("update day: %w", err)
	}

	m.repairAdjacency(txCtx, familyID, date)

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("update day: commit: %w", err)
	}

	m.invalidateMonth(ctx, familyID, date)
	m.fanout.NotifyCustodyChange(ctx, familyID, custodianID, *existing, domain.EventCustodyUpdated)

	return existing, nil
}

// resolveHandoff implements the three-way defaulting shared by
// CreateDay and UpdateDay: an explicit caller value wins outright,
// otherwise a handoff_time implies true, otherwise it's derived from
// whether the previous day's custodian differs from this one.
func (m *MutationEngine) resolveHandoff(ctx context.Context, familyID uuid.UUID, date time.Time, custodianID uuid.UUID, handoff *bool, handoffTime *string) (bool, error) {
	if handoff != nil {
		return *handoff, nil
	}
	if handoffTime != nil {
		return true, nil
	}
	prior, err := m.custodyRepo.GetByDate(ctx, familyID, date.AddDate(0, 0, -1))
	if err != nil {
		return false, err
	}
	return prior != nil && prior.CustodianUserID != custodianID, nil
}

// BulkCreate infers handoff days deterministically within the batch:
// records are sorted by date first, then each day's handoff flag is
// derived from whether its custodian differs from the previous day in
// the sorted batch (falling back to the most recent record preceding
// the batch in storage, if any).
func (m *MutationEngine) BulkCreate(ctx context.Context, familyID uuid.UUID, records []domain.CustodyRecord) ([]domain.CustodyRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	sorted := make([]domain.CustodyRecord, len(records))
	copy(sorted, records)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Date.Before(sorted[i].Date) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	txCtx, tx, err := m.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulk create: begin tx: %w", err)
	}

	var prevCustodian uuid.UUID
	havePrev := false
	if prior, err := m.custodyRepo.GetLatestBefore(txCtx, familyID, truncate(sorted[0].Date)); err == nil && prior != nil {
		prevCustodian = prior.CustodianUserID
		havePrev = true
	}

	for i := range sorted {
		sorted[i].FamilyID = familyID
		sorted[i].Date = truncate(sorted[i].Date)
		if sorted[i].ID == uuid.Nil {
			sorted[i].ID = uuid.New()
		}
		sorted[i].HandoffDay = havePrev && sorted[i].CustodianUserID != prevCustodian
		sorted[i].ApplyDefaultHandoff()
		prevCustodian = sorted[i].CustodianUserID
		havePrev = true
	}

	if err := m.custodyRepo.BulkInsertTx(txCtx, tx, sorted); err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("bulk create: %w", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("bulk create: commit: %w", err)
	}

	minDate, maxDate := sorted[0].Date, sorted[0].Date
	for _, r := range sorted {
		if r.Date.Before(minDate) {
			minDate = r.Date
		}
		if r.Date.After(maxDate) {
			maxDate = r.Date
		}
	}
	for d := minDate; !d.After(maxDate); d = d.AddDate(0, 0, 1) {
		m.invalidateMonth(ctx, familyID, d)
	}

	for _, r := range sorted {
		m.fanout.NotifyCustodyChange(ctx, familyID, r.CustodianUserID, r, domain.EventCustodyCreated)
	}

	return sorted, nil
}

// repairAdjacency recomputes the day after date, since changing
// date's custodian can make that neighbor's handoff_day flag stale
// (Invariant A4). date's own handoff_day is already settled by the
// caller's resolveHandoff pass, so only the forward leg needs repair
// here.
func (m *MutationEngine) repairAdjacency(ctx context.Context, familyID uuid.UUID, date time.Time) {
	m.repairOneDay(ctx, familyID, date.AddDate(0, 0, 1))
}

func (m *MutationEngine) repairOneDay(ctx context.Context, familyID uuid.UUID, date time.Time) {
	rec, err := m.custodyRepo.GetByDate(ctx, familyID, date)
	if err != nil || rec == nil {
		return
	}
	prior, err := m.custodyRepo.GetByDate(ctx, familyID, date.AddDate(0, 0, -1))
	if err != nil {
		return
	}
	wantHandoff := prior != nil && prior.CustodianUserID != rec.CustodianUserID
	if rec.HandoffDay == wantHandoff {
		return
	}
	rec.HandoffDay = wantHandoff
	if !wantHandoff {
		rec.HandoffTime = nil
		rec.HandoffLocation = nil
	} else {
		rec.HandoffTime = nil
		rec.HandoffLocation = nil
		rec.ApplyDefaultHandoff()
	}
	_ = m.custodyRepo.Update(ctx, rec)
}

func (m *MutationEngine) invalidateMonth(ctx context.Context, familyID uuid.UUID, date time.Time) {
	mk := domain.MonthKey{FamilyID: familyID, Year: date.Year(), Month: int(date.Month())}
	_ = m.cache.Delete(ctx, mk.CacheKeyCustody())
	_ = m.cache.Delete(ctx, mk.CacheKeyHandoffOnly())
}
