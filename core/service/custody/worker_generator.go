package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
	"calndr/pkg/apperr"
	"calndr/pkg/logger"
)

// Generator is C3: it materializes CustodyRecords from a weekly
// ScheduleTemplate over a date range. It never authors a record for a
// date that is today or in the past, since those days are considered
// already lived and shouldn't be silently rewritten by a schedule
// change.
type Generator struct {
	custodyRepo out.CustodyRepository
	familyRepo  out.FamilyRepository
	txManager   out.TxManager
	cache       out.CacheCoordinator
	now         func() time.Time
}

func NewGenerator(custodyRepo out.CustodyRepository, familyRepo out.FamilyRepository, txManager out.TxManager, cache out.CacheCoordinator) *Generator {
	return &Generator{
		custodyRepo: custodyRepo,
		familyRepo:  familyRepo,
		txManager:   txManager,
		cache:       cache,
		now:         time.Now,
	}
}

func (g *Generator) Generate(ctx context.Context, familyID uuid.UUID, template *domain.ScheduleTemplate, from, to time.Time) ([]domain.CustodyRecord, error) {
	if template.PatternType != domain.PatternWeekly {
		return nil, apperr.UnsupportedPattern(string(template.PatternType))
	}

	members, err := g.familyRepo.ListMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("generate: list members: %w", err)
	}
	parent1, parent2 := domain.ResolveCustodians(members)
	if parent1 == nil || parent2 == nil {
		return nil, apperr.InsufficientFamilyMembers(familyID.String())
	}

	today := truncate(g.now())
	start := truncate(from)
	if floor := today.AddDate(0, 0, 1); start.Before(floor) {
		start = floor
	}
	end := truncate(to)

	records := make([]domain.CustodyRecord, 0, int(end.Sub(start).Hours()/24)+1)
	var prevCustodian uuid.UUID
	havePrev := false

	// Seed prevCustodian from the most recent authored day before the
	// (possibly coerced) start, not necessarily the day immediately
	// before it, since the range may open onto a gap with no record.
	if prior, err := g.custodyRepo.GetLatestBefore(ctx, familyID, start); err == nil && prior != nil {
		prevCustodian = prior.CustodianUserID
		havePrev = true
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !d.After(today) {
			continue
		}
		slot := template.SlotForDate(d)
		var custodianID uuid.UUID
		switch slot {
		case domain.SlotParent1:
			custodianID = parent1.ID
		case domain.SlotParent2:
			custodianID = parent2.ID
		default:
			continue
		}

		handoff := havePrev && custodianID != prevCustodian
		rec := domain.CustodyRecord{
			ID:              uuid.New(),
			FamilyID:        familyID,
			Date:            d,
			CustodianUserID: custodianID,
			HandoffDay:      handoff,
		}
		rec.ApplyDefaultHandoff()
		records = append(records, rec)

		prevCustodian = custodianID
		havePrev = true
	}

	if len(records) == 0 {
		logger.Info("[Generator.Generate] no records to author family=%s from=%s to=%s", familyID, from.Format("2006-01-02"), to.Format("2006-01-02"))
		return records, nil
	}

	txCtx, tx, err := g.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate: begin tx: %w", err)
	}
	if err := g.custodyRepo.BulkInsertTx(txCtx, tx, records); err != nil {
		_ = tx.Rollback(txCtx)
		return nil, fmt.Errorf("generate: bulk insert: %w", err)
	}
	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("generate: commit: %w", err)
	}

	g.invalidateMonths(ctx, familyID, start, end)
	return records, nil
}

func (g *Generator) invalidateMonths(ctx context.Context, familyID uuid.UUID, start, end time.Time) {
	seen := make(map[string]bool)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01")
		if seen[key] {
			continue
		}
		seen[key] = true
		mk := domain.MonthKey{FamilyID: familyID, Year: d.Year(), Month: int(d.Month())}
		if err := g.cache.Delete(ctx, mk.CacheKeyCustody()); err != nil {
			logger.Warn("[Generator.invalidateMonths] cache invalidation failed family=%s month=%s: %v", familyID, key, err)
		}
		if err := g.cache.Delete(ctx, mk.CacheKeyHandoffOnly()); err != nil {
			logger.Warn("[Generator.invalidateMonths] cache invalidation failed family=%s month=%s: %v", familyID, key, err)
		}
	}
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
