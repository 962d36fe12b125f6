package integrity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
	"calndr/pkg/logger"
)

// Auditor is C8: finds CustodyRecords whose custodian no longer
// belongs to the family (a member was removed or reassigned after the
// record was authored) and, optionally, repairs them.
type Auditor struct {
	custodyRepo out.CustodyRepository
	familyRepo  out.FamilyRepository
	txManager   out.TxManager
	cache       out.CacheCoordinator
}

func NewAuditor(custodyRepo out.CustodyRepository, familyRepo out.FamilyRepository, txManager out.TxManager, cache out.CacheCoordinator) *Auditor {
	return &Auditor{custodyRepo: custodyRepo, familyRepo: familyRepo, txManager: txManager, cache: cache}
}

// Audit returns the set of CustodyRecords found to be inconsistent.
// When dryRun is false, each finding is repaired inside one
// transaction and the whole family's cache is invalidated afterward.
func (a *Auditor) Audit(ctx context.Context, familyID uuid.UUID, dryRun bool) ([]domain.CustodyRecord, error) {
	members, err := a.familyRepo.ListMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("audit: list members: %w", err)
	}
	memberIDs := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		memberIDs[m.ID] = true
	}

	records, err := a.custodyRepo.ListAll(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("audit: list all custody records: %w", err)
	}
	var suspect []domain.CustodyRecord
	for _, r := range records {
		if !memberIDs[r.CustodianUserID] {
			suspect = append(suspect, r)
		}
	}

	if len(suspect) == 0 || dryRun {
		return suspect, nil
	}

	replacement, err := suggestReplacement(members)
	if err != nil {
		return suspect, err
	}

	txCtx, tx, err := a.txManager.Begin(ctx)
	if err != nil {
		return suspect, fmt.Errorf("audit: begin tx: %w", err)
	}
	for _, r := range suspect {
		if err := a.custodyRepo.RepairCustodian(txCtx, tx, r.ID, replacement.ID); err != nil {
			_ = tx.Rollback(txCtx)
			return suspect, fmt.Errorf("audit: repair %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(txCtx); err != nil {
		return suspect, fmt.Errorf("audit: commit: %w", err)
	}

	if err := a.cache.DeletePattern(ctx, fmt.Sprintf("calndr:*:%s:*", familyID)); err != nil {
		logger.Warn("[Auditor.Audit] full family cache invalidation failed family=%s: %v", familyID, err)
	}

	return suspect, nil
}

// suggestReplacement picks the custodian a repaired record should be
// reassigned to: when the family has exactly two active members, the
// other of the two (parent2, relative to parent1); otherwise parent1.
func suggestReplacement(members []domain.User) (*domain.User, error) {
	active := 0
	for _, m := range members {
		if m.IsActive() {
			active++
		}
	}
	p1, p2 := domain.ResolveParents(members)
	if p1 == nil {
		return nil, fmt.Errorf("audit: no active member available to reassign custody to")
	}
	if active == 2 && p2 != nil {
		return p2, nil
	}
	return p1, nil
}
