package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
	"calndr/pkg/logger"
)

// Aggregator is C7: unions FamilyEvents with the events of every
// school/daycare provider the family has assigned AND enabled,
// projected to one uniform shape and cached for 15 minutes. Provider
// events are not filtered by type: ProviderEvent carries no event type,
// so every scraped event of such a provider is included.
type Aggregator struct {
	eventRepo    out.FamilyEventRepository
	providerRepo out.ProviderRepository
	providerEvt  out.ProviderEventRepository
	cacheCoord   out.CacheCoordinator
	ttl          time.Duration
}

func NewAggregator(eventRepo out.FamilyEventRepository, providerRepo out.ProviderRepository, providerEvt out.ProviderEventRepository, cacheCoord out.CacheCoordinator) *Aggregator {
	return &Aggregator{
		eventRepo:    eventRepo,
		providerRepo: providerRepo,
		providerEvt:  providerEvt,
		cacheCoord:   cacheCoord,
		ttl:          15 * time.Minute,
	}
}

func (a *Aggregator) GetMonth(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.AggregatedEvent, error) {
	key := domain.EventsCacheKey(familyID, year, month)

	var cached []domain.AggregatedEvent
	if hit, err := a.cacheCoord.Get(ctx, key, &cached); err != nil {
		logger.Warn("[Aggregator.GetMonth] cache read failed family=%s key=%s: %v", familyID, key, err)
	} else if hit {
		return cached, nil
	}

	familyEvents, err := a.eventRepo.ListByMonth(ctx, familyID, year, month)
	if err != nil {
		return nil, fmt.Errorf("aggregate: list family events: %w", err)
	}

	result := make([]domain.AggregatedEvent, 0, len(familyEvents))
	for _, e := range familyEvents {
		result = append(result, domain.FromFamilyEvent(e))
	}

	for _, kind := range []domain.ProviderKind{domain.ProviderSchool, domain.ProviderDaycare} {
		assignment, err := a.providerRepo.GetFamilyAssignment(ctx, familyID, kind)
		if err != nil {
			logger.Warn("[Aggregator.GetMonth] get assignment failed family=%s kind=%s: %v", familyID, kind, err)
			continue
		}
		if assignment == nil {
			continue
		}

		enabledIDs, err := a.providerRepo.ListEnabledProviders(ctx, kind)
		if err != nil {
			logger.Warn("[Aggregator.GetMonth] list enabled providers failed kind=%s: %v", kind, err)
			continue
		}
		if !containsID(enabledIDs, assignment.ProviderID) {
			continue
		}

		providerEvents, err := a.providerEvt.ListByProviderAndMonth(ctx, kind, assignment.ProviderID, year, month)
		if err != nil {
			logger.Warn("[Aggregator.GetMonth] list provider events failed kind=%s: %v", kind, err)
			continue
		}
		source := domain.SourceSchoolProvider
		if kind == domain.ProviderDaycare {
			source = domain.SourceDaycareProvider
		}
		for _, e := range providerEvents {
			result = append(result, domain.FromProviderEvent(e, source))
		}
	}

	if err := a.cacheCoord.Set(ctx, key, result, a.ttl); err != nil {
		logger.Warn("[Aggregator.GetMonth] cache write failed family=%s key=%s: %v", familyID, key, err)
	}

	return result, nil
}

// Invalidate is called after any FamilyEvent write so the next read
// rebuilds the aggregated view instead of serving stale data for the
// remainder of the TTL.
func (a *Aggregator) Invalidate(ctx context.Context, familyID uuid.UUID) {
	if err := a.cacheCoord.DeletePattern(ctx, domain.EventsCachePattern(familyID)); err != nil {
		logger.Warn("[Aggregator.Invalidate] pattern delete failed family=%s: %v", familyID, err)
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
