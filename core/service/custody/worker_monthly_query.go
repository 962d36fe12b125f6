package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
	"calndr/pkg/logger"
)

// MonthlyQueryEngine is C5: cache-through monthly custody reads. The
// two cached shapes have different empty-value semantics: an empty
// custody_opt cache entry is treated as stale (re-queried on every
// read) since a month legitimately having zero records is rare and
// usually means generation hasn't run yet, while an empty
// handoff_only entry is trusted as-is, since "no handoffs this month"
// is a normal, cacheable outcome.
type MonthlyQueryEngine struct {
	custodyRepo  out.CustodyRepository
	templateRepo out.ScheduleTemplateRepository
	cache        out.CacheCoordinator
	generator    *Generator
	now          func() time.Time
}

func NewMonthlyQueryEngine(custodyRepo out.CustodyRepository, templateRepo out.ScheduleTemplateRepository, cache out.CacheCoordinator, generator *Generator) *MonthlyQueryEngine {
	return &MonthlyQueryEngine{
		custodyRepo:  custodyRepo,
		templateRepo: templateRepo,
		cache:        cache,
		generator:    generator,
		now:          time.Now,
	}
}

func (q *MonthlyQueryEngine) GetMonth(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.CustodyRecord, error) {
	key := domain.MonthKey{FamilyID: familyID, Year: year, Month: month}
	cacheKey := key.CacheKeyCustody()

	var cached []domain.CustodyRecord
	if hit, err := q.cache.Get(ctx, cacheKey, &cached); err != nil {
		logger.Warn("[MonthlyQueryEngine.GetMonth] cache read failed family=%s key=%s: %v", familyID, cacheKey, err)
	} else if hit && len(cached) > 0 {
		return cached, nil
	}

	records, err := q.custodyRepo.GetByMonth(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get month: %w", err)
	}

	if len(records) == 0 && key.IsFuture(q.now()) {
		records, err = q.autoGenerate(ctx, familyID, key)
		if err != nil {
			logger.Warn("[MonthlyQueryEngine.GetMonth] lazy generation failed family=%s %04d-%02d: %v", familyID, year, month, err)
		}
	}

	ttl := q.custodyTTL(key)
	if err := q.cache.Set(ctx, cacheKey, records, ttl); err != nil {
		logger.Warn("[MonthlyQueryEngine.GetMonth] cache write failed family=%s key=%s: %v", familyID, cacheKey, err)
	}

	return records, nil
}

func (q *MonthlyQueryEngine) GetMonthHandoffsOnly(ctx context.Context, familyID uuid.UUID, year, month int) ([]domain.HandoffOnly, error) {
	key := domain.MonthKey{FamilyID: familyID, Year: year, Month: month}
	cacheKey := key.CacheKeyHandoffOnly()

	var cached []domain.HandoffOnly
	if hit, err := q.cache.Get(ctx, cacheKey, &cached); err != nil {
		logger.Warn("[MonthlyQueryEngine.GetMonthHandoffsOnly] cache read failed family=%s key=%s: %v", familyID, cacheKey, err)
	} else if hit {
		return cached, nil
	}

	records, err := q.custodyRepo.GetByMonth(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get month handoffs only: %w", err)
	}

	handoffs := make([]domain.HandoffOnly, 0, len(records))
	for _, r := range records {
		if !r.HandoffDay {
			continue
		}
		handoffs = append(handoffs, domain.HandoffOnly{
			Date:            r.Date,
			HandoffDay:      r.HandoffDay,
			HandoffTime:     r.HandoffTime,
			HandoffLocation: r.HandoffLocation,
		})
	}

	ttl := time.Duration(1) * time.Hour
	if err := q.cache.Set(ctx, cacheKey, handoffs, ttl); err != nil {
		logger.Warn("[MonthlyQueryEngine.GetMonthHandoffsOnly] cache write failed family=%s key=%s: %v", familyID, cacheKey, err)
	}

	return handoffs, nil
}

func (q *MonthlyQueryEngine) autoGenerate(ctx context.Context, familyID uuid.UUID, key domain.MonthKey) ([]domain.CustodyRecord, error) {
	template, err := q.templateRepo.GetActive(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("auto generate: get active template: %w", err)
	}
	if template == nil {
		return nil, nil
	}
	start, end := key.Range()
	return q.generator.Generate(ctx, familyID, template, start, end.AddDate(0, 0, -1))
}

func (q *MonthlyQueryEngine) custodyTTL(key domain.MonthKey) time.Duration {
	now := q.now()
	if key.IsPast(now) {
		return 4 * time.Hour
	}
	return 30 * time.Minute
}
