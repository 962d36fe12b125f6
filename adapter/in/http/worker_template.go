package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/in"
	"calndr/core/port/out"
	"calndr/pkg/apperr"
)

// TemplateHandler manages ScheduleTemplates and drives C3 generation
// via the apply endpoint.
type TemplateHandler struct {
	repo    out.ScheduleTemplateRepository
	service in.TemplateService
}

func NewTemplateHandler(repo out.ScheduleTemplateRepository, service in.TemplateService) *TemplateHandler {
	return &TemplateHandler{repo: repo, service: service}
}

func (h *TemplateHandler) Register(router fiber.Router) {
	router.Post("/schedule-templates", h.Create)
	router.Put("/schedule-templates/:id", h.Update)
	router.Post("/schedule-templates/apply", h.Apply)
}

type scheduleTemplateRequest struct {
	PatternType       string            `json:"pattern_type"`
	WeeklyPattern     map[string]string `json:"weekly_pattern,omitempty"`
	AlternatingAnchor *string           `json:"alternating_anchor,omitempty"`
	AnchorParent      string            `json:"anchor_parent,omitempty"`
}

func (r scheduleTemplateRequest) toTemplate(familyID uuid.UUID) (*domain.ScheduleTemplate, error) {
	t := &domain.ScheduleTemplate{
		FamilyID:     familyID,
		PatternType:  domain.SchedulePatternType(r.PatternType),
		Active:       true,
		AnchorParent: domain.WeekdaySlot(r.AnchorParent),
	}
	if len(r.WeeklyPattern) > 0 {
		t.WeeklyPattern = make(map[time.Weekday]domain.WeekdaySlot, len(r.WeeklyPattern))
		for k, v := range r.WeeklyPattern {
			found := false
			for wd := time.Sunday; wd <= time.Saturday; wd++ {
				if strings.EqualFold(k, wd.String()) {
					t.WeeklyPattern[wd] = domain.WeekdaySlot(v)
					found = true
					break
				}
			}
			if !found {
				return nil, apperr.InvalidInput("weekly_pattern", "keys must be weekday names")
			}
		}
	}
	if r.AlternatingAnchor != nil {
		anchor, err := time.Parse("2006-01-02", *r.AlternatingAnchor)
		if err != nil {
			return nil, apperr.InvalidInput("alternating_anchor", "expected YYYY-MM-DD")
		}
		t.AlternatingAnchor = &anchor
	}
	return t, nil
}

func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	var req scheduleTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	t, err := req.toTemplate(familyID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if err := h.repo.DeactivateAll(c.Context(), familyID); err != nil {
		return AppErrorResponse(c, err)
	}
	if err := h.repo.Create(c.Context(), t); err != nil {
		return AppErrorResponse(c, err)
	}
	return c.Status(201).JSON(t)
}

func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid template id")
	}
	existing, err := h.repo.GetByID(c.Context(), id)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if existing == nil || existing.FamilyID != familyID {
		return AppErrorResponse(c, apperr.NotFound("schedule template"))
	}
	var req scheduleTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	t, err := req.toTemplate(familyID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	t.ID = id
	if err := h.repo.Update(c.Context(), t); err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponseSimple(c, t)
}

type applyTemplateRequest struct {
	TemplateID        string  `json:"template_id"`
	StartDate         *string `json:"start_date,omitempty"`
	EndDate           *string `json:"end_date,omitempty"`
	OverwriteExisting bool    `json:"overwrite_existing"`
}

func (h *TemplateHandler) Apply(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	var req applyTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		return ErrorResponse(c, 400, "invalid template_id")
	}
	template, err := h.repo.GetByID(c.Context(), templateID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if template == nil || template.FamilyID != familyID {
		return AppErrorResponse(c, apperr.NotFound("schedule template"))
	}

	from := time.Now().UTC().AddDate(0, 0, 1)
	if req.StartDate != nil {
		from, err = time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return ErrorResponse(c, 400, "invalid start_date")
		}
	}
	to := from.AddDate(1, 0, 0)
	if req.EndDate != nil {
		to, err = time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return ErrorResponse(c, 400, "invalid end_date")
		}
	}

	records, err := h.service.Generate(c.Context(), familyID, template, from, to)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{
		"success":               true,
		"message":               "schedule applied",
		"days_applied":          len(records),
		"conflicts_overwritten": 0,
	})
}
