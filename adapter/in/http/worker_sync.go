package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/in"
	"calndr/core/port/out"
	"calndr/pkg/apperr"
)

// CalendarDiscoverer mirrors sync.Pipeline's discovery step, used here
// standalone so the discover-calendar endpoint can report a URL
// without also parsing and persisting events.
type CalendarDiscoverer interface {
	Discover(ctx context.Context, baseURL string) (string, error)
}

// SyncHandler exposes C6's on-demand discovery/parse endpoints. kind
// is taken from the URL path segment (school|daycare) per the spec's
// {providers-kind} placeholder.
type SyncHandler struct {
	service      in.SyncService
	discoverer   CalendarDiscoverer
	providerRepo out.ProviderRepository
}

func NewSyncHandler(service in.SyncService, discoverer CalendarDiscoverer, providerRepo out.ProviderRepository) *SyncHandler {
	return &SyncHandler{service: service, discoverer: discoverer, providerRepo: providerRepo}
}

func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("/:kind/:id/parse-events", h.ParseEvents)
	router.Get("/:kind/:id/discover-calendar", h.DiscoverCalendar)
}

func parseProviderKind(c *fiber.Ctx) (domain.ProviderKind, error) {
	switch c.Params("kind") {
	case string(domain.ProviderSchool):
		return domain.ProviderSchool, nil
	case string(domain.ProviderDaycare):
		return domain.ProviderDaycare, nil
	default:
		return "", fiber.NewError(fiber.StatusBadRequest, "unknown provider kind")
	}
}

func (h *SyncHandler) providerURL(c *fiber.Ctx, kind domain.ProviderKind, providerID uuid.UUID) (string, error) {
	switch kind {
	case domain.ProviderSchool:
		p, err := h.providerRepo.GetSchoolProvider(c.Context(), providerID)
		if err != nil || p == nil {
			return "", fiber.NewError(fiber.StatusNotFound, "school provider not found")
		}
		return p.URL, nil
	default:
		p, err := h.providerRepo.GetDaycareProvider(c.Context(), providerID)
		if err != nil || p == nil {
			return "", fiber.NewError(fiber.StatusNotFound, "daycare provider not found")
		}
		return p.URL, nil
	}
}

type parseEventsRequest struct {
	CalendarURL string `json:"calendar_url"`
}

func (h *SyncHandler) ParseEvents(c *fiber.Ctx) error {
	kind, err := parseProviderKind(c)
	if err != nil {
		return ErrorResponse(c, 400, err.Error())
	}
	providerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid provider id")
	}
	var req parseEventsRequest
	if err := c.BodyParser(&req); err != nil || req.CalendarURL == "" {
		return ErrorResponse(c, 400, "calendar_url is required")
	}

	if err := h.service.SyncProvider(c.Context(), kind, providerID, req.CalendarURL); err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{"success": true})
}

func (h *SyncHandler) DiscoverCalendar(c *fiber.Ctx) error {
	kind, err := parseProviderKind(c)
	if err != nil {
		return ErrorResponse(c, 400, err.Error())
	}
	providerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid provider id")
	}
	baseURL, err := h.providerURL(c, kind, providerID)
	if err != nil {
		return err
	}

	calendarURL, err := h.discoverer.Discover(c.Context(), baseURL)
	if err != nil {
		return AppErrorResponse(c, apperr.ProviderSyncFailed(string(kind), err))
	}
	if calendarURL == "" {
		return ErrorResponse(c, fiber.StatusNotFound, "no calendar page discovered")
	}
	return SuccessResponse(c, fiber.Map{"success": true, "discovered_calendar_url": calendarURL})
}
