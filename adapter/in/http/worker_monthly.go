package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"calndr/core/port/in"
)

// MonthlyHandler serves the cache-through monthly custody and
// handoff-only views, plus the aggregated event view.
type MonthlyHandler struct {
	monthly in.MonthlyQueryService
	events  in.EventAggregationService
}

func NewMonthlyHandler(monthly in.MonthlyQueryService, events in.EventAggregationService) *MonthlyHandler {
	return &MonthlyHandler{monthly: monthly, events: events}
}

func (h *MonthlyHandler) Register(router fiber.Router) {
	router.Get("/custody/:year/:month", h.GetMonth)
	router.Get("/custody/handoff-only/:year/:month", h.GetMonthHandoffsOnly)
	router.Get("/events/:year/:month", h.GetEventsByMonth)
	router.Get("/events", h.GetEventsByRange)
}

func parseYearMonthParams(c *fiber.Ctx) (int, int, error) {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil {
		return 0, 0, err
	}
	month, err := strconv.Atoi(c.Params("month"))
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func (h *MonthlyHandler) GetMonth(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	year, month, err := parseYearMonthParams(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid year or month")
	}
	records, err := h.monthly.GetMonth(c.Context(), familyID, year, month)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponseSimple(c, records)
}

func (h *MonthlyHandler) GetMonthHandoffsOnly(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	year, month, err := parseYearMonthParams(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid year or month")
	}
	handoffs, err := h.monthly.GetMonthHandoffsOnly(c.Context(), familyID, year, month)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponseSimple(c, handoffs)
}

// GetEventsByRange accepts start_date/end_date query params and serves
// the aggregated view for the month start_date falls in. The
// aggregation engine itself is month-granular (§4.7); a range
// spanning multiple months would need multiple GetMonth calls, which
// is left to the caller.
func (h *MonthlyHandler) GetEventsByRange(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	startRaw := c.Query("start_date")
	endRaw := c.Query("end_date")
	if startRaw == "" || endRaw == "" {
		return ErrorResponse(c, 400, "start_date and end_date are required")
	}
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return ErrorResponse(c, 400, "invalid start_date format, expected YYYY-MM-DD")
	}
	if _, err := time.Parse("2006-01-02", endRaw); err != nil {
		return ErrorResponse(c, 400, "invalid end_date format, expected YYYY-MM-DD")
	}
	events, err := h.events.GetMonth(c.Context(), familyID, start.Year(), int(start.Month()))
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponseSimple(c, events)
}

func (h *MonthlyHandler) GetEventsByMonth(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	year, month, err := parseYearMonthParams(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid year or month")
	}
	events, err := h.events.GetMonth(c.Context(), familyID, year, month)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponseSimple(c, events)
}
