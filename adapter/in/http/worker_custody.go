package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/in"
	"calndr/pkg/ratelimit"
)

// maxBulkCustodyRecords caps a single bulk-create request well above any
// legitimate school-year-sized batch while still bounding the worst case.
const maxBulkCustodyRecords = 400

// CustodyHandler exposes C4's single-day and bulk mutation endpoints.
// The acting family is taken from the authenticated caller's context,
// never from a URL or body field, so a caller can never mutate another
// family's schedule.
type CustodyHandler struct {
	service in.CustodyService
	guard   *ratelimit.MemoryGuard
}

func NewCustodyHandler(service in.CustodyService) *CustodyHandler {
	return &CustodyHandler{service: service, guard: ratelimit.NewMemoryGuard(maxBulkCustodyRecords)}
}

func (h *CustodyHandler) Register(router fiber.Router) {
	router.Post("/custody", h.CreateDay)
	router.Post("/custody/bulk", h.BulkCreate)
	router.Put("/custody/date/:date", h.UpdateDay)
}

type custodyDayRequest struct {
	Date            string  `json:"date"`
	CustodianUserID string  `json:"custodian_user_id"`
	HandoffDay      *bool   `json:"handoff_day,omitempty"`
	HandoffTime     *string `json:"handoff_time,omitempty"`
	HandoffLocation *string `json:"handoff_location,omitempty"`
}

func (h *CustodyHandler) CreateDay(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	var req custodyDayRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return ErrorResponse(c, 400, "invalid date, expected YYYY-MM-DD")
	}
	custodianID, err := uuid.Parse(req.CustodianUserID)
	if err != nil {
		return ErrorResponse(c, 400, "invalid custodian_user_id")
	}

	rec, err := h.service.CreateDay(c.Context(), familyID, date, custodianID, req.HandoffDay, req.HandoffTime, req.HandoffLocation)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return c.Status(201).JSON(rec)
}

func (h *CustodyHandler) UpdateDay(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	date, err := time.Parse("2006-01-02", c.Params("date"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid date, expected YYYY-MM-DD")
	}
	var req custodyDayRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	custodianID, err := uuid.Parse(req.CustodianUserID)
	if err != nil {
		return ErrorResponse(c, 400, "invalid custodian_user_id")
	}

	rec, err := h.service.UpdateDay(c.Context(), familyID, date, custodianID, req.HandoffDay, req.HandoffTime, req.HandoffLocation)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, rec)
}

func (h *CustodyHandler) BulkCreate(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	var req []custodyDayRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if limited := h.guard.LimitSliceLen(len(req)); limited < len(req) {
		req = req[:limited]
	}

	records := make([]domain.CustodyRecord, 0, len(req))
	for _, r := range req {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return ErrorResponse(c, 400, "invalid date in batch: "+r.Date)
		}
		custodianID, err := uuid.Parse(r.CustodianUserID)
		if err != nil {
			return ErrorResponse(c, 400, "invalid custodian_user_id in batch")
		}
		// HandoffDay is recomputed deterministically by BulkCreate from
		// adjacency, so any caller-supplied value here is advisory only.
		records = append(records, domain.CustodyRecord{
			FamilyID:        familyID,
			Date:            date,
			CustodianUserID: custodianID,
			HandoffTime:     r.HandoffTime,
			HandoffLocation: r.HandoffLocation,
		})
	}

	created, err := h.service.BulkCreate(c.Context(), familyID, records)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return c.Status(201).JSON(fiber.Map{
		"status":          "ok",
		"records_created": len(created),
		"records":         created,
	})
}
