package http

import (
	"github.com/gofiber/fiber/v2"

	"calndr/core/port/in"
)

// IntegrityHandler is C8's maintenance surface.
type IntegrityHandler struct {
	service in.IntegrityService
}

func NewIntegrityHandler(service in.IntegrityService) *IntegrityHandler {
	return &IntegrityHandler{service: service}
}

func (h *IntegrityHandler) Register(router fiber.Router) {
	router.Get("/custody-maintenance/integrity-check", h.Check)
	router.Post("/custody-maintenance/fix-mismatches", h.Fix)
}

func (h *IntegrityHandler) Check(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	mismatched, err := h.service.Audit(c.Context(), familyID, true)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{
		"mismatched_records": mismatched,
		"total_mismatched":   len(mismatched),
	})
}

func (h *IntegrityHandler) Fix(c *fiber.Ctx) error {
	familyID, err := GetFamilyID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	dryRun := c.QueryBool("dry_run", false)
	results, err := h.service.Audit(c.Context(), familyID, dryRun)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if dryRun {
		return SuccessResponse(c, fiber.Map{"preview": results, "count": len(results)})
	}
	return SuccessResponse(c, fiber.Map{"fixed": len(results)})
}
