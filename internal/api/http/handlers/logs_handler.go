package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-access-service/internal/api/dto"
	"github.com/spec-kit/gate-access-service/internal/service"
)

// LogsHandler exposes the audit reporting surface (admin only).
type LogsHandler struct {
	logs *service.LogService
}

// NewLogsHandler constructs handler.
func NewLogsHandler(logService *service.LogService) *LogsHandler {
	return &LogsHandler{logs: logService}
}

// List handles GET /logs?subject_id=&limit=.
func (h *LogsHandler) List(c *fiber.Ctx) error {
	var subjectID *int64
	if raw := c.Query("subject_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid subject_id")
		}
		subjectID = &parsed
	}
	limit := c.QueryInt("limit")

	records, err := h.logs.List(c.UserContext(), subjectID, limit)
	if err != nil {
		return err
	}

	entries := dto.FromAuditRecords(records)
	return c.JSON(fiber.Map{"data": entries, "count": len(entries)})
}

// Stats handles GET /logs/stats?days=.
func (h *LogsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.logs.Stats(c.UserContext(), c.QueryInt("days"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAuditStats(stats)})
}
