package handlers

import (
	"strconv"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// AuditHandler exposes the caller's action history
type AuditHandler struct {
	baseHandler
	auditFlow businessflow.AuditFlow
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditFlow businessflow.AuditFlow, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		baseHandler: newBaseHandler(logger, "audit_handler"),
		auditFlow:   auditFlow,
	}
}

// ListAuditLogs returns a page of recorded actions, newest first
// @Router /api/v1/audit [get]
func (h *AuditHandler) ListAuditLogs(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	failedOnly, _ := strconv.ParseBool(c.Query("failed_only", "false"))
	req := dto.ListAuditLogsRequest{
		OwnerID:    ownerID,
		FailedOnly: failedOnly,
		Page:       page,
		PageSize:   pageSize,
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/audit")
	defer cancel()

	result, err := h.auditFlow.ListAuditLogs(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list audit logs")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Audit logs retrieved successfully", result)
}
