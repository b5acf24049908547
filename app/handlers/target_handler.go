package handlers

import (
	"github.com/amirphl/campaign-dispatcher/app/dto"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// TargetHandlerInterface defines the contract for target handlers
type TargetHandlerInterface interface {
	ImportTargets(c fiber.Ctx) error
	UpdateTargetStatus(c fiber.Ctx) error
}

// TargetHandler handles target import and manual status updates
type TargetHandler struct {
	baseHandler
	targetFlow businessflow.TargetFlow
}

// NewTargetHandler creates a new target handler
func NewTargetHandler(targetFlow businessflow.TargetFlow, logger zerolog.Logger) *TargetHandler {
	return &TargetHandler{
		baseHandler: newBaseHandler(logger, "target_handler"),
		targetFlow:  targetFlow,
	}
}

// ImportTargets bulk-adds usernames to a campaign
// @Router /api/v1/campaigns/{uuid}/targets [post]
func (h *TargetHandler) ImportTargets(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	var req dto.ImportTargetsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}
	req.OwnerID = ownerID
	req.CampaignUUID = c.Params("uuid")

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+req.CampaignUUID+"/targets")
	defer cancel()

	result, err := h.targetFlow.ImportTargets(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Target import failed")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// UpdateTargetStatus records a manual outcome on a target
// @Router /api/v1/targets/{uuid}/status [patch]
func (h *TargetHandler) UpdateTargetStatus(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	var req dto.UpdateTargetStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}
	req.OwnerID = ownerID
	req.TargetUUID = c.Params("uuid")

	ctx, cancel := h.createRequestContext(c, "/api/v1/targets/"+req.TargetUUID+"/status")
	defer cancel()

	result, err := h.targetFlow.UpdateTargetStatus(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Target update failed")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Target updated successfully", result)
}
