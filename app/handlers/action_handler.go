package handlers

import (
	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/app/middleware"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// ActionHandlerInterface defines the contract for the action trigger
type ActionHandlerInterface interface {
	Trigger(c fiber.Ctx) error
	ProcessQueue(c fiber.Ctx) error
}

// ActionHandler exposes the action trigger endpoint
type ActionHandler struct {
	baseHandler
	actionFlow businessflow.ActionFlow
}

// NewActionHandler creates a new action handler
func NewActionHandler(actionFlow businessflow.ActionFlow, logger zerolog.Logger) *ActionHandler {
	return &ActionHandler{
		baseHandler: newBaseHandler(logger, "action_handler"),
		actionFlow:  actionFlow,
	}
}

// Trigger runs one action: start_campaign, pause_campaign, process_queue or get_stats.
// The owner comes from the authenticated context when present, else from user_id.
// @Router /api/v1/actions [post]
func (h *ActionHandler) Trigger(c fiber.Ctx) error {
	var req dto.ActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if ownerID, ok := middleware.GetOwnerIDFromContext(c); ok {
		req.OwnerID = ownerID
	}

	if req.Action == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid action request", businessflow.CodeInvalidAction, "action is required")
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/actions")
	defer cancel()

	result, err := h.actionFlow.Execute(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Action failed")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ProcessQueue advances the caller's queue by one message
// @Router /api/v1/queue/process [post]
func (h *ActionHandler) ProcessQueue(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/queue/process")
	defer cancel()

	req := &dto.ActionRequest{Action: string(businessflow.ActionProcessQueue), OwnerID: ownerID}
	result, err := h.actionFlow.Execute(ctx, req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Queue processing failed")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result.Process)
}
