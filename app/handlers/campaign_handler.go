package handlers

import (
	"strconv"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	StartCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	GetStats(c fiber.Ctx) error
	AddSequence(c fiber.Ctx) error
	ListSequences(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	baseHandler
	campaignFlow businessflow.CampaignFlow
	actionFlow   businessflow.ActionFlow
}

// NewCampaignHandler creates a new campaign handler.
// Lifecycle endpoints go through the action flow so they are audited like trigger calls.
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, actionFlow businessflow.ActionFlow, logger zerolog.Logger) *CampaignHandler {
	return &CampaignHandler{
		baseHandler:  newBaseHandler(logger, "campaign_handler"),
		campaignFlow: campaignFlow,
		actionFlow:   actionFlow,
	}
}

// CreateCampaign handles the campaign creation process
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}
	req.OwnerID = ownerID

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.CreateCampaign(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Campaign creation failed")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// ListCampaigns returns the caller's campaigns newest first
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.ListCampaigns(ctx, &dto.ListCampaignsRequest{OwnerID: ownerID, Page: page, PageSize: pageSize})
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list campaigns")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign returns one campaign
// @Router /api/v1/campaigns/{uuid} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("uuid"))
	defer cancel()

	result, err := h.campaignFlow.GetCampaign(ctx, ownerID, c.Params("uuid"))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to get campaign")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// StartCampaign expands the campaign into the message queue
// @Router /api/v1/campaigns/{uuid}/start [post]
func (h *CampaignHandler) StartCampaign(c fiber.Ctx) error {
	return h.runAction(c, businessflow.ActionStartCampaign, "/start", func(r *dto.ActionResponse) any {
		return dto.StartCampaignResponse{Message: r.Message, Queued: derefInt(r.Queued)}
	})
}

// PauseCampaign cancels the campaign's pending messages
// @Router /api/v1/campaigns/{uuid}/pause [post]
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	return h.runAction(c, businessflow.ActionPauseCampaign, "/pause", func(r *dto.ActionResponse) any {
		var cancelled int64
		if r.Cancelled != nil {
			cancelled = *r.Cancelled
		}
		return dto.PauseCampaignResponse{Message: r.Message, Cancelled: cancelled}
	})
}

// GetStats returns message counts per status
// @Router /api/v1/campaigns/{uuid}/stats [get]
func (h *CampaignHandler) GetStats(c fiber.Ctx) error {
	return h.runAction(c, businessflow.ActionGetStats, "/stats", func(r *dto.ActionResponse) any {
		return r.Stats
	})
}

func (h *CampaignHandler) runAction(c fiber.Ctx, kind businessflow.ActionKind, suffix string, render func(*dto.ActionResponse) any) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	// a path id that is not a uuid cannot name any campaign
	campaignID := c.Params("uuid")
	if _, err := businessflow.ParseCampaignID(campaignID); err != nil {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", businessflow.CodeNotFound, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+campaignID+suffix)
	defer cancel()

	req := &dto.ActionRequest{Action: string(kind), CampaignID: &campaignID, OwnerID: ownerID}
	result, err := h.actionFlow.Execute(ctx, req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Campaign action failed")
	}

	message := result.Message
	if message == "" {
		message = "Campaign stats retrieved successfully"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, render(result))
}

// AddSequence appends a message template to the campaign
// @Router /api/v1/campaigns/{uuid}/sequences [post]
func (h *CampaignHandler) AddSequence(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	var req dto.CreateSequenceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("uuid")+"/sequences")
	defer cancel()

	result, err := h.campaignFlow.AddSequence(ctx, ownerID, c.Params("uuid"), &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to add sequence")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Sequence added successfully", result)
}

// ListSequences returns the campaign's templates in send order
// @Router /api/v1/campaigns/{uuid}/sequences [get]
func (h *CampaignHandler) ListSequences(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("uuid")+"/sequences")
	defer cancel()

	result, err := h.campaignFlow.ListSequences(ctx, ownerID, c.Params("uuid"))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list sequences")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Sequences retrieved successfully", result)
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
