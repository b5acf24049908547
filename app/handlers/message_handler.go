package handlers

import (
	"strconv"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MessageHandler exposes a campaign's queue
type MessageHandler struct {
	baseHandler
	messageFlow businessflow.MessageFlow
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageFlow businessflow.MessageFlow, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		baseHandler: newBaseHandler(logger, "message_handler"),
		messageFlow: messageFlow,
	}
}

// ListMessages returns a page of queue rows, newest schedule first
// @Router /api/v1/campaigns/{uuid}/messages [get]
func (h *MessageHandler) ListMessages(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	req := dto.ListMessagesRequest{
		OwnerID:      ownerID,
		CampaignUUID: c.Params("uuid"),
		Page:         page,
		PageSize:     pageSize,
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+req.CampaignUUID+"/messages")
	defer cancel()

	result, err := h.messageFlow.ListMessages(ctx, &req)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list messages")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved successfully", result)
}

// ExportMessages downloads the whole queue as an xlsx workbook
// @Router /api/v1/campaigns/{uuid}/messages/export [get]
func (h *MessageHandler) ExportMessages(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/"+c.Params("uuid")+"/messages/export")
	defer cancel()

	result, err := h.messageFlow.ExportMessages(ctx, ownerID, c.Params("uuid"))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to export messages")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=\""+result.Filename+"\"")
	return c.Status(fiber.StatusOK).Send(result.Content)
}
