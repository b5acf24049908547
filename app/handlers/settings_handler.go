package handlers

import (
	"github.com/amirphl/campaign-dispatcher/app/dto"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// SettingsHandler reads and writes the caller's delivery settings
type SettingsHandler struct {
	baseHandler
	settingsFlow businessflow.SettingsFlow
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsFlow businessflow.SettingsFlow, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		baseHandler:  newBaseHandler(logger, "settings_handler"),
		settingsFlow: settingsFlow,
	}
}

// GetSettings returns the stored settings or the defaults
// @Router /api/v1/settings [get]
func (h *SettingsHandler) GetSettings(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/settings")
	defer cancel()

	result, err := h.settingsFlow.GetSettings(ctx, ownerID)
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to load settings")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings retrieved successfully", result)
}

// UpdateSettings merges the provided fields into the stored settings
// @Router /api/v1/settings [put]
func (h *SettingsHandler) UpdateSettings(c fiber.Ctx) error {
	ownerID, ok, err := h.owner(c)
	if !ok {
		return err
	}

	var req dto.UpdateDeliverySettingsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}
	req.OwnerID = ownerID

	ctx, cancel := h.createRequestContext(c, "/api/v1/settings")
	defer cancel()

	result, err := h.settingsFlow.UpdateSettings(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to update settings")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings updated successfully", result)
}
