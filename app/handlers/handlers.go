// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/app/middleware"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries what every handler needs to answer a request
type baseHandler struct {
	validator *validator.Validate
	logger    zerolog.Logger
}

func newBaseHandler(logger zerolog.Logger, component string) baseHandler {
	return baseHandler{
		validator: validator.New(),
		logger:    logger.With().Str("component", component).Logger(),
	}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and renders the failure response; ok is false when a response was written
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", businessflow.CodeValidation, err.Error())
		}
		validationErrors := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", businessflow.CodeValidation, validationErrors)
	}
	return true, nil
}

// owner returns the authenticated owner or writes a 401
func (h *baseHandler) owner(c fiber.Ctx) (uuid.UUID, bool, error) {
	ownerID, ok := middleware.GetOwnerIDFromContext(c)
	if !ok {
		return uuid.Nil, false, h.ErrorResponse(c, fiber.StatusUnauthorized, "Owner could not be resolved", "MISSING_OWNER_ID", nil)
	}
	return ownerID, true, nil
}

// BusinessErrorResponse maps the error taxonomy onto HTTP statuses:
// not found is 404, invalid actions and rule violations are 400, everything else is 500.
func (h *baseHandler) BusinessErrorResponse(c fiber.Ctx, err error, fallback string) error {
	status := StatusForError(err)
	code := businessflow.ErrorCode(err)

	message := fallback
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Message != "" {
		message = be.Message
	}

	if status == fiber.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.Path()).Str("code", code).Msg(fallback)
		return h.ErrorResponse(c, status, message, code, nil)
	}
	details := err.Error()
	if inner := errors.Unwrap(err); inner != nil {
		details = inner.Error()
	}
	return h.ErrorResponse(c, status, message, code, details)
}

// StatusForError returns the HTTP status of a business error
func StatusForError(err error) int {
	switch {
	case businessflow.IsNotFound(err):
		return fiber.StatusNotFound
	case businessflow.IsInvalidAction(err), businessflow.IsValidationError(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// metadata collects the client details recorded in the audit log
func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID, ok := c.Locals("request_id").(string); ok {
		metadata.SetRequestID(requestID)
	}
	return metadata
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)

	return ctx, cancel
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "url":
		return err.Field() + " must be a valid url"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
