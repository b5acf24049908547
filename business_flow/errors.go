// Package businessflow contains the core business logic and use cases for campaign dispatching
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lookup errors
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrTargetNotFound   = errors.New("target not found")

	// Action trigger errors
	ErrInvalidAction      = errors.New("invalid action")
	ErrCampaignIDRequired = errors.New("campaign_id is required")
	ErrInvalidCampaignID  = errors.New("campaign_id is not a valid identifier")
	ErrOwnerRequired      = errors.New("user_id is required")
	ErrInvalidOwnerID     = errors.New("user_id is not a valid identifier")

	// Validation errors
	ErrCampaignNameRequired   = errors.New("campaign name is required")
	ErrInvalidWorkingHours    = errors.New("working hours must be between 0 and 24")
	ErrInvalidTimezone        = errors.New("unknown timezone")
	ErrInvalidMessagesPerDay  = errors.New("messages per day cannot be negative")
	ErrNoUsernames            = errors.New("at least one username is required")
	ErrInvalidTargetStatus    = errors.New("invalid target status")
	ErrSequenceMessageMissing = errors.New("sequence message is required")
	ErrInvalidWebhookURL      = errors.New("webhook url must be an absolute http or https url")
	ErrInvalidMessageStatus   = errors.New("invalid message status")
	ErrInvalidPage            = errors.New("page must be at least 1")
	ErrInvalidPageSize        = errors.New("page size must be between 1 and 100")

	// Infrastructure errors
	ErrQueueWrite = errors.New("failed to write message queue")
	ErrDelivery   = errors.New("webhook delivery failed")
	ErrStore      = errors.New("store operation failed")
)

// Error codes carried by BusinessError
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidAction   = "INVALID_ACTION"
	CodeValidation      = "VALIDATION_ERROR"
	CodeQueueWriteError = "QUEUE_WRITE_ERROR"
	CodeDeliveryError   = "DELIVERY_ERROR"
	CodeStoreError      = "STORE_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// storeError wraps a repository failure so it is classified as a store error
func storeError(message string, err error) *BusinessError {
	return NewBusinessError(CodeStoreError, message, fmt.Errorf("%w: %w", ErrStore, err))
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsTargetNotFound(err error) bool {
	return errors.Is(err, ErrTargetNotFound)
}

// IsNotFound reports any missing-entity error
func IsNotFound(err error) bool {
	return IsCampaignNotFound(err) || IsTargetNotFound(err)
}

// IsInvalidAction reports a malformed action trigger
func IsInvalidAction(err error) bool {
	return errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrCampaignIDRequired) ||
		errors.Is(err, ErrInvalidCampaignID) ||
		errors.Is(err, ErrOwnerRequired) ||
		errors.Is(err, ErrInvalidOwnerID)
}

// IsValidationError reports a request that failed a business rule
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrCampaignNameRequired,
		ErrInvalidWorkingHours,
		ErrInvalidTimezone,
		ErrInvalidMessagesPerDay,
		ErrNoUsernames,
		ErrInvalidTargetStatus,
		ErrSequenceMessageMissing,
		ErrInvalidWebhookURL,
		ErrInvalidMessageStatus,
		ErrInvalidPage,
		ErrInvalidPageSize,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsQueueWriteError(err error) bool {
	return errors.Is(err, ErrQueueWrite)
}

func IsDeliveryError(err error) bool {
	return errors.Is(err, ErrDelivery)
}

func IsStoreError(err error) bool {
	return errors.Is(err, ErrStore)
}

// ErrorCode returns the BusinessError code of err or a code derived from its sentinel
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsInvalidAction(err):
		return CodeInvalidAction
	case IsValidationError(err):
		return CodeValidation
	case IsQueueWriteError(err):
		return CodeQueueWriteError
	case IsDeliveryError(err):
		return CodeDeliveryError
	default:
		return CodeStoreError
	}
}
