package utils

import (
	"time"
)

// contextKey is the type for request-scoped context values
type contextKey string

// Request-scoped context keys
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Queue constants
const (
	// QueueBatchSize is the number of rows written per INSERT when expanding a campaign
	QueueBatchSize = 100

	// MaxClaimAttempts bounds how many lost or failed claims one ProcessOne call tolerates
	MaxClaimAttempts = 3

	// MaxDeferralsPerCall bounds how many out-of-window messages one ProcessOne call reschedules
	MaxDeferralsPerCall = 25

	// DefaultWebhookTimeout applies when no timeout is configured
	DefaultWebhookTimeout = 15 * time.Second

	// MaxWebhookTimeout caps the outbound call so one poll tick cannot stall
	MaxWebhookTimeout = 60 * time.Second

	// StaleClaimMargin is added to the webhook timeout before a processing claim counts as abandoned
	StaleClaimMargin = time.Minute

	// WebhookSecretHeader carries the owner's shared secret
	WebhookSecretHeader = "X-Webhook-Secret"

	// WebhookSignatureHeader carries the optional HMAC-SHA256 body signature
	WebhookSignatureHeader = "X-Webhook-Signature"

	// DefaultRunnerInterval is the background runner period when none is configured
	DefaultRunnerInterval = 5 * time.Second
)
