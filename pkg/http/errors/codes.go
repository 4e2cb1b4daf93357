package errors

// Error codes for standardized error responses
const (
	// Credential errors
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeInvalidReference = "invalid_reference"
	ErrCodeMalformedPayload = "malformed_payload"
	ErrCodeInvalidInput     = "invalid_input"

	// Resource errors
	ErrCodeNotFound         = "not_found"
	ErrCodeChallengeMissing = "challenge_not_found"
	ErrCodeJobNotFound      = "job_not_found"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeStorageError       = "storage_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
