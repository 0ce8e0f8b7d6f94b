package models

// APIError is the standardized error response format for the admin API.
type APIError struct {
	Code    string      `json:"code"`              // Application-specific error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Message string      `json:"message"`           // Human-readable message describing the error
	Details interface{} `json:"details,omitempty"` // Optional field for additional error details
}

// Predefined application-specific error codes.
const (
	ErrorCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrorCodeValidation          = "VALIDATION_ERROR"
	ErrorCodeInvalidJSON         = "INVALID_JSON"
	ErrorCodeNotFound            = "NOT_FOUND"
	ErrorCodeSourceNotFound      = "SOURCE_NOT_FOUND"
	ErrorCodeRecordNotFound      = "RECORD_NOT_FOUND"
	ErrorCodeProjectNotFound     = "PROJECT_NOT_FOUND"
	ErrorCodeDuplicateID         = "DUPLICATE_ID"
	ErrorCodeCollectFailed       = "COLLECT_FAILED"
)
