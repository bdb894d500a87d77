package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getevo/evo/v2/lib/outcome"
	"github.com/getevo/evo/v2/lib/text"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Authentication & Authorization errors
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeInvalidToken ErrorCode = "invalid_token"

	// Input validation errors
	ErrorCodeInvalidInput  ErrorCode = "invalid_input"
	ErrorCodeInvalidScreen ErrorCode = "invalid_screen"
	ErrorCodeUnknownField  ErrorCode = "unknown_field"
	ErrorCodeFieldDisabled ErrorCode = "field_disabled"

	// Resource errors
	ErrorCodeNotFound        ErrorCode = "not_found"
	ErrorCodeSessionNotFound ErrorCode = "session_not_found"
	ErrorCodePreviewNotFound ErrorCode = "preview_not_found"

	// Check-in flow errors
	ErrorCodeFormIncomplete   ErrorCode = "form_incomplete"
	ErrorCodeUploadRejected   ErrorCode = "upload_rejected"
	ErrorCodeSchemaError      ErrorCode = "schema_error"
	ErrorCodeSubmissionFailed ErrorCode = "submission_failed"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"

	// Internal errors
	ErrorCodeInternalError ErrorCode = "internal_error"
	ErrorCodeDatabaseError ErrorCode = "database_error"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode `json:"error"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    string    `json:"details,omitempty"`
	Fields     []string  `json:"fields,omitempty"`
}

// Error implements the error interface
func (e AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Response returns an outcome.Response for the error
func (e AppError) Response() outcome.Response {
	body := map[string]interface{}{
		"error":   string(e.Code),
		"message": e.Message,
	}
	if e.Details != "" {
		body["details"] = e.Details
	}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  e.StatusCode,
		Data:        text.ToJSON(body),
	}
}

// WithFields returns a copy of the error naming the offending fields
func (e AppError) WithFields(fields ...string) AppError {
	e.Fields = append([]string(nil), fields...)
	return e
}

// WithDetails returns a copy of the error carrying details
func (e AppError) WithDetails(details string) AppError {
	e.Details = details
	return e
}

// NewError creates a new AppError
func NewError(code ErrorCode, message string, statusCode int) AppError {
	return AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewErrorWithDetails creates a new AppError with additional details
func NewErrorWithDetails(code ErrorCode, message string, statusCode int, details string) AppError {
	return AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Predefined common errors
var (
	ErrUnauthorized = AppError{
		Code:       ErrorCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = AppError{
		Code:       ErrorCodeForbidden,
		Message:    "This check-in session belongs to another guest",
		StatusCode: http.StatusForbidden,
	}

	ErrInvalidToken = AppError{
		Code:       ErrorCodeInvalidToken,
		Message:    "Invalid or expired token",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidInput = AppError{
		Code:       ErrorCodeInvalidInput,
		Message:    "Invalid request data",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidScreen = AppError{
		Code:       ErrorCodeInvalidScreen,
		Message:    "Screen must be either document or detail",
		StatusCode: http.StatusBadRequest,
	}

	ErrUnknownField = AppError{
		Code:       ErrorCodeUnknownField,
		Message:    "Field is not part of this form",
		StatusCode: http.StatusNotFound,
	}

	ErrFieldDisabled = AppError{
		Code:       ErrorCodeFieldDisabled,
		Message:    "Field is disabled",
		StatusCode: http.StatusConflict,
	}

	ErrSessionNotFound = AppError{
		Code:       ErrorCodeSessionNotFound,
		Message:    "Check-in session not found or expired",
		StatusCode: http.StatusNotFound,
	}

	ErrPreviewNotFound = AppError{
		Code:       ErrorCodePreviewNotFound,
		Message:    "Preview not found or expired",
		StatusCode: http.StatusNotFound,
	}

	ErrFormIncomplete = AppError{
		Code:       ErrorCodeFormIncomplete,
		Message:    "Please complete all required fields",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrUploadRejected = AppError{
		Code:       ErrorCodeUploadRejected,
		Message:    "File was rejected",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrSchemaUnavailable = AppError{
		Code:       ErrorCodeSchemaError,
		Message:    "Check-in form is not available",
		StatusCode: http.StatusBadGateway,
	}

	ErrSubmissionFailed = AppError{
		Code:       ErrorCodeSubmissionFailed,
		Message:    "Check-in could not be submitted, please try again",
		StatusCode: http.StatusBadGateway,
	}

	ErrRateLimited = AppError{
		Code:       ErrorCodeRateLimited,
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalError = AppError{
		Code:       ErrorCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrDatabaseError = AppError{
		Code:       ErrorCodeDatabaseError,
		Message:    "Database operation failed",
		StatusCode: http.StatusInternalServerError,
	}
)

// Error creates an outcome.Response from an AppError
func Error(err AppError) outcome.Response {
	return err.Response()
}

// APIResponse represents a standardized API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (r APIResponse) ToJSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Meta contains metadata for API responses
type Meta struct {
	// Pagination
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`

	// List/Collection metadata
	Count int `json:"count,omitempty"`

	// Custom metadata
	Extra map[string]interface{} `json:"extra,omitempty"`
}

func build(status int, r APIResponse) outcome.Response {
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  status,
		Data:        r.ToJSON(),
	}
}

// OK creates a standardized success response
func OK(data interface{}) outcome.Response {
	return build(http.StatusOK, APIResponse{Success: true, Data: data})
}

// OKWithMessage creates a success response with a message
func OKWithMessage(data interface{}, message string) outcome.Response {
	return build(http.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

// OKWithMeta creates a success response with metadata
func OKWithMeta(data interface{}, meta *Meta) outcome.Response {
	return build(http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

// Created creates a 201 Created response
func Created(data interface{}) outcome.Response {
	return build(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// Accepted creates a 202 Accepted response for work that continues in the background
func Accepted(data interface{}, message string) outcome.Response {
	return build(http.StatusAccepted, APIResponse{Success: true, Data: data, Message: message})
}

// Paginated creates a paginated response
func Paginated(data interface{}, page, limit int, total int64) outcome.Response {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return OKWithMeta(data, &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// List creates a response for lists/collections with count
func List(data interface{}, count int) outcome.Response {
	return OKWithMeta(data, &Meta{Count: count})
}

// Message creates a response with only a success message
func Message(message string) outcome.Response {
	return build(http.StatusOK, APIResponse{Success: true, Message: message})
}

// BadRequest creates a 400 Bad Request response
func BadRequest(message string) outcome.Response {
	return Error(NewError(ErrorCodeInvalidInput, message, http.StatusBadRequest))
}

// NotFound creates a 404 Not Found response
func NotFound(message string) outcome.Response {
	return Error(NewError(ErrorCodeNotFound, message, http.StatusNotFound))
}

// Unauthorized creates a 401 Unauthorized response
func Unauthorized(message string) outcome.Response {
	return Error(NewError(ErrorCodeUnauthorized, message, http.StatusUnauthorized))
}

// InternalError creates a 500 Internal Server Error response
func InternalError(message string) outcome.Response {
	return Error(NewError(ErrorCodeInternalError, message, http.StatusInternalServerError))
}
