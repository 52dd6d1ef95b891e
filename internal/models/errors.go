package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in ErrorResponse.Code. Each maps to one HTTP status
// and one client-facing message family.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeNetwork      = "NETWORK_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// ErrorCode exposes the code to packages that label metrics without
// importing models.
func (e *AppError) ErrorCode() string { return e.Code }

func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s with ID %v not found", resource, id)}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewNetworkError is used when an upstream provider (payment gateway,
// identity provider) cannot be reached.
func NewNetworkError(message string, err error) *AppError {
	return &AppError{Code: CodeNetwork, Message: message, Err: err}
}

func NewTimeoutError(message string) *AppError {
	return &AppError{Code: CodeTimeout, Message: message}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

var statusByCode = map[string]int{
	CodeNotFound:     fiber.StatusNotFound,
	CodeValidation:   fiber.StatusBadRequest,
	CodeUnauthorized: fiber.StatusUnauthorized,
	CodeForbidden:    fiber.StatusForbidden,
	CodeConflict:     fiber.StatusConflict,
	CodeNetwork:      fiber.StatusBadGateway,
	CodeTimeout:      fiber.StatusGatewayTimeout,
	CodeInternal:     fiber.StatusInternalServerError,
}

// CodeOf returns the code carried anywhere in err's chain, CodeInternal
// for errors that carry none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// StatusFor picks the HTTP status for err.
func StatusFor(err error) int {
	if status, ok := statusByCode[CodeOf(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// RespondWithError creates a standardized error response. Internal error
// details are never sent to the client.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		body := ErrorResponse{Error: err.Error(), Code: CodeInternal}
		if status >= fiber.StatusInternalServerError {
			body.Error = "Internal server error"
		}
		return c.Status(status).JSON(body)
	}

	body := ErrorResponse{Error: appErr.Message, Code: appErr.Code}
	if appErr.Err != nil && appErr.Code != CodeInternal {
		body.Details = appErr.Err.Error()
	}
	return c.Status(status).JSON(body)
}

// Respond writes err with the status its code maps to.
func Respond(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusFor(err), err)
}
