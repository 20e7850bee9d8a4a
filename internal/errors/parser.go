package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo carries a response code and message derived from a raw error
type ErrorInfo struct {
	Code    string
	Message string
}

// ParseError converts database and transport errors into a response code
// and message without leaking internals. context names the entity being
// operated on ("category", "product", ...).
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "Internal server error",
		}
	}

	errStr := err.Error()
	errStrLower := strings.ToLower(errStr)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFoundCode(context),
			Message: context + " not found",
		}
	}

	// Unique constraint violation (postgres 23505)
	if strings.Contains(errStrLower, "duplicate key") ||
		strings.Contains(errStrLower, "unique constraint") ||
		strings.Contains(errStrLower, "unique failed") {
		return ErrorInfo{
			Code:    ResourceExistsCode(context),
			Message: context + " already exists",
		}
	}

	// Check constraint violation (postgres 23514): order totals
	if strings.Contains(errStrLower, "check constraint") {
		return ErrorInfo{
			Code:    OrderInvariant,
			Message: "Value violates a data constraint",
		}
	}

	// Network / external service errors
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "External service unavailable, please try again later",
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: "Internal server error",
	}
}

// ParseAndRespond parses an error and writes the standard error response
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Error:   errorInfo.Code,
		Message: errorInfo.Message,
	})
}

// ResourceNotFoundCode maps an entity name to its not-found code
func ResourceNotFoundCode(context string) string {
	switch strings.ToLower(context) {
	case "category":
		return CategoryNotFound
	case "product":
		return ProductNotFound
	case "cart":
		return CartNotFound
	case "order":
		return OrderNotFound
	default:
		return InternalDatabaseError
	}
}

// ResourceExistsCode maps an entity name to its already-exists code
func ResourceExistsCode(context string) string {
	switch strings.ToLower(context) {
	case "category":
		return CategoryAlreadyExists
	case "product":
		return ProductAlreadyExists
	case "email":
		return AuthEmailAlreadyExists
	default:
		return InternalDatabaseError
	}
}
