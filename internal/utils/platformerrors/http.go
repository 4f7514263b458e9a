package platformerrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HTTPErrorResponse represents the standard error response format.
type HTTPErrorResponse struct {
	Error *HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail contains error details for HTTP responses.
type HTTPErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteHTTPError writes a PlatformError as an HTTP response.
// It maps the error type to an appropriate HTTP status code and formats the response.
func WriteHTTPError(c *gin.Context, err *PlatformError, log zerolog.Logger) {
	if err == nil {
		WriteInternalError(c, "unknown error")
		return
	}

	LogError(log, err)

	status := ErrorTypeToHTTPStatus(err.Type)
	retryable := IsRetryable(err)
	if err.Type == ErrorTypeTimeout {
		c.Header("Retry-After", "1")
	}

	c.AbortWithStatusJSON(status, HTTPErrorResponse{
		Error: &HTTPErrorDetail{
			Message:   err.Message,
			Type:      ErrorTypeToString(err.Type),
			Code:      err.UUID,
			RequestID: err.RequestID,
			Retryable: retryable,
		},
	})
}

// WriteError writes a generic error as an HTTP response.
// Errors that are not PlatformErrors are treated as internal errors.
func WriteError(c *gin.Context, err error, log zerolog.Logger) {
	if err == nil {
		WriteInternalError(c, "unknown error")
		return
	}

	if platformErr := GetPlatformError(err); platformErr != nil {
		WriteHTTPError(c, platformErr, log)
		return
	}

	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unclassified error")
	WriteInternalError(c, "internal server error")
}

// WriteValidationError writes a 400 Bad Request response.
func WriteValidationError(c *gin.Context, message string) {
	writeStatus(c, http.StatusBadRequest, message, "validation_error")
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(c *gin.Context, message string) {
	writeStatus(c, http.StatusUnauthorized, message, "unauthorized_error")
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(c *gin.Context, message string) {
	writeStatus(c, http.StatusForbidden, message, "forbidden_error")
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(c *gin.Context, message string) {
	writeStatus(c, http.StatusInternalServerError, message, "internal_error")
}

func writeStatus(c *gin.Context, status int, message, errorType string) {
	c.AbortWithStatusJSON(status, HTTPErrorResponse{
		Error: &HTTPErrorDetail{
			Message: message,
			Type:    errorType,
		},
	})
}

// ErrorTypeToString converts an ErrorType to a snake_case string for API responses.
func ErrorTypeToString(t ErrorType) string {
	switch t {
	case ErrorTypeNotFound:
		return "not_found_error"
	case ErrorTypeValidation:
		return "validation_error"
	case ErrorTypeConflict:
		return "conflict_error"
	case ErrorTypeUnauthorized:
		return "unauthorized_error"
	case ErrorTypeForbidden:
		return "forbidden_error"
	case ErrorTypeNotImplemented:
		return "not_implemented_error"
	case ErrorTypeTimeout:
		return "timeout_error"
	case ErrorTypeExternal:
		return "external_error"
	case ErrorTypeDatabaseError, ErrorTypeInternal:
		fallthrough
	default:
		return "internal_error"
	}
}
