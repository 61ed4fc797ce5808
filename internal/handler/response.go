// internal/handler/response.go
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serialkit/pkg/serialkit"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// SerialErrorResponse sends an error response with the status matching
// the serialkit error kind
func SerialErrorResponse(c *gin.Context, message string, err error) {
	ErrorResponse(c, StatusForError(err), message, err)
}

// StatusForError maps serialkit errors onto HTTP status codes
func StatusForError(err error) int {
	var (
		stateErr   *serialkit.StateError
		connErr    *serialkit.ConnectionError
		deviceErr  *serialkit.DeviceError
		commandErr *serialkit.CommandError
	)

	switch {
	case errors.As(err, &stateErr):
		return http.StatusConflict
	case errors.As(err, &connErr):
		if errors.Is(err, serialkit.ErrAlreadyConnected) {
			return http.StatusConflict
		}
		if errors.Is(err, serialkit.ErrInvalidConfig) {
			return http.StatusBadRequest
		}
		return http.StatusServiceUnavailable
	case errors.As(err, &commandErr) && errors.Is(err, serialkit.ErrResponseTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &commandErr), errors.As(err, &deviceErr):
		if errors.Is(err, serialkit.ErrNegativeSize) {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "PORT_STATE_CONFLICT"
	case http.StatusBadGateway:
		return "DEVICE_ERROR"
	case http.StatusServiceUnavailable:
		return "PORT_UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "RESPONSE_TIMEOUT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}
