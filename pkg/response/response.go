package response

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/classpoint/gatehouse/pkg/errors"
)

// Envelope is the wire shape shared by every endpoint: either data on
// success or a coded error on failure.
type Envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the structured error body
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success sends a successful JSON response
func Success(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{
		Success: true,
		Data:    data,
	})
}

// Error sends an error JSON response
func Error(c *gin.Context, err error) {
	if apiErr, ok := err.(*apperrors.APIError); ok {
		status := apiErr.Status
		if status == 0 {
			status = 500
		}
		c.JSON(status, Envelope{
			Success: false,
			Error: &ErrorDetail{
				Code:    apiErr.Code,
				Message: apiErr.Message,
			},
		})
		return
	}

	c.JSON(500, Envelope{
		Success: false,
		Error: &ErrorDetail{
			Code:    apperrors.ErrCodeInternalError,
			Message: "Internal server error",
		},
	})
}

// ValidationError sends a validation error response
func ValidationError(c *gin.Context, message string) {
	c.JSON(400, Envelope{
		Success: false,
		Error: &ErrorDetail{
			Code:    apperrors.ErrCodeValidationFailed,
			Message: message,
		},
	})
}
