package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/classpoint/gatehouse/pkg/errors"
	"github.com/classpoint/gatehouse/pkg/response"
)

// Recovery creates a panic recovery middleware
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Envelope{
					Success: false,
					Error: &response.ErrorDetail{
						Code:    apperrors.ErrCodeInternalError,
						Message: "Internal server error",
					},
				})
			}
		}()

		c.Next()
	}
}
