package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// ErrorResponse is the error envelope written by middleware
type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler logs errors attached with c.Error and answers for handlers
// that recorded an error without writing a response.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			fields := []interface{}{
				"request_id", requestID,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			}
			if appErr, ok := apperrors.As(e.Err); ok {
				fields = append(fields, "code", int(appErr.Code))
				if appErr.StatusCode() < http.StatusInternalServerError {
					log.Warn("Request rejected", append(fields, "error", e.Err.Error())...)
					continue
				}
			}
			log.Error(e.Err, "Request error", fields...)
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		message := "internal server error"
		if appErr, ok := apperrors.As(lastErr.Err); ok {
			status = appErr.StatusCode()
			message = appErr.Message
		}

		c.JSON(status, ErrorResponse{
			Status:    "error",
			Message:   message,
			RequestID: requestID,
		})
	}
}
