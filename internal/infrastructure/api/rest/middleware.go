package rest

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// RequestIDHeader is echoed on every response for correlation with logs.
const RequestIDHeader = "X-Request-ID"

// RequestLogger logs request start/completion, matching LOG_EVENTS verbosity.
func RequestLogger(log *logger.Logger, verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)

		if verbose {
			log.Info("request started", "request_id", requestID, "method", c.Request.Method, "path", c.Request.URL.Path)
		}

		c.Next()

		status := c.Writer.Status()
		args := []interface{}{"request_id", requestID, "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "duration_ms", time.Since(start).Milliseconds()}
		switch {
		case status >= 500:
			log.Error("request completed", args...)
		case status >= 400:
			log.Warn("request completed", args...)
		case verbose:
			log.Info("request completed", args...)
		}
	}
}

// Recovery converts a panicking handler into a 500 response instead of
// crashing the whole worker process.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", "method", c.Request.Method, "path", c.Request.URL.Path, "error", r, "stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{Message: fmt.Sprintf("internal error: %v", r)})
			}
		}()
		c.Next()
	}
}
