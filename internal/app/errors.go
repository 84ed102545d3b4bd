package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"booking-service/internal/domain"
)

// respond writes err as {"error": message}. Causes are only exposed outside production.
func (a *App) respond(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		a.logger().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body := gin.H{"error": "internal server error"}
		if !a.Production {
			body["details"] = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		return
	}

	status := de.Kind.Status()
	if status >= http.StatusInternalServerError {
		a.logger().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	body := gin.H{"error": de.Message}
	if de.Err != nil && !a.Production {
		body["details"] = de.Err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

// badRequest is shorthand for a validation failure.
func (a *App) badRequest(c *gin.Context, msg string) {
	a.respond(c, domain.Validation(msg))
}
