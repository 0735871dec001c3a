package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/httputil"
	"github.com/vidaplus/hospital-api/pkg/logger"
)

// ErrorHandler logs errors attached to the context and, when the handler
// wrote nothing, renders the last one as the error envelope.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			appErr := apperrors.From(e.Err)
			if appErr.Code == apperrors.ErrInternal {
				log.Error(e.Err, "request error",
					"request_id", requestID,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"client_ip", c.ClientIP(),
				)
				continue
			}
			log.Debug("request rejected",
				"request_id", requestID,
				"path", c.Request.URL.Path,
				"code", string(appErr.Code),
				"error", e.Error(),
			)
		}

		if !c.Writer.Written() {
			httputil.RespondWithError(c, c.Errors.Last().Err)
		}
	}
}
