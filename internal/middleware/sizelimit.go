package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/httputil"
)

// DefaultMaxBodySize bounds JSON request bodies
const DefaultMaxBodySize int64 = 1 << 20

// SizeLimit rejects declared oversize bodies and caps undeclared ones
func SizeLimit(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBodySize {
			httputil.RespondWithError(c, apperrors.Validation(
				fmt.Sprintf("request body exceeds %d bytes", maxBodySize), nil))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		}
		c.Next()
	}
}
