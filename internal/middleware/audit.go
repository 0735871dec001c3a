package middleware

import (
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/service/audit"
	"github.com/vidaplus/hospital-api/pkg/httputil"
)

var resourceFromPath = regexp.MustCompile(`^/api/([^/?]+)`)

// Audit records the outcome of the wrapped route once the handler has run.
// The record is handed to the recorder without waiting for persistence, so
// the response is never delayed or failed by auditing.
func Audit(recorder audit.Recorder, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := audit.Begin(c, action)

		c.Next()

		actorID := scope.ActorID
		if claims, ok := ClaimsFrom(c); ok {
			actorID = claims.IdentityID
		}
		if actorID == 0 {
			return
		}

		var result interface{}
		if v, ok := c.Get(httputil.ContextResult); ok {
			result = v
		}
		newData := audit.Snapshot(result)

		if scope.Action == "" {
			scope.Action = c.Request.Method + " " + c.FullPath()
		}

		record := &model.AuditRecord{
			ActorID:      actorID,
			Action:       scope.Action,
			ResourceType: resourceType(c.Request.URL.Path),
			ResourceID:   resourceID(c, newData),
			PreviousData: audit.Snapshot(scope.Previous),
			NewData:      newData,
			StatusCode:   c.Writer.Status(),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		}

		recorder.Record(c.Request.Context(), record)
	}
}

// resourceType is the first path segment after /api/
func resourceType(path string) *string {
	m := resourceFromPath.FindStringSubmatch(path)
	if m == nil {
		return nil
	}
	return &m[1]
}

// resourceID prefers the :id route parameter, then the payload's id field
func resourceID(c *gin.Context, newData []byte) *int64 {
	if raw := c.Param("id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &id
		}
	}
	if id, ok := audit.IDOf(newData); ok {
		return &id
	}
	return nil
}
