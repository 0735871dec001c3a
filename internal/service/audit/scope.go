package audit

import (
	"github.com/gin-gonic/gin"
)

const scopeKey = "audit_scope"

// Scope is what a handler can tell the audit stage about its request
type Scope struct {
	Action   string
	ActorID  int64
	Previous interface{}
}

// Begin attaches a fresh scope to the request
func Begin(c *gin.Context, action string) *Scope {
	s := &Scope{Action: action}
	c.Set(scopeKey, s)
	return s
}

func ScopeFrom(c *gin.Context) (*Scope, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Scope)
	return s, ok
}

// SetActor names the acting identity on routes that run before authentication
func SetActor(c *gin.Context, identityID int64) {
	if s, ok := ScopeFrom(c); ok {
		s.ActorID = identityID
	}
}

// SetPrevious stores the state a mutation started from
func SetPrevious(c *gin.Context, v interface{}) {
	if s, ok := ScopeFrom(c); ok {
		s.Previous = v
	}
}
