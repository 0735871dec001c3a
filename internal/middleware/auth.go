package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/service/authz"
	"github.com/vidaplus/hospital-api/pkg/auth"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
	"github.com/vidaplus/hospital-api/pkg/httputil"
)

// ContextClaims holds the verified *model.Claims of the caller
const ContextClaims = "claims"

type AuthMiddleware struct {
	jwtSvc auth.JWTService
}

func NewAuthMiddleware(jwtSvc auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtSvc: jwtSvc}
}

// Authenticate verifies the bearer token and stores its claims in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("missing authorization header", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("invalid authorization format", nil))
			return
		}

		claims, err := m.jwtSvc.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token expired"
			}
			httputil.RespondWithError(c, apperrors.Unauthorized(msg, err))
			return
		}

		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		if err := authz.Authorize(claims, roles...); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Authenticate
func ClaimsFrom(c *gin.Context) (*model.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*model.Claims)
	return claims, ok && claims != nil
}
