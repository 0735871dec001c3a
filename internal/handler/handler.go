// Package handler holds helpers shared by the HTTP handlers in its subpackages.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/internal/middleware"
	"github.com/vidaplus/hospital-api/internal/model"
	apperrors "github.com/vidaplus/hospital-api/pkg/errors"
)

// ParseID reads a positive integer route parameter
func ParseID(c *gin.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("invalid "+param, err)
	}
	return id, nil
}

// Claims returns the authenticated caller or an UNAUTHORIZED error
func Claims(c *gin.Context) (*model.Claims, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return nil, apperrors.Unauthorized("authentication required", nil)
	}
	return claims, nil
}
