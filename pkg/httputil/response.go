package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/pkg/errors"
)

// ContextResult is the gin context key holding the last successful payload,
// read by post-processing stages such as the audit recorder.
const ContextResult = "response_result"

// Response wraps all API responses
type Response struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Data       interface{}      `json:"data,omitempty"`
	Errors     interface{}      `json:"errors,omitempty"`
	Pagination *Pagination      `json:"pagination,omitempty"`
	Code       errors.ErrorCode `json:"code,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes total pages from the page size
func NewPagination(page, limit, total int) *Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, message, data)
}

// RespondCreated sends a 201 response
func RespondCreated(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusCreated, message, data)
}

// Respond writes the success envelope and keeps the payload for later stages
func Respond(c *gin.Context, status int, message string, data interface{}) {
	if data != nil {
		c.Set(ContextResult, data)
	}
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, data interface{}, p *Pagination) {
	c.Set(ContextResult, data)
	c.JSON(http.StatusOK, Response{
		Success:    true,
		Data:       data,
		Pagination: p,
	})
}

// RespondWithError sends an error response and records the error on the context
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.From(err)
	_ = c.Error(err)

	message := appErr.Message
	if appErr.Code == errors.ErrInternal {
		message = "Internal server error"
	}

	c.AbortWithStatusJSON(appErr.StatusCode(), Response{
		Success: false,
		Message: message,
		Errors:  appErr.Details,
		Code:    appErr.Code,
	})
}
