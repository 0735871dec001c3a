package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/internal/handler"
	"github.com/vidaplus/hospital-api/internal/middleware"
	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/service/audit"
	"github.com/vidaplus/hospital-api/internal/service/auth"
	"github.com/vidaplus/hospital-api/pkg/httputil"
)

type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	resp, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	audit.SetActor(c, resp.Identity.ID)
	httputil.RespondCreated(c, "User registered successfully", resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	audit.SetActor(c, resp.Identity.ID)
	httputil.RespondWithSuccess(c, "Login successful", resp)
}

func (h *Handler) Me(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	profile, err := h.service.Me(c.Request.Context(), claims.IdentityID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", profile)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims.IdentityID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Password changed successfully", nil)
}
