package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/internal/handler"
	"github.com/vidaplus/hospital-api/internal/middleware"
	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/service/audit"
	"github.com/vidaplus/hospital-api/internal/service/patient"
	"github.com/vidaplus/hospital-api/pkg/httputil"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var filter model.PatientFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, page.Items, httputil.NewPagination(page.Page, page.Limit, page.Total))
}

func (h *Handler) Get(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.service.Get(c.Request.Context(), claims, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", p)
}

func (h *Handler) Update(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var patch model.PatientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	before, after, err := h.service.Update(c.Request.Context(), claims, id, patch)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	audit.SetPrevious(c, before)
	httputil.RespondWithSuccess(c, "Patient updated successfully", after)
}

func (h *Handler) History(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	history, err := h.service.History(c.Request.Context(), claims, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", history)
}

func (h *Handler) Deactivate(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Patient deactivated successfully", nil)
}
