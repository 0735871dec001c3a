package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/vidaplus/hospital-api/internal/handler"
	"github.com/vidaplus/hospital-api/internal/middleware"
	"github.com/vidaplus/hospital-api/internal/model"
	"github.com/vidaplus/hospital-api/internal/service/appointment"
	"github.com/vidaplus/hospital-api/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Book(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	booked, err := h.service.Book(c.Request.Context(), claims, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, "Appointment booked successfully", booked)
}

func (h *Handler) List(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var filter model.AppointmentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	page, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithPagination(c, page.Items, httputil.NewPagination(page.Page, page.Limit, page.Total))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", detail)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindError(err))
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment status updated", updated)
}

func (h *Handler) Cancel(c *gin.Context) {
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

	// the body is optional on DELETE
	var req model.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithError(c, middleware.BindError(err))
			return
		}
	}

	cancelled, err := h.service.Cancel(c.Request.Context(), claims, id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Appointment cancelled", cancelled)
}

func (h *Handler) Availability(c *gin.Context) {
	professionalID, err := handler.ParseID(c, "profissional_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	availability, err := h.service.Availability(c.Request.Context(), professionalID, c.Query("data"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "", availability)
}
