package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/handler"
	"github.com/clinicflow/queue-api/internal/middleware"
	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
	"github.com/clinicflow/queue-api/internal/service/scheduling"
	apperrors "github.com/clinicflow/queue-api/pkg/errors"
)

type Handler struct {
	service *scheduling.Service
}

func NewHandler(service *scheduling.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("/available-slots", h.GetAvailableSlots)
		appointments.POST("/:id/reschedule", h.Reschedule)
	}
}

// GetAvailableSlots returns the bookable "HH:MM" slots for a service on a
// date. An empty list is a valid answer: the service is closed that day.
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Query("service_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid service ID"))
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid date format, expected YYYY-MM-DD"))
		return
	}

	slots, err := h.service.GetAvailableSlots(c.Request.Context(), serviceID, date)
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

// Reschedule validates the chosen slot against the service's weekly
// schedule and the branch's notice policy, then persists it. Rejections
// come back as structured kinds so the UI can render a specific message.
func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appointment, rejection, err := h.service.Reschedule(c.Request.Context(), id, middleware.Role(c), &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("appointment not found"))
			return
		}
		_ = c.Error(apperrors.Internal(err))
		return
	}
	if rejection != nil {
		c.JSON(rejectionStatus(rejection), handler.NewRejectionResponse(
			string(rejection.Kind), rejection.Error(), rejection))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func rejectionStatus(r *scheduling.Rejection) int {
	switch r.Kind {
	case scheduling.RejectMissingDate, scheduling.RejectMissingTime:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
