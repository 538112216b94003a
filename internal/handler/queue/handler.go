package queue

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/handler"
	"github.com/clinicflow/queue-api/internal/model"
	queueService "github.com/clinicflow/queue-api/internal/service/queue"
	apperrors "github.com/clinicflow/queue-api/pkg/errors"
)

type Handler struct {
	service *queueService.Service
}

func NewHandler(service *queueService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	entries := r.Group("/queue")
	{
		entries.POST("/entries", h.AddEntry)
		entries.POST("/entries/:id/transition", h.Transition)
		entries.POST("/entries/:id/transfer", h.Transfer)
		entries.GET("/snapshot", h.Snapshot)
	}
}

func (h *Handler) AddEntry(c *gin.Context) {
	var req model.AddQueueEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	entry, err := h.service.AddToQueue(c.Request.Context(), req.AppointmentID, req.ServicePointID)
	if err != nil {
		h.writeQueueError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(entry))
}

func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid queue entry ID"))
		return
	}

	var req model.QueueTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	var entry *model.QueueEntry
	switch req.NewStatus {
	case model.QueueStatusServing:
		entry, err = h.service.StartServing(c.Request.Context(), id)
	case model.QueueStatusComplete:
		entry, err = h.service.Complete(c.Request.Context(), id)
	default:
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("unsupported target status"))
		return
	}
	if err != nil {
		h.writeQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entry))
}

func (h *Handler) Transfer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid queue entry ID"))
		return
	}

	var req model.QueueTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	entry, err := h.service.Transfer(c.Request.Context(), id, req.NewServicePointID)
	if err != nil {
		h.writeQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entry))
}

func (h *Handler) Snapshot(c *gin.Context) {
	branchID, err := uuid.Parse(c.Query("branch_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid branch ID"))
		return
	}

	snapshot, err := h.service.Snapshot(c.Request.Context(), branchID)
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(snapshot))
}

// writeQueueError maps the state machine's error taxonomy onto HTTP
// statuses; everything else is an infrastructure failure.
func (h *Handler) writeQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queueService.ErrAppointmentNotFound),
		errors.Is(err, queueService.ErrServicePointNotFound),
		errors.Is(err, queueService.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(err.Error()))
	case errors.Is(err, queueService.ErrAlreadyQueued),
		errors.Is(err, queueService.ErrInvalidTransition):
		c.JSON(http.StatusConflict, handler.NewErrorResponse(err.Error()))
	case errors.Is(err, queueService.ErrAppointmentNotCheckedIn),
		errors.Is(err, queueService.ErrServicePointInactive),
		errors.Is(err, queueService.ErrServicePointIneligible),
		errors.Is(err, queueService.ErrNoopTransfer):
		c.JSON(http.StatusUnprocessableEntity, handler.NewErrorResponse(err.Error()))
	default:
		_ = c.Error(apperrors.Internal(err))
	}
}
