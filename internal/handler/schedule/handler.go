package schedule

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/handler"
	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
	apperrors "github.com/clinicflow/queue-api/pkg/errors"
)

// Handler exposes the admin CRUD for weekly opening windows. The engine
// only ever reads these; staff configuration writes them.
type Handler struct {
	repo repository.ScheduleRepository
}

func NewHandler(repo repository.ScheduleRepository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	schedules := r.Group("/schedules")
	{
		schedules.GET("", h.ListSchedules)
		schedules.POST("", h.CreateSchedule)
		schedules.PUT("/:id", h.UpdateSchedule)
		schedules.DELETE("/:id", h.DeleteSchedule)
	}
}

func (h *Handler) ListSchedules(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Query("service_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid service ID"))
		return
	}

	schedules, err := h.repo.ListForService(c.Request.Context(), serviceID)
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedules))
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req model.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	schedule := &model.ServiceSchedule{
		ServiceID: req.ServiceID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  isActive,
	}

	if err := h.repo.Create(c.Request.Context(), schedule); err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(schedule))
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	var req model.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	// Load then apply: updates are partial and the window invariant has
	// to hold over the merged result.
	schedule, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("schedule not found"))
			return
		}
		_ = c.Error(apperrors.Internal(err))
		return
	}

	if req.DayOfWeek != nil {
		schedule.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		schedule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		schedule.EndTime = *req.EndTime
	}
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}

	if err := validateWindow(schedule.StartTime, schedule.EndTime); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.repo.Update(c.Request.Context(), schedule); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("schedule not found"))
			return
		}
		_ = c.Error(apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid schedule ID"))
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("schedule not found"))
			return
		}
		_ = c.Error(apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// validateWindow enforces start < end at creation time so the slot
// calculator never has to re-validate stored windows.
func validateWindow(start, end string) error {
	startMin, err := model.ParseClock(start)
	if err != nil {
		return fmt.Errorf("invalid start time %q, expected HH:MM", start)
	}
	endMin, err := model.ParseClock(end)
	if err != nil {
		return fmt.Errorf("invalid end time %q, expected HH:MM", end)
	}
	if startMin >= endMin {
		return fmt.Errorf("start time must be before end time")
	}
	return nil
}
