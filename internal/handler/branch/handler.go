package branch

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/handler"
	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
	"github.com/clinicflow/queue-api/internal/service/scheduling"
	apperrors "github.com/clinicflow/queue-api/pkg/errors"
)

// Handler exposes the per-branch reschedule policy configuration.
type Handler struct {
	repo       repository.BranchRepository
	scheduling *scheduling.Service
}

func NewHandler(repo repository.BranchRepository, scheduling *scheduling.Service) *Handler {
	return &Handler{repo: repo, scheduling: scheduling}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	branches := r.Group("/branches")
	{
		branches.GET("/:id/policy", h.GetPolicy)
		branches.PUT("/:id/policy", h.UpdatePolicy)
	}
}

func (h *Handler) GetPolicy(c *gin.Context) {
	branchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid branch ID"))
		return
	}

	policy, err := h.repo.GetPolicy(c.Request.Context(), branchID)
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}
	if policy == nil {
		policy = &model.BranchPolicy{
			BranchID:            branchID,
			RescheduleTimeLimit: model.DefaultRescheduleNoticeHours,
		}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(policy))
}

func (h *Handler) UpdatePolicy(c *gin.Context) {
	branchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid branch ID"))
		return
	}

	var req model.UpdateBranchPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	policy, err := h.repo.GetPolicy(c.Request.Context(), branchID)
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}
	if policy == nil {
		policy = &model.BranchPolicy{
			BranchID:            branchID,
			RescheduleTimeLimit: model.DefaultRescheduleNoticeHours,
		}
	}

	if req.RescheduleTimeLimit != nil {
		policy.RescheduleTimeLimit = *req.RescheduleTimeLimit
	}
	if req.AllowSameDayBooking != nil {
		policy.AllowSameDayBooking = *req.AllowSameDayBooking
	}

	if err := h.repo.UpsertPolicy(c.Request.Context(), policy); err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}

	// Stale policies must not outlive an admin change.
	h.scheduling.InvalidatePolicy(branchID)

	c.JSON(http.StatusOK, handler.NewSuccessResponse(policy))
}
