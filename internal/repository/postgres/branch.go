package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
)

type branchRepository struct {
	BaseRepository
}

func NewBranchRepository(base BaseRepository) repository.BranchRepository {
	return &branchRepository{base}
}

// GetPolicy returns (nil, nil) when the branch has no policy row; the
// scheduling service falls back to the default notice window.
func (r *branchRepository) GetPolicy(ctx context.Context, branchID uuid.UUID) (*model.BranchPolicy, error) {
	query := `
		SELECT branch_id, reschedule_time_limit, allow_same_day_booking, updated_at
		FROM branch_policies
		WHERE branch_id = $1
	`
	var policy model.BranchPolicy
	err := r.db.GetContext(ctx, &policy, query, branchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch policy: %w", err)
	}
	return &policy, nil
}

func (r *branchRepository) UpsertPolicy(ctx context.Context, policy *model.BranchPolicy) error {
	query := `
		INSERT INTO branch_policies (branch_id, reschedule_time_limit, allow_same_day_booking, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (branch_id) DO UPDATE
		SET reschedule_time_limit = EXCLUDED.reschedule_time_limit,
			allow_same_day_booking = EXCLUDED.allow_same_day_booking,
			updated_at = EXCLUDED.updated_at
	`
	policy.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		policy.BranchID,
		policy.RescheduleTimeLimit,
		policy.AllowSameDayBooking,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert branch policy: %w", err)
	}
	return nil
}
