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

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(base BaseRepository) repository.ScheduleRepository {
	return &scheduleRepository{base}
}

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceSchedule, error) {
	query := `
		SELECT id, service_id, day_of_week, start_time, end_time, is_active,
			   created_at, updated_at
		FROM service_schedules
		WHERE id = $1 AND deleted_at IS NULL
	`
	var schedule model.ServiceSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, mapNoRows(err)
	}
	return &schedule, nil
}

func (r *scheduleRepository) ListForService(ctx context.Context, serviceID uuid.UUID) ([]model.ServiceSchedule, error) {
	query := `
		SELECT id, service_id, day_of_week, start_time, end_time, is_active,
			   created_at, updated_at
		FROM service_schedules
		WHERE service_id = $1 AND deleted_at IS NULL
		ORDER BY day_of_week, start_time
	`
	var schedules []model.ServiceSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, serviceID); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.ServiceSchedule) error {
	query := `
		INSERT INTO service_schedules (
			id, service_id, day_of_week, start_time, end_time, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	schedule.ID = uuid.New()
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.ServiceID,
		schedule.DayOfWeek,
		schedule.StartTime,
		schedule.EndTime,
		schedule.IsActive,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *model.ServiceSchedule) error {
	query := `
		UPDATE service_schedules
		SET day_of_week = $1, start_time = $2, end_time = $3, is_active = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
	`
	schedule.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		schedule.DayOfWeek,
		schedule.StartTime,
		schedule.EndTime,
		schedule.IsActive,
		schedule.UpdatedAt,
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return requireRow(result, repository.ErrNotFound)
}

func (r *scheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE service_schedules
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return requireRow(result, repository.ErrNotFound)
}

// requireRow maps "zero rows affected" onto the given sentinel.
func requireRow(result sql.Result, sentinel error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel
	}
	return nil
}

// mapNoRows converts sql.ErrNoRows into the repository sentinel.
func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
