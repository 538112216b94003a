package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
)

type servicePointRepository struct {
	BaseRepository
}

func NewServicePointRepository(base BaseRepository) repository.ServicePointRepository {
	return &servicePointRepository{base}
}

func (r *servicePointRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServicePoint, error) {
	query := `
		SELECT id, branch_id, name, is_active, created_at, updated_at, deleted_at
		FROM service_points
		WHERE id = $1 AND deleted_at IS NULL
	`
	var point model.ServicePoint
	if err := r.db.GetContext(ctx, &point, query, id); err != nil {
		return nil, mapNoRows(err)
	}

	if err := r.loadServiceIDs(ctx, &point); err != nil {
		return nil, err
	}
	return &point, nil
}

func (r *servicePointRepository) ListForBranch(ctx context.Context, branchID uuid.UUID) ([]*model.ServicePoint, error) {
	query := `
		SELECT id, branch_id, name, is_active, created_at, updated_at, deleted_at
		FROM service_points
		WHERE branch_id = $1 AND deleted_at IS NULL
		ORDER BY name
	`
	var points []*model.ServicePoint
	if err := r.db.SelectContext(ctx, &points, query, branchID); err != nil {
		return nil, fmt.Errorf("failed to list service points: %w", err)
	}

	for _, point := range points {
		if err := r.loadServiceIDs(ctx, point); err != nil {
			return nil, err
		}
	}
	return points, nil
}

func (r *servicePointRepository) loadServiceIDs(ctx context.Context, point *model.ServicePoint) error {
	query := `
		SELECT service_id
		FROM service_point_services
		WHERE service_point_id = $1
	`
	if err := r.db.SelectContext(ctx, &point.ServiceIDs, query, point.ID); err != nil {
		return fmt.Errorf("failed to load service point eligibility: %w", err)
	}
	return nil
}
