package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/model"
)

// Sentinel errors shared by all repository implementations so services can
// distinguish "row missing" and "invariant hit" from infrastructure
// failures.
var (
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
)

type (
	// ScheduleRepository reads per-service weekly opening windows. The
	// engine never writes through it; the admin endpoints do.
	ScheduleRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.ServiceSchedule, error)
		ListForService(ctx context.Context, serviceID uuid.UUID) ([]model.ServiceSchedule, error)
		Create(ctx context.Context, schedule *model.ServiceSchedule) error
		Update(ctx context.Context, schedule *model.ServiceSchedule) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	// BranchRepository resolves branch policies. GetPolicy returns
	// (nil, nil) when the branch has no explicit policy row; callers fall
	// back to the default notice window.
	BranchRepository interface {
		GetPolicy(ctx context.Context, branchID uuid.UUID) (*model.BranchPolicy, error)
		UpsertPolicy(ctx context.Context, policy *model.BranchPolicy) error
	}

	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// Reschedule persists the new scheduled timestamp and records the
		// outbox event in the same transaction.
		Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, event *model.OutboxEvent) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error
	}

	ServicePointRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.ServicePoint, error)
		ListForBranch(ctx context.Context, branchID uuid.UUID) ([]*model.ServicePoint, error)
	}

	// QueueRepository persists queue entries. Status transitions are
	// compare-and-swap against the expected prior status and report
	// ErrStateConflict when the row moved underneath the caller.
	QueueRepository interface {
		GetEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
		GetActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error)
		CreateEntry(ctx context.Context, entry *model.QueueEntry, event *model.OutboxEvent) error
		TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.QueueStatus, event *model.OutboxEvent) (*model.QueueEntry, error)
		// Transfer closes the source entry and creates the destination
		// entry atomically.
		Transfer(ctx context.Context, oldID uuid.UUID, entry *model.QueueEntry, event *model.OutboxEvent) error
		ListActiveForBranch(ctx context.Context, branchID uuid.UUID, since time.Time) ([]*model.QueueEntry, error)
		CloseStaleEntries(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
