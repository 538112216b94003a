package model

import (
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusWaiting  QueueStatus = "waiting"
	QueueStatusServing  QueueStatus = "serving"
	QueueStatusComplete QueueStatus = "complete"
)

// Closure reasons for entries taken out of the active queue without
// reaching complete.
const (
	QueueClosureTransferred = "transferred"
	QueueClosureExpired     = "expired"
)

// QueueEntry links a checked-in appointment to a service point. At most one
// entry per appointment is active (closed_at IS NULL) at any time; a
// transfer closes the old entry and creates a fresh waiting one at the
// destination in the same transaction.
type QueueEntry struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	AppointmentID  uuid.UUID   `db:"appointment_id" json:"appointment_id"`
	ServicePointID uuid.UUID   `db:"service_point_id" json:"service_point_id"`
	BranchID       uuid.UUID   `db:"branch_id" json:"branch_id"`
	Status         QueueStatus `db:"status" json:"status"`
	ServingStarted *time.Time  `db:"serving_started_at" json:"serving_started_at,omitempty"`
	CompletedAt    *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	ClosedAt       *time.Time  `db:"closed_at" json:"closed_at,omitempty"`
	ClosureReason  *string     `db:"closure_reason" json:"closure_reason,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// Active reports whether the entry still occupies a service point.
func (e *QueueEntry) Active() bool {
	return e.ClosedAt == nil && e.Status != QueueStatusComplete
}

// WithStatus returns a copy of the entry carrying the given status, used
// when an event payload must reflect the post-transition state.
func (e *QueueEntry) WithStatus(status QueueStatus) *QueueEntry {
	copied := *e
	copied.Status = status
	return &copied
}

// QueueSnapshot is the derived read model for a branch: active entries
// partitioned by status, each partition FIFO by creation time. It is
// recomputed from scratch after every transition, never patched.
type QueueSnapshot struct {
	BranchID  uuid.UUID     `json:"branch_id"`
	Waiting   []*QueueEntry `json:"waiting"`
	Serving   []*QueueEntry `json:"serving"`
	Completed []*QueueEntry `json:"completed"`
}

type AddQueueEntryRequest struct {
	AppointmentID  uuid.UUID `json:"appointment_id" binding:"required"`
	ServicePointID uuid.UUID `json:"service_point_id" binding:"required"`
}

type QueueTransitionRequest struct {
	NewStatus QueueStatus `json:"new_status" binding:"required,oneof=serving complete"`
}

type QueueTransferRequest struct {
	NewServicePointID uuid.UUID `json:"new_service_point_id" binding:"required"`
}
