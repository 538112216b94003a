package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
)

const uniqueViolation = "23505"

type queueRepository struct {
	BaseRepository
}

func NewQueueRepository(base BaseRepository) repository.QueueRepository {
	return &queueRepository{base}
}

const queueEntryColumns = `
	id, appointment_id, service_point_id, branch_id, status,
	serving_started_at, completed_at, closed_at, closure_reason,
	created_at, updated_at
`

func (r *queueRepository) GetEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + ` FROM queue_entries WHERE id = $1`
	var entry model.QueueEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, mapNoRows(err)
	}
	return &entry, nil
}

func (r *queueRepository) GetActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	query := `
		SELECT ` + queueEntryColumns + `
		FROM queue_entries
		WHERE appointment_id = $1 AND closed_at IS NULL AND status <> 'complete'
	`
	var entry model.QueueEntry
	if err := r.db.GetContext(ctx, &entry, query, appointmentID); err != nil {
		return nil, mapNoRows(err)
	}
	return &entry, nil
}

// CreateEntry inserts the entry and its outbox event in one transaction.
// The partial unique index on (appointment_id) WHERE active backs the
// one-active-entry invariant even under concurrent inserts; a violation
// surfaces as ErrStateConflict.
func (r *queueRepository) CreateEntry(ctx context.Context, entry *model.QueueEntry, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertQueueEntry(ctx, tx, entry); err != nil {
			return err
		}
		if event != nil {
			return insertOutboxEvent(ctx, tx, event)
		}
		return nil
	})
}

func insertQueueEntry(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (
			id, appointment_id, service_point_id, branch_id, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	_, err := tx.ExecContext(ctx, query,
		entry.ID,
		entry.AppointmentID,
		entry.ServicePointID,
		entry.BranchID,
		entry.Status,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return repository.ErrStateConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create queue entry: %w", err)
	}
	return nil
}

// TransitionStatus is a compare-and-swap: the update only lands when the
// entry still holds the expected prior status and is still active. Zero
// rows affected means either a missing entry or a concurrent transition;
// the follow-up read tells the two apart.
func (r *queueRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.QueueStatus, event *model.OutboxEvent) (*model.QueueEntry, error) {
	var updated model.QueueEntry
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE queue_entries
			SET status = $1,
				serving_started_at = CASE WHEN $1 = 'serving' THEN $2 ELSE serving_started_at END,
				completed_at = CASE WHEN $1 = 'complete' THEN $2 ELSE completed_at END,
				updated_at = $2
			WHERE id = $3 AND status = $4 AND closed_at IS NULL
			RETURNING ` + queueEntryColumns + `
		`
		err := tx.GetContext(ctx, &updated, query, to, time.Now(), id, from)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if probeErr := tx.GetContext(ctx, &exists,
				`SELECT EXISTS (SELECT 1 FROM queue_entries WHERE id = $1)`, id); probeErr != nil {
				return fmt.Errorf("failed to probe queue entry: %w", probeErr)
			}
			if !exists {
				return repository.ErrNotFound
			}
			return repository.ErrStateConflict
		}
		if err != nil {
			return fmt.Errorf("failed to transition queue entry: %w", err)
		}
		if event != nil {
			return insertOutboxEvent(ctx, tx, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Transfer closes the source entry and inserts the destination entry in
// the same transaction, so the appointment is never active at two points
// and never dropped from both.
func (r *queueRepository) Transfer(ctx context.Context, oldID uuid.UUID, entry *model.QueueEntry, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE queue_entries
			SET closed_at = $1, closure_reason = $2, updated_at = $1
			WHERE id = $3 AND closed_at IS NULL AND status IN ('waiting', 'serving')
		`
		result, err := tx.ExecContext(ctx, query, time.Now(), model.QueueClosureTransferred, oldID)
		if err != nil {
			return fmt.Errorf("failed to close queue entry: %w", err)
		}
		if err := requireRow(result, repository.ErrStateConflict); err != nil {
			return err
		}
		if err := insertQueueEntry(ctx, tx, entry); err != nil {
			return err
		}
		if event != nil {
			return insertOutboxEvent(ctx, tx, event)
		}
		return nil
	})
}

func (r *queueRepository) ListActiveForBranch(ctx context.Context, branchID uuid.UUID, since time.Time) ([]*model.QueueEntry, error) {
	query := `
		SELECT ` + queueEntryColumns + `
		FROM queue_entries
		WHERE branch_id = $1
		AND closed_at IS NULL
		AND created_at >= $2
		ORDER BY created_at ASC
	`
	var entries []*model.QueueEntry
	if err := r.db.SelectContext(ctx, &entries, query, branchID, since); err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return entries, nil
}

// CloseStaleEntries closes waiting/serving entries created before the
// cutoff. Used by the end-of-day sweep; closed entries are marked expired,
// never complete.
func (r *queueRepository) CloseStaleEntries(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE queue_entries
		SET closed_at = $1, closure_reason = $2, updated_at = $1
		WHERE closed_at IS NULL
		AND status IN ('waiting', 'serving')
		AND created_at < $3
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), model.QueueClosureExpired, before)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale queue entries: %w", err)
	}
	return result.RowsAffected()
}
