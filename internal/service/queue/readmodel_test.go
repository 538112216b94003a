package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/queue-api/internal/model"
)

func snapshotEntry(status model.QueueStatus, createdAt time.Time) *model.QueueEntry {
	return &model.QueueEntry{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		Status:        status,
		CreatedAt:     createdAt,
	}
}

func TestBuildSnapshotPartitionsByStatus(t *testing.T) {
	branchID := uuid.New()
	base := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)

	entries := []*model.QueueEntry{
		snapshotEntry(model.QueueStatusWaiting, base),
		snapshotEntry(model.QueueStatusServing, base.Add(time.Minute)),
		snapshotEntry(model.QueueStatusComplete, base.Add(2*time.Minute)),
		snapshotEntry(model.QueueStatusWaiting, base.Add(3*time.Minute)),
	}

	snapshot := BuildSnapshot(branchID, entries)

	assert.Equal(t, branchID, snapshot.BranchID)
	require.Len(t, snapshot.Waiting, 2)
	require.Len(t, snapshot.Serving, 1)
	require.Len(t, snapshot.Completed, 1)

	// FIFO within the partition.
	assert.Equal(t, entries[0].ID, snapshot.Waiting[0].ID)
	assert.Equal(t, entries[3].ID, snapshot.Waiting[1].ID)
}

func TestBuildSnapshotSkipsClosedEntries(t *testing.T) {
	closedAt := time.Now()
	closed := snapshotEntry(model.QueueStatusWaiting, time.Now())
	closed.ClosedAt = &closedAt

	snapshot := BuildSnapshot(uuid.New(), []*model.QueueEntry{closed})

	assert.Empty(t, snapshot.Waiting)
	assert.Empty(t, snapshot.Serving)
	assert.Empty(t, snapshot.Completed)
}

func TestBuildSnapshotEmptyInput(t *testing.T) {
	snapshot := BuildSnapshot(uuid.New(), nil)

	// Partitions are always non-nil so the JSON rendering is [] not null.
	assert.NotNil(t, snapshot.Waiting)
	assert.NotNil(t, snapshot.Serving)
	assert.NotNil(t, snapshot.Completed)
}
