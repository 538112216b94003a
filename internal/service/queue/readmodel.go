package queue

import (
	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/model"
)

// BuildSnapshot partitions a branch's queue entries by status. It is a
// pure projection: the input is the full current entry set and the output
// is rebuilt wholesale, never patched incrementally, so the read model
// cannot drift from the entries.
//
// Each partition keeps creation order (FIFO). Closed entries are excluded
// entirely; completed ones land in Completed so staff still see the day's
// throughput.
func BuildSnapshot(branchID uuid.UUID, entries []*model.QueueEntry) *model.QueueSnapshot {
	snapshot := &model.QueueSnapshot{
		BranchID:  branchID,
		Waiting:   []*model.QueueEntry{},
		Serving:   []*model.QueueEntry{},
		Completed: []*model.QueueEntry{},
	}
	for _, entry := range entries {
		if entry.ClosedAt != nil {
			continue
		}
		switch entry.Status {
		case model.QueueStatusWaiting:
			snapshot.Waiting = append(snapshot.Waiting, entry)
		case model.QueueStatusServing:
			snapshot.Serving = append(snapshot.Serving, entry)
		case model.QueueStatusComplete:
			snapshot.Completed = append(snapshot.Completed, entry)
		}
	}
	return snapshot
}
