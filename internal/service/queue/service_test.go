package queue

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
	"github.com/clinicflow/queue-api/pkg/logger"
	"github.com/clinicflow/queue-api/pkg/metrics"
)

// fakeQueueRepo mirrors the Postgres repository's semantics: transitions
// are compare-and-swap against the expected prior status, and at most one
// active entry may exist per appointment.
type fakeQueueRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*model.QueueEntry
	order   []uuid.UUID
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{entries: make(map[uuid.UUID]*model.QueueEntry)}
}

func (f *fakeQueueRepo) GetEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeQueueRepo) GetActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		entry := f.entries[id]
		if entry.AppointmentID == appointmentID && entry.Active() {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeQueueRepo) CreateEntry(ctx context.Context, entry *model.QueueEntry, event *model.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		existing := f.entries[id]
		if existing.AppointmentID == entry.AppointmentID && existing.Active() {
			return repository.ErrStateConflict
		}
	}
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	copied := *entry
	f.entries[entry.ID] = &copied
	f.order = append(f.order, entry.ID)
	return nil
}

func (f *fakeQueueRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.QueueStatus, event *model.OutboxEvent) (*model.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if entry.Status != from || entry.ClosedAt != nil {
		return nil, repository.ErrStateConflict
	}
	now := time.Now()
	entry.Status = to
	switch to {
	case model.QueueStatusServing:
		entry.ServingStarted = &now
	case model.QueueStatusComplete:
		entry.CompletedAt = &now
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeQueueRepo) Transfer(ctx context.Context, oldID uuid.UUID, entry *model.QueueEntry, event *model.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.entries[oldID]
	if !ok {
		return repository.ErrNotFound
	}
	if old.ClosedAt != nil || old.Status == model.QueueStatusComplete {
		return repository.ErrStateConflict
	}
	now := time.Now()
	reason := model.QueueClosureTransferred
	old.ClosedAt = &now
	old.ClosureReason = &reason

	entry.ID = uuid.New()
	entry.CreatedAt = now
	copied := *entry
	f.entries[entry.ID] = &copied
	f.order = append(f.order, entry.ID)
	return nil
}

func (f *fakeQueueRepo) ListActiveForBranch(ctx context.Context, branchID uuid.UUID, since time.Time) ([]*model.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.QueueEntry
	for _, id := range f.order {
		entry := f.entries[id]
		if entry.BranchID != branchID || entry.ClosedAt != nil || entry.CreatedAt.Before(since) {
			continue
		}
		copied := *entry
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeQueueRepo) CloseStaleEntries(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	reason := model.QueueClosureExpired
	var closed int64
	for _, entry := range f.entries {
		if entry.ClosedAt == nil && entry.Status != model.QueueStatusComplete && entry.CreatedAt.Before(before) {
			entry.ClosedAt = &now
			entry.ClosureReason = &reason
			closed++
		}
	}
	return closed, nil
}

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	statuses     map[uuid.UUID]model.AppointmentStatus
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{
		appointments: make(map[uuid.UUID]*model.Appointment),
		statuses:     make(map[uuid.UUID]model.AppointmentStatus),
	}
}

func (f *fakeAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *appointment
	return &copied, nil
}

func (f *fakeAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, event *model.OutboxEvent) error {
	return nil
}

func (f *fakeAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

type fakeServicePointRepo struct {
	points map[uuid.UUID]*model.ServicePoint
}

func (f *fakeServicePointRepo) Get(ctx context.Context, id uuid.UUID) (*model.ServicePoint, error) {
	point, ok := f.points[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return point, nil
}

func (f *fakeServicePointRepo) ListForBranch(ctx context.Context, branchID uuid.UUID) ([]*model.ServicePoint, error) {
	return nil, nil
}

type fakeSurveyTrigger struct {
	triggered chan uuid.UUID
}

func (f *fakeSurveyTrigger) Trigger(ctx context.Context, queueEntryID, appointmentID uuid.UUID) error {
	f.triggered <- appointmentID
	return nil
}

type fakeAnnouncer struct {
	mu     sync.Mutex
	tones  []string
	spoken []string
}

func (f *fakeAnnouncer) PlayTone(ctx context.Context, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tones = append(f.tones, kind)
	return nil
}

func (f *fakeAnnouncer) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

type fixture struct {
	svc           *Service
	entries       *fakeQueueRepo
	appointments  *fakeAppointmentRepo
	points        *fakeServicePointRepo
	surveys       *fakeSurveyTrigger
	announcer     *fakeAnnouncer
	branchID      uuid.UUID
	serviceID     uuid.UUID
	appointmentID uuid.UUID
	pointID       uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		entries:      newFakeQueueRepo(),
		appointments: newFakeAppointmentRepo(),
		points:       &fakeServicePointRepo{points: make(map[uuid.UUID]*model.ServicePoint)},
		surveys:      &fakeSurveyTrigger{triggered: make(chan uuid.UUID, 4)},
		announcer:    &fakeAnnouncer{},
		branchID:     uuid.New(),
		serviceID:    uuid.New(),
	}

	appointment := &model.Appointment{
		BranchID:  f.branchID,
		ServiceID: f.serviceID,
		Status:    model.AppointmentStatusCheckedIn,
	}
	appointment.ID = uuid.New()
	f.appointmentID = appointment.ID
	f.appointments.appointments[appointment.ID] = appointment

	f.pointID = f.addPoint(true, f.serviceID)

	f.svc = NewService(
		f.entries,
		f.appointments,
		f.points,
		f.surveys,
		f.announcer,
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
		metrics.NewTestMetrics(),
	)
	return f
}

func (f *fixture) addPoint(active bool, serviceIDs ...uuid.UUID) uuid.UUID {
	point := &model.ServicePoint{
		BranchID:   f.branchID,
		Name:       "counter",
		IsActive:   active,
		ServiceIDs: serviceIDs,
	}
	point.ID = uuid.New()
	f.points.points[point.ID] = point
	return point.ID
}

func TestAddToQueue(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusWaiting, entry.Status)
	assert.Equal(t, f.branchID, entry.BranchID)
	assert.Equal(t, f.pointID, entry.ServicePointID)
}

func TestAddToQueueRequiresCheckIn(t *testing.T) {
	f := newFixture(t)
	f.appointments.appointments[f.appointmentID].Status = model.AppointmentStatusScheduled

	_, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)

	assert.ErrorIs(t, err, ErrAppointmentNotCheckedIn)
}

func TestAddToQueueUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddToQueue(context.Background(), uuid.New(), f.pointID)

	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestAddToQueueTwice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	_, err = f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestAddToQueueInactivePoint(t *testing.T) {
	f := newFixture(t)
	inactive := f.addPoint(false, f.serviceID)

	_, err := f.svc.AddToQueue(context.Background(), f.appointmentID, inactive)

	assert.ErrorIs(t, err, ErrServicePointInactive)
}

func TestAddToQueueIneligiblePoint(t *testing.T) {
	f := newFixture(t)
	other := f.addPoint(true, uuid.New())

	_, err := f.svc.AddToQueue(context.Background(), f.appointmentID, other)

	assert.ErrorIs(t, err, ErrServicePointIneligible)
}

func TestStartServing(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	serving, err := f.svc.StartServing(context.Background(), entry.ID)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusServing, serving.Status)
	require.NotNil(t, serving.ServingStarted)
	assert.Equal(t, []string{"called"}, f.announcer.tones)
	assert.Len(t, f.announcer.spoken, 1)
}

func TestStartServingTwice(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	_, err = f.svc.StartServing(context.Background(), entry.ID)
	require.NoError(t, err)

	_, err = f.svc.StartServing(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRequiresServing(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), entry.ID)

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)
	_, err = f.svc.StartServing(context.Background(), entry.ID)
	require.NoError(t, err)

	completed, err := f.svc.Complete(context.Background(), entry.ID)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusComplete, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, model.AppointmentStatusCompleted, f.appointments.statuses[f.appointmentID])

	select {
	case appointmentID := <-f.surveys.triggered:
		assert.Equal(t, f.appointmentID, appointmentID)
	case <-time.After(time.Second):
		t.Fatal("survey trigger never fired")
	}
}

func TestConcurrentCompleteSingleWinner(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)
	_, err = f.svc.StartServing(context.Background(), entry.ID)
	require.NoError(t, err)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.svc.Complete(context.Background(), entry.ID)
			results <- err
		}()
	}

	var succeeded, conflicted int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, ErrInvalidTransition)
			conflicted++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	dest := f.addPoint(true, f.serviceID)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	replacement, err := f.svc.Transfer(context.Background(), entry.ID, dest)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusWaiting, replacement.Status)
	assert.Equal(t, dest, replacement.ServicePointID)

	// The old entry is closed as transferred, not completed.
	old, err := f.entries.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, old.ClosedAt)
	require.NotNil(t, old.ClosureReason)
	assert.Equal(t, model.QueueClosureTransferred, *old.ClosureReason)

	// Exactly one active entry remains for the appointment.
	active, err := f.entries.GetActiveByAppointment(context.Background(), f.appointmentID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, active.ID)
}

func TestTransferToSamePoint(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	_, err = f.svc.Transfer(context.Background(), entry.ID, f.pointID)

	assert.ErrorIs(t, err, ErrNoopTransfer)
}

func TestTransferIneligibleDestination(t *testing.T) {
	f := newFixture(t)
	other := f.addPoint(true, uuid.New())
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	_, err = f.svc.Transfer(context.Background(), entry.ID, other)

	assert.ErrorIs(t, err, ErrServicePointIneligible)
}

func TestTransferCompletedEntry(t *testing.T) {
	f := newFixture(t)
	dest := f.addPoint(true, f.serviceID)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)
	_, err = f.svc.StartServing(context.Background(), entry.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(context.Background(), entry.ID)
	require.NoError(t, err)

	_, err = f.svc.Transfer(context.Background(), entry.ID, dest)

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.AddToQueue(context.Background(), f.appointmentID, f.pointID)
	require.NoError(t, err)

	snapshot, err := f.svc.Snapshot(context.Background(), f.branchID)

	require.NoError(t, err)
	require.Len(t, snapshot.Waiting, 1)
	assert.Equal(t, entry.ID, snapshot.Waiting[0].ID)
	assert.Empty(t, snapshot.Serving)
	assert.Empty(t, snapshot.Completed)
}
