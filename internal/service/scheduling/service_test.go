package scheduling

import (
	"context"
	"io"
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

type fakeScheduleRepo struct {
	schedules []model.ServiceSchedule
}

func (f *fakeScheduleRepo) Get(ctx context.Context, id uuid.UUID) (*model.ServiceSchedule, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeScheduleRepo) ListForService(ctx context.Context, serviceID uuid.UUID) ([]model.ServiceSchedule, error) {
	return f.schedules, nil
}

func (f *fakeScheduleRepo) Create(ctx context.Context, schedule *model.ServiceSchedule) error {
	return nil
}

func (f *fakeScheduleRepo) Update(ctx context.Context, schedule *model.ServiceSchedule) error {
	return nil
}

func (f *fakeScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeBranchRepo struct {
	policy *model.BranchPolicy
	calls  int
}

func (f *fakeBranchRepo) GetPolicy(ctx context.Context, branchID uuid.UUID) (*model.BranchPolicy, error) {
	f.calls++
	return f.policy, nil
}

func (f *fakeBranchRepo) UpsertPolicy(ctx context.Context, policy *model.BranchPolicy) error {
	return nil
}

type fakeAppointmentRepo struct {
	appointment *model.Appointment
	rescheduled []time.Time
	events      []*model.OutboxEvent
}

func (f *fakeAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	if f.appointment == nil || f.appointment.ID != id {
		return nil, repository.ErrNotFound
	}
	copied := *f.appointment
	return &copied, nil
}

func (f *fakeAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, event *model.OutboxEvent) error {
	f.rescheduled = append(f.rescheduled, scheduledAt)
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	return nil
}

func newTestService(schedules *fakeScheduleRepo, branches *fakeBranchRepo, appointments *fakeAppointmentRepo) *Service {
	svc := NewService(
		schedules,
		branches,
		appointments,
		Config{},
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
		metrics.NewTestMetrics(),
	)
	svc.now = func() time.Time { return monday.Add(9 * time.Hour) }
	return svc
}

func testAppointment() *model.Appointment {
	appointment := &model.Appointment{
		BranchID:    uuid.New(),
		ServiceID:   uuid.New(),
		PatientID:   uuid.New(),
		ScheduledAt: monday.Add(10 * time.Hour),
		Status:      model.AppointmentStatusScheduled,
	}
	appointment.ID = uuid.New()
	return appointment
}

func TestGetAvailableSlots(t *testing.T) {
	svc := newTestService(
		&fakeScheduleRepo{schedules: mondayWorkday()},
		&fakeBranchRepo{},
		&fakeAppointmentRepo{},
	)

	slots, err := svc.GetAvailableSlots(context.Background(), uuid.New(), monday)

	require.NoError(t, err)
	assert.Len(t, slots, 16)
}

func TestRescheduleAccepted(t *testing.T) {
	appointments := &fakeAppointmentRepo{appointment: testAppointment()}
	svc := newTestService(
		&fakeScheduleRepo{schedules: mondayWorkday()},
		&fakeBranchRepo{},
		appointments,
	)

	updated, rejection, err := svc.Reschedule(
		context.Background(),
		appointments.appointment.ID,
		"",
		&model.RescheduleRequest{Date: "2026-08-31", Time: "10:00", Reason: "patient request"},
	)

	require.NoError(t, err)
	require.Nil(t, rejection)
	require.Len(t, appointments.rescheduled, 1)

	want := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, want, appointments.rescheduled[0])
	assert.Equal(t, want, updated.ScheduledAt)

	require.Len(t, appointments.events, 1)
	assert.Equal(t, model.EventAppointmentRescheduled, appointments.events[0].EventType)
}

func TestRescheduleRejectionDoesNotPersist(t *testing.T) {
	appointments := &fakeAppointmentRepo{appointment: testAppointment()}
	svc := newTestService(
		&fakeScheduleRepo{schedules: mondayWorkday()},
		&fakeBranchRepo{},
		appointments,
	)

	_, rejection, err := svc.Reschedule(
		context.Background(),
		appointments.appointment.ID,
		"",
		&model.RescheduleRequest{Date: "2026-08-31", Time: "10:15"},
	)

	require.NoError(t, err)
	require.NotNil(t, rejection)
	assert.Equal(t, RejectTimeNotAvailable, rejection.Kind)
	assert.Empty(t, appointments.rescheduled)
}

func TestRescheduleMalformedDate(t *testing.T) {
	appointments := &fakeAppointmentRepo{appointment: testAppointment()}
	svc := newTestService(
		&fakeScheduleRepo{schedules: mondayWorkday()},
		&fakeBranchRepo{},
		appointments,
	)

	_, rejection, err := svc.Reschedule(
		context.Background(),
		appointments.appointment.ID,
		"",
		&model.RescheduleRequest{Date: "31/08/2026", Time: "10:00"},
	)

	require.NoError(t, err)
	require.NotNil(t, rejection)
	assert.Equal(t, RejectMissingDate, rejection.Kind)
}

func TestRescheduleUnknownAppointment(t *testing.T) {
	svc := newTestService(
		&fakeScheduleRepo{schedules: mondayWorkday()},
		&fakeBranchRepo{},
		&fakeAppointmentRepo{},
	)

	_, _, err := svc.Reschedule(
		context.Background(),
		uuid.New(),
		"",
		&model.RescheduleRequest{Date: "2026-08-31", Time: "10:00"},
	)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReschedulePolicyCache(t *testing.T) {
	appointments := &fakeAppointmentRepo{appointment: testAppointment()}
	branches := &fakeBranchRepo{}
	svc := newTestService(
		&fakeScheduleRepo{schedules: mondayWorkday()},
		branches,
		appointments,
	)

	req := &model.RescheduleRequest{Date: "2026-08-31", Time: "10:00"}
	_, _, err := svc.Reschedule(context.Background(), appointments.appointment.ID, "", req)
	require.NoError(t, err)
	_, _, err = svc.Reschedule(context.Background(), appointments.appointment.ID, "", req)
	require.NoError(t, err)

	// The nil policy is cached too; one lookup serves both calls.
	assert.Equal(t, 1, branches.calls)

	svc.InvalidatePolicy(appointments.appointment.BranchID)
	_, _, err = svc.Reschedule(context.Background(), appointments.appointment.ID, "", req)
	require.NoError(t, err)
	assert.Equal(t, 2, branches.calls)
}
