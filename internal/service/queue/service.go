package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/internal/announce"
	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
	"github.com/clinicflow/queue-api/pkg/logger"
	"github.com/clinicflow/queue-api/pkg/metrics"
)

// SurveyTrigger is the fire-and-forget boundary invoked after an entry
// completes. Its failures never reach the transition's result.
type SurveyTrigger interface {
	Trigger(ctx context.Context, queueEntryID, appointmentID uuid.UUID) error
}

const surveyTriggerTimeout = 5 * time.Second

// Service is the queue state machine: waiting -> serving -> complete, plus
// lateral transfer. Each mutating call serializes per appointment through
// a keyed mutex, and the repository additionally guards every transition
// with a compare-and-swap, so two staff members racing on the same entry
// resolve to exactly one winner.
type Service struct {
	entries       repository.QueueRepository
	appointments  repository.AppointmentRepository
	servicePoints repository.ServicePointRepository
	surveys       SurveyTrigger
	announcer     announce.Announcer
	logger        *logger.Logger
	metrics       *metrics.Metrics

	mu    sync.Mutex
	locks map[uuid.UUID]*appointmentLock
}

type appointmentLock struct {
	sync.Mutex
	refs int
}

func NewService(
	entries repository.QueueRepository,
	appointments repository.AppointmentRepository,
	servicePoints repository.ServicePointRepository,
	surveys SurveyTrigger,
	announcer announce.Announcer,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if announcer == nil {
		announcer = announce.Noop{}
	}
	return &Service{
		entries:       entries,
		appointments:  appointments,
		servicePoints: servicePoints,
		surveys:       surveys,
		announcer:     announcer,
		logger:        logger,
		metrics:       metrics,
		locks:         make(map[uuid.UUID]*appointmentLock),
	}
}

// lockAppointment serializes mutations for one appointment. Locks are
// reference-counted so the map does not grow with every appointment ever
// seen.
func (s *Service) lockAppointment(id uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &appointmentLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// AddToQueue places a checked-in appointment into the waiting list of an
// eligible, active service point.
func (s *Service) AddToQueue(ctx context.Context, appointmentID, servicePointID uuid.UUID) (*model.QueueEntry, error) {
	unlock := s.lockAppointment(appointmentID)
	defer unlock()

	appointment, err := s.appointments.Get(ctx, appointmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if appointment.Status != model.AppointmentStatusCheckedIn {
		return nil, ErrAppointmentNotCheckedIn
	}

	if _, err := s.entries.GetActiveByAppointment(ctx, appointmentID); err == nil {
		return nil, ErrAlreadyQueued
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check active queue entry: %w", err)
	}

	point, err := s.eligibleServicePoint(ctx, servicePointID, appointment.ServiceID)
	if err != nil {
		return nil, err
	}

	entry := &model.QueueEntry{
		AppointmentID:  appointmentID,
		ServicePointID: point.ID,
		BranchID:       appointment.BranchID,
		Status:         model.QueueStatusWaiting,
	}
	event, err := queueEvent(model.EventQueueEntryAdded, entry)
	if err != nil {
		return nil, err
	}
	if err := s.entries.CreateEntry(ctx, entry, event); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrAlreadyQueued
		}
		return nil, fmt.Errorf("failed to create queue entry: %w", err)
	}

	s.metrics.QueueTransitions.WithLabelValues("add", "success").Inc()
	return entry, nil
}

// StartServing moves a waiting entry to serving and records the start time
// used for duration reporting.
func (s *Service) StartServing(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.activeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAppointment(entry.AppointmentID)
	defer unlock()

	event, err := queueEvent(model.EventQueueServingStarted, entry.WithStatus(model.QueueStatusServing))
	if err != nil {
		return nil, err
	}
	updated, err := s.entries.TransitionStatus(ctx, entryID, model.QueueStatusWaiting, model.QueueStatusServing, event)
	if err != nil {
		return nil, s.mapTransitionErr(err, "start_serving")
	}

	s.metrics.QueueTransitions.WithLabelValues("start_serving", "success").Inc()
	s.announceServing(ctx, updated)
	return updated, nil
}

// Complete finishes a serving entry. Survey generation is triggered
// afterwards, outside the transition and without affecting its outcome.
func (s *Service) Complete(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.activeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAppointment(entry.AppointmentID)
	defer unlock()

	event, err := queueEvent(model.EventQueueEntryCompleted, entry.WithStatus(model.QueueStatusComplete))
	if err != nil {
		return nil, err
	}
	updated, err := s.entries.TransitionStatus(ctx, entryID, model.QueueStatusServing, model.QueueStatusComplete, event)
	if err != nil {
		return nil, s.mapTransitionErr(err, "complete")
	}

	if err := s.appointments.UpdateStatus(ctx, updated.AppointmentID, model.AppointmentStatusCompleted); err != nil {
		s.logger.Error(err, "failed to mark appointment completed",
			"appointment_id", updated.AppointmentID.String())
	}

	s.metrics.QueueTransitions.WithLabelValues("complete", "success").Inc()
	s.triggerSurvey(updated)
	return updated, nil
}

// Transfer reassigns a waiting or serving entry to another service point:
// the old entry is closed and a fresh waiting entry is created at the
// destination in one transaction. Eligibility is checked against the
// appointment's own service, not the destination's full capability list.
func (s *Service) Transfer(ctx context.Context, entryID, newServicePointID uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.activeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAppointment(entry.AppointmentID)
	defer unlock()

	// Re-read under the lock: the entry may have moved while we waited.
	entry, err = s.activeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.QueueStatusWaiting && entry.Status != model.QueueStatusServing {
		return nil, ErrInvalidTransition
	}
	if entry.ServicePointID == newServicePointID {
		return nil, ErrNoopTransfer
	}

	appointment, err := s.appointments.Get(ctx, entry.AppointmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	point, err := s.eligibleServicePoint(ctx, newServicePointID, appointment.ServiceID)
	if err != nil {
		return nil, err
	}

	replacement := &model.QueueEntry{
		AppointmentID:  entry.AppointmentID,
		ServicePointID: point.ID,
		BranchID:       entry.BranchID,
		Status:         model.QueueStatusWaiting,
	}
	event, err := transferEvent(entry, replacement)
	if err != nil {
		return nil, err
	}
	if err := s.entries.Transfer(ctx, entry.ID, replacement, event); err != nil {
		return nil, s.mapTransitionErr(err, "transfer")
	}

	s.metrics.QueueTransitions.WithLabelValues("transfer", "success").Inc()
	return replacement, nil
}

// Snapshot recomputes the branch read model from the active entries of the
// current day.
func (s *Service) Snapshot(ctx context.Context, branchID uuid.UUID) (*model.QueueSnapshot, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	entries, err := s.entries.ListActiveForBranch(ctx, branchID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	snapshot := BuildSnapshot(branchID, entries)
	s.metrics.QueueWaiting.WithLabelValues(branchID.String()).Set(float64(len(snapshot.Waiting)))
	return snapshot, nil
}

func (s *Service) activeEntry(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.entries.GetEntry(ctx, entryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	if !entry.Active() && entry.Status != model.QueueStatusComplete {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

func (s *Service) eligibleServicePoint(ctx context.Context, pointID, serviceID uuid.UUID) (*model.ServicePoint, error) {
	point, err := s.servicePoints.Get(ctx, pointID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrServicePointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service point: %w", err)
	}
	if !point.IsActive {
		return nil, ErrServicePointInactive
	}
	if !point.Supports(serviceID) {
		return nil, ErrServicePointIneligible
	}
	return point, nil
}

func (s *Service) mapTransitionErr(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.QueueTransitions.WithLabelValues(action, "not_found").Inc()
		return ErrEntryNotFound
	case errors.Is(err, repository.ErrStateConflict):
		s.metrics.QueueTransitions.WithLabelValues(action, "conflict").Inc()
		return ErrInvalidTransition
	default:
		s.metrics.QueueTransitions.WithLabelValues(action, "error").Inc()
		return err
	}
}

// triggerSurvey runs outside the critical section with its own deadline;
// the caller has already received the successful transition.
func (s *Service) triggerSurvey(entry *model.QueueEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), surveyTriggerTimeout)
		defer cancel()
		if err := s.surveys.Trigger(ctx, entry.ID, entry.AppointmentID); err != nil {
			s.logger.Error(err, "survey trigger failed",
				"queue_entry_id", entry.ID.String())
		}
	}()
}

func (s *Service) announceServing(ctx context.Context, entry *model.QueueEntry) {
	if err := s.announcer.PlayTone(ctx, announce.ToneCalled); err != nil {
		s.logger.Error(err, "announcement tone failed", "queue_entry_id", entry.ID.String())
		return
	}
	text := fmt.Sprintf("now serving at point %s", entry.ServicePointID)
	if err := s.announcer.Speak(ctx, text); err != nil {
		s.logger.Error(err, "announcement speech failed", "queue_entry_id", entry.ID.String())
	}
}

func queueEvent(eventType string, entry *model.QueueEntry) (*model.OutboxEvent, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue event: %w", err)
	}
	return &model.OutboxEvent{EventType: eventType, Payload: payload}, nil
}

func transferEvent(from, to *model.QueueEntry) (*model.OutboxEvent, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"appointment_id":     from.AppointmentID,
		"from_service_point": from.ServicePointID,
		"to_service_point":   to.ServicePointID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer event: %w", err)
	}
	return &model.OutboxEvent{EventType: model.EventQueueEntryTransferred, Payload: payload}, nil
}
