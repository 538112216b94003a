package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinicflow/queue-api/internal/model"
	"github.com/clinicflow/queue-api/internal/repository"
	"github.com/clinicflow/queue-api/pkg/logger"
	"github.com/clinicflow/queue-api/pkg/metrics"
)

const dateLayout = "2006-01-02"

// Service orchestrates slot computation and reschedule validation against
// the repositories. The computation itself stays in the pure functions;
// this layer only fetches inputs, persists accepted outcomes, and reports
// metrics.
type Service struct {
	schedules    repository.ScheduleRepository
	branches     repository.BranchRepository
	appointments repository.AppointmentRepository
	policyCache  *cache.Cache
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

type Config struct {
	PolicyCacheTTL     time.Duration
	PolicyCacheCleanup time.Duration
}

func NewService(
	schedules repository.ScheduleRepository,
	branches repository.BranchRepository,
	appointments repository.AppointmentRepository,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if cfg.PolicyCacheTTL <= 0 {
		cfg.PolicyCacheTTL = 5 * time.Minute
	}
	if cfg.PolicyCacheCleanup <= 0 {
		cfg.PolicyCacheCleanup = 10 * time.Minute
	}
	return &Service{
		schedules:    schedules,
		branches:     branches,
		appointments: appointments,
		policyCache:  cache.New(cfg.PolicyCacheTTL, cfg.PolicyCacheCleanup),
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
}

// GetAvailableSlots returns the bookable "HH:MM" slots for a service on a
// date. An empty list means the service is closed that weekday.
func (s *Service) GetAvailableSlots(ctx context.Context, serviceID uuid.UUID, date time.Time) ([]string, error) {
	schedules, err := s.schedules.ListForService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get service schedules: %w", err)
	}
	s.metrics.SlotComputations.Inc()
	return ComputeSlots(schedules, date), nil
}

// Reschedule validates the candidate slot for the appointment and, when
// accepted, persists the new scheduled timestamp together with its outbox
// event. A returned *Rejection is a user-facing outcome, not an
// infrastructure failure.
func (s *Service) Reschedule(ctx context.Context, appointmentID uuid.UUID, role string, req *model.RescheduleRequest) (*model.Appointment, *Rejection, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	policy, err := s.branchPolicy(ctx, appointment.BranchID)
	if err != nil {
		return nil, nil, err
	}

	schedules, err := s.schedules.ListForService(ctx, appointment.ServiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get service schedules: %w", err)
	}

	now := s.now()
	var candidateDate *time.Time
	if req.Date != "" {
		parsed, err := time.ParseInLocation(dateLayout, req.Date, now.Location())
		if err != nil {
			return nil, &Rejection{Kind: RejectMissingDate}, nil
		}
		candidateDate = &parsed
	}

	rejection := ValidateReschedule(ValidateInput{
		Date:      candidateDate,
		Time:      req.Time,
		Role:      role,
		Policy:    policy,
		Schedules: schedules,
		Now:       now,
	})
	if rejection != nil {
		s.metrics.RescheduleOutcomes.WithLabelValues(string(rejection.Kind)).Inc()
		return nil, rejection, nil
	}

	minutes, err := model.ParseClock(req.Time)
	if err != nil {
		return nil, &Rejection{Kind: RejectTimeNotAvailable}, nil
	}
	scheduledAt := time.Date(
		candidateDate.Year(), candidateDate.Month(), candidateDate.Day(),
		minutes/60, minutes%60, 0, 0, now.Location(),
	)

	event, err := rescheduleEvent(appointment, scheduledAt, req.Reason)
	if err != nil {
		return nil, nil, err
	}
	if err := s.appointments.Reschedule(ctx, appointmentID, scheduledAt, event); err != nil {
		return nil, nil, fmt.Errorf("failed to persist reschedule: %w", err)
	}

	s.metrics.RescheduleOutcomes.WithLabelValues("accepted").Inc()
	s.logger.Info("appointment rescheduled",
		"appointment_id", appointmentID.String(),
		"scheduled_at", scheduledAt.Format(time.RFC3339))

	appointment.ScheduledAt = scheduledAt
	return appointment, nil, nil
}

// branchPolicy resolves the branch policy through a short-lived cache;
// a nil policy (no row) is cached too, so unconfigured branches do not hit
// the database on every validation.
func (s *Service) branchPolicy(ctx context.Context, branchID uuid.UUID) (*model.BranchPolicy, error) {
	key := branchID.String()
	if cached, found := s.policyCache.Get(key); found {
		policy, _ := cached.(*model.BranchPolicy)
		return policy, nil
	}

	policy, err := s.branches.GetPolicy(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get branch policy: %w", err)
	}
	s.policyCache.Set(key, policy, cache.DefaultExpiration)
	return policy, nil
}

// InvalidatePolicy drops the cached policy after an admin update.
func (s *Service) InvalidatePolicy(branchID uuid.UUID) {
	s.policyCache.Delete(branchID.String())
}

func rescheduleEvent(appointment *model.Appointment, scheduledAt time.Time, reason string) (*model.OutboxEvent, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"appointment_id": appointment.ID,
		"branch_id":      appointment.BranchID,
		"service_id":     appointment.ServiceID,
		"old_time":       appointment.ScheduledAt,
		"new_time":       scheduledAt,
		"reason":         reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reschedule event: %w", err)
	}
	return &model.OutboxEvent{
		EventType: model.EventAppointmentRescheduled,
		Payload:   payload,
	}, nil
}
