package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/queue-api/pkg/logger"
	"github.com/clinicflow/queue-api/pkg/messaging"
)

// Service publishes survey generation requests for completed visits. The
// queue state machine calls it fire-and-forget: a failed publish is logged
// here and never surfaces into the transition result.
type Service struct {
	broker  messaging.Broker
	channel string
	logger  *logger.Logger
}

func NewService(broker messaging.Broker, channel string, logger *logger.Logger) *Service {
	return &Service{broker: broker, channel: channel, logger: logger}
}

type surveyRequest struct {
	QueueEntryID  uuid.UUID `json:"queue_entry_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	RequestedAt   time.Time `json:"requested_at"`
}

func (s *Service) Trigger(ctx context.Context, queueEntryID, appointmentID uuid.UUID) error {
	payload, err := json.Marshal(surveyRequest{
		QueueEntryID:  queueEntryID,
		AppointmentID: appointmentID,
		RequestedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal survey request: %w", err)
	}

	if err := s.broker.Publish(ctx, s.channel, json.RawMessage(payload)); err != nil {
		return fmt.Errorf("failed to publish survey request: %w", err)
	}

	s.logger.Debug("survey generation requested",
		"queue_entry_id", queueEntryID.String(),
		"appointment_id", appointmentID.String())
	return nil
}
