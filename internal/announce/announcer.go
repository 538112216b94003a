package announce

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinicflow/queue-api/pkg/messaging"
)

// Tone kinds a deployment can map onto actual sounds.
const (
	ToneCalled = "called"
	ToneAlert  = "alert"
)

// Announcer is the injected announcement boundary. Implementations decide
// what "playing" means (publish to a display channel, drive a speaker
// daemon); callers only state intent. Construction takes an explicit
// Config, there is no process-wide audio state.
type Announcer interface {
	PlayTone(ctx context.Context, kind string) error
	Speak(ctx context.Context, text string) error
}

// Config holds voice parameters passed at construction.
type Config struct {
	Volume float64 `mapstructure:"volume"`
	Rate   float64 `mapstructure:"rate"`
	Pitch  float64 `mapstructure:"pitch"`
}

func DefaultConfig() Config {
	return Config{Volume: 1.0, Rate: 1.0, Pitch: 1.0}
}

// BrokerAnnouncer publishes announcement events to a messaging channel;
// the realtime display/audio consumers downstream do the actual playback.
type BrokerAnnouncer struct {
	broker  messaging.Broker
	channel string
	config  Config
}

func NewBrokerAnnouncer(broker messaging.Broker, channel string, config Config) *BrokerAnnouncer {
	return &BrokerAnnouncer{broker: broker, channel: channel, config: config}
}

type announcement struct {
	Kind   string  `json:"kind"`
	Tone   string  `json:"tone,omitempty"`
	Text   string  `json:"text,omitempty"`
	Volume float64 `json:"volume"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
}

func (a *BrokerAnnouncer) PlayTone(ctx context.Context, kind string) error {
	return a.publish(ctx, announcement{Kind: "tone", Tone: kind})
}

func (a *BrokerAnnouncer) Speak(ctx context.Context, text string) error {
	return a.publish(ctx, announcement{Kind: "speech", Text: text})
}

func (a *BrokerAnnouncer) publish(ctx context.Context, msg announcement) error {
	msg.Volume = a.config.Volume
	msg.Rate = a.config.Rate
	msg.Pitch = a.config.Pitch

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}
	return a.broker.Publish(ctx, a.channel, json.RawMessage(payload))
}

// Noop discards announcements; used in tests and headless deployments.
type Noop struct{}

func (Noop) PlayTone(context.Context, string) error { return nil }
func (Noop) Speak(context.Context, string) error    { return nil }
