package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sketchturn/go/internal/session"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// Publisher is an interface that defines our publisher.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Envelope is the message body written to the stream
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType events.Type     `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type Config struct {
	SubjectPrefix  string
	BufferSize     int
	PublishTimeout time.Duration
	Clock          clockwork.Clock
}

func DefaultConfig() Config {
	return Config{
		SubjectPrefix:  DefaultJetStreamConfig().SubjectPrefix,
		BufferSize:     1024,
		PublishTimeout: 5 * time.Second,
		Clock:          clockwork.NewRealClock(),
	}
}

// Relay is a session.Broadcaster that forwards everything to the wrapped
// broadcaster and mirrors room-wide events to a Publisher. Point-to-point
// sends are not mirrored.
type Relay struct {
	next      session.Broadcaster
	publisher Publisher
	cfg       Config
	queue     chan Envelope
	dropped   atomic.Int64
}

var _ session.Broadcaster = (*Relay)(nil)

func New(next session.Broadcaster, publisher Publisher, cfg Config) *Relay {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	return &Relay{
		next:      next,
		publisher: publisher,
		cfg:       cfg,
		queue:     make(chan Envelope, cfg.BufferSize),
	}
}

func (r *Relay) Broadcast(evt events.Event) {
	r.next.Broadcast(evt)
	r.mirror(evt)
}

func (r *Relay) BroadcastExcept(connID string, evt events.Event) {
	r.next.BroadcastExcept(connID, evt)
	r.mirror(evt)
}

func (r *Relay) Send(connID string, evt events.Event) {
	r.next.Send(connID, evt)
}

// Dropped reports how many events were discarded because the queue was full.
func (r *Relay) Dropped() int64 {
	return r.dropped.Load()
}

// Run publishes queued events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	log.Info().Str("subject_prefix", r.cfg.SubjectPrefix).Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("dropped", r.Dropped()).Msg("event relay stopped")
			return
		case env := <-r.queue:
			r.publish(ctx, env)
		}
	}
}

func (r *Relay) mirror(evt events.Event) {
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(evt.Type)).Msg("failed to marshal relay payload")
		return
	}
	env := Envelope{
		EventID:   uuid.New().String(),
		EventType: evt.Type,
		Timestamp: r.cfg.Clock.Now().UTC(),
		Payload:   payload,
	}
	select {
	case r.queue <- env:
	default:
		r.dropped.Add(1)
		log.Warn().Str("event_type", string(evt.Type)).Msg("relay queue full, dropping event")
	}
}

func (r *Relay) publish(ctx context.Context, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal relay envelope")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()

	subject := Subject(r.cfg.SubjectPrefix, env.EventType)
	if err := r.publisher.Publish(ctx, subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Str("event_id", env.EventID).
			Msg("failed to publish event")
		return
	}
	log.Debug().Str("subject", subject).Int("size", len(data)).Msg("event published")
}

// Subject is the stream subject an event type is published on.
func Subject(prefix string, t events.Type) string {
	return fmt.Sprintf("%s.%s", prefix, t)
}
