// Package relay forwards room lifecycle events to a message bus so other
// services can follow games without holding a websocket.
package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/rs/zerolog/log"
)

// Publisher writes a single event to the bus.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// Relay buffers events and publishes them from a single goroutine so room
// actors never wait on the bus.
type Relay struct {
	publisher Publisher
	queue     chan *events.Event
	timeout   time.Duration

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

func New(publisher Publisher, bufferSize int) *Relay {
	return &Relay{
		publisher: publisher,
		queue:     make(chan *events.Event, bufferSize),
		timeout:   5 * time.Second,
	}
}

// Relayed reports whether an event type is forwarded. Periodic full-state
// syncs stay on the websocket.
func Relayed(t events.EventType) bool {
	return t != events.EventTypeGameState && t != events.EventTypeError
}

// Enqueue schedules an event for publishing without blocking.
func (r *Relay) Enqueue(event *events.Event) {
	if !Relayed(event.Type) {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		log.Warn().
			Str("room_id", event.RoomID).
			Str("event_type", string(event.Type)).
			Msg("relay queue full, dropping event")
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is left.
func (r *Relay) Run(ctx context.Context) error {
	log.Info().Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			r.drain()
			log.Info().
				Int64("published", r.published.Load()).
				Int64("dropped", r.dropped.Load()).
				Int64("failed", r.failed.Load()).
				Msg("event relay stopped")
			return nil
		case event := <-r.queue:
			r.publish(context.Background(), event)
		}
	}
}

func (r *Relay) drain() {
	for {
		select {
		case event := <-r.queue:
			r.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, event *events.Event) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, event); err != nil {
		r.failed.Add(1)
		log.Error().
			Err(err).
			Str("room_id", event.RoomID).
			Str("event_type", string(event.Type)).
			Msg("failed to relay event")
		return
	}
	r.published.Add(1)
}

// Stats returns relay counters.
func (r *Relay) Stats() map[string]int64 {
	return map[string]int64{
		"published": r.published.Load(),
		"dropped":   r.dropped.Load(),
		"failed":    r.failed.Load(),
		"queued":    int64(len(r.queue)),
	}
}
