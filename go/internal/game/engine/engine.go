// Package engine implements the rules of a code battle room. Every function
// mutates the room it is given and reports what clients must be told as a
// Delta; callers are responsible for serializing access to a room.
package engine

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/codebattle/go/internal/catalog"
	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/models"
)

// Rules are the tunable game constants.
type Rules struct {
	HandSize     int
	BaseDuration time.Duration
	MinPlayers   int
}

// DefaultRules returns the standard five-card, five-minute game.
func DefaultRules() Rules {
	return Rules{
		HandSize:     5,
		BaseDuration: 300 * time.Second,
		MinPlayers:   2,
	}
}

// Audience says who receives an outbound event.
type Audience int

const (
	AudienceRoom Audience = iota
	AudiencePlayer
)

// Outbound is one event to deliver after a state change.
type Outbound struct {
	Audience Audience
	PlayerID string
	Type     events.EventType
	Payload  any
}

// Delta is the result of applying one action to a room.
type Delta struct {
	Events    []Outbound
	Started   bool
	Ended     bool
	Destroyed bool
}

func (d *Delta) broadcast(t events.EventType, payload any) {
	d.Events = append(d.Events, Outbound{Audience: AudienceRoom, Type: t, Payload: payload})
}

func (d *Delta) unicast(playerID string, t events.EventType, payload any) {
	d.Events = append(d.Events, Outbound{Audience: AudiencePlayer, PlayerID: playerID, Type: t, Payload: payload})
}

// merge appends o's events and flags to d.
func (d *Delta) merge(o Delta) {
	d.Events = append(d.Events, o.Events...)
	d.Started = d.Started || o.Started
	d.Ended = d.Ended || o.Ended
	d.Destroyed = d.Destroyed || o.Destroyed
}

// Has reports whether the delta contains an event of the given type.
func (d Delta) Has(t events.EventType) bool {
	for _, e := range d.Events {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Engine applies game rules. It is safe for concurrent use across rooms.
type Engine struct {
	rules Rules
	deck  *catalog.Catalog

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates an engine. A nil rng seeds a random source.
func New(rules Rules, deck *catalog.Catalog, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{rules: rules, deck: deck, rng: rng}
}

// IntN implements catalog.Random under a lock so rooms can share the source.
func (e *Engine) IntN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

func newID() string {
	return uuid.New().String()
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(s string) *string {
	return &s
}

func gameState(room *models.Room, now time.Time) events.GameStatePayload {
	return events.GameStatePayload{Room: events.NewRoomView(room, now)}
}

// Snapshot returns the full room projection.
func (e *Engine) Snapshot(room *models.Room, now time.Time) events.RoomView {
	return events.NewRoomView(room, now)
}

// StateSync produces a game_state broadcast.
func (e *Engine) StateSync(room *models.Room, now time.Time) Delta {
	var d Delta
	d.broadcast(events.EventTypeGameState, gameState(room, now))
	return d
}

// StateFor produces a game_state sent only to one player.
func (e *Engine) StateFor(room *models.Room, playerID string, now time.Time) Delta {
	var d Delta
	d.unicast(playerID, events.EventTypeGameState, gameState(room, now))
	return d
}
