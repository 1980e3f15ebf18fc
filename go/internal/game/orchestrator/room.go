package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/codebattle/go/internal/game/engine"
	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

var errRoomStopped = fmt.Errorf("room stopped: %w", engine.ErrRoomNotFound)

// roomActor owns one room. All fields are touched only from run.
type roomActor struct {
	m     *Manager
	room  *models.Room
	inbox chan func()
	done  chan struct{}

	ticker clockwork.Ticker
	ticks  int

	// inFlight marks players with a submission at the judge.
	inFlight map[string]bool
	// disconnected marks players whose connection dropped during play. They
	// are removed once the game ends.
	disconnected map[string]bool
}

func (a *roomActor) run(ctx context.Context) {
	defer a.m.actors.Done()
	defer close(a.done)
	defer a.m.removeRoom(a)
	defer a.stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-a.inbox:
			fn()
		case <-a.tickC():
			a.tick()
		}
		if a.room.IsEmpty() {
			log.Info().Str("room_id", a.room.ID).Msg("room empty, shutting down")
			return
		}
	}
}

// do runs fn on the room goroutine and waits for it.
func (a *roomActor) do(ctx context.Context, fn func(now time.Time) error) error {
	errCh := make(chan error, 1)
	task := func() { errCh <- fn(a.m.clock.Now()) }

	select {
	case a.inbox <- task:
	case <-a.done:
		return errRoomStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the room goroutine without waiting for it to run.
func (a *roomActor) post(ctx context.Context, fn func(now time.Time)) bool {
	select {
	case a.inbox <- func() { fn(a.m.clock.Now()) }:
		return true
	case <-a.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (a *roomActor) tickC() <-chan time.Time {
	if a.ticker == nil {
		return nil
	}
	return a.ticker.Chan()
}

func (a *roomActor) startTicker() {
	if a.ticker != nil {
		return
	}
	a.ticker = a.m.clock.NewTicker(a.m.cfg.TickInterval)
	a.ticks = 0
	log.Debug().Str("room_id", a.room.ID).Dur("interval", a.m.cfg.TickInterval).Msg("room ticker started")
}

func (a *roomActor) stopTicker() {
	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	a.ticker = nil
	log.Debug().Str("room_id", a.room.ID).Msg("room ticker stopped")
}

func (a *roomActor) syncEvery() int {
	cfg := a.m.cfg
	if cfg.StateSyncInterval <= 0 || cfg.TickInterval <= 0 {
		return 0
	}
	n := int(cfg.StateSyncInterval / cfg.TickInterval)
	if n < 1 {
		n = 1
	}
	return n
}

func (a *roomActor) tick() {
	now := a.m.clock.Now()
	delta := a.m.engine.Tick(a.room, now)

	a.ticks++
	if every := a.syncEvery(); every > 0 && a.ticks%every == 0 && a.room.Status == models.RoomStatusPlaying {
		sync := a.m.engine.StateSync(a.room, now)
		delta.Events = append(delta.Events, sync.Events...)
	}
	a.emit(delta, now)
}

// credit applies a judge verdict to the room.
func (a *roomActor) credit(playerID, cardID string, result models.JudgeResult, now time.Time) {
	delete(a.inFlight, playerID)
	a.emit(a.m.engine.OnSolutionJudged(a.room, playerID, cardID, result, now), now)
}

// emit delivers a delta's events and reacts to lifecycle changes.
func (a *roomActor) emit(delta engine.Delta, now time.Time) {
	for _, out := range delta.Events {
		event, err := events.NewEvent(a.room.ID, out.Type, out.Payload, now)
		if err != nil {
			log.Error().Err(err).Str("room_id", a.room.ID).Msg("failed to build event")
			continue
		}

		switch out.Audience {
		case engine.AudiencePlayer:
			a.m.broadcaster.SendToPlayer(a.room.ID, out.PlayerID, event)
		default:
			a.m.broadcaster.BroadcastToRoom(a.room.ID, event)
			if a.m.sink != nil {
				a.m.sink.Enqueue(event)
			}
		}
	}

	if delta.Started {
		a.startTicker()
	}
	if delta.Ended {
		a.stopTicker()
		a.inFlight = make(map[string]bool)
		a.dropDisconnected(now)
	}
}

// dropDisconnected turns every disconnect seen during play into a leave.
func (a *roomActor) dropDisconnected(now time.Time) {
	if len(a.disconnected) == 0 {
		return
	}
	gone := a.disconnected
	a.disconnected = make(map[string]bool)

	order := append([]string(nil), a.room.JoinOrder...)
	for _, pid := range order {
		if !gone[pid] {
			continue
		}
		delta, err := a.m.engine.Leave(a.room, pid, now)
		if err != nil {
			continue
		}
		log.Info().Str("room_id", a.room.ID).Str("player_id", pid).Msg("removed disconnected player after game end")
		a.emit(delta, now)
	}
}
