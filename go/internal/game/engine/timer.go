package engine

import (
	"sort"
	"time"

	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Tick eliminates every player whose deadline has passed and ends the game
// once at most one player remains.
func (e *Engine) Tick(room *models.Room, now time.Time) Delta {
	var d Delta
	if room.Status != models.RoomStatusPlaying {
		return d
	}

	for _, p := range room.OrderedPlayers() {
		if p.IsExpired(now) {
			e.eliminate(room, p, now, &d)
		}
	}
	e.checkGameOver(room, now, &d)
	return d
}

// CheckExpiry eliminates a single player if their deadline has passed. It
// reports whether the player is (now) eliminated.
func (e *Engine) CheckExpiry(room *models.Room, playerID string, now time.Time) (Delta, bool) {
	var d Delta
	p, ok := room.Players[playerID]
	if !ok || room.Status != models.RoomStatusPlaying {
		return d, false
	}
	if p.IsEliminated {
		return d, true
	}
	if !p.IsExpired(now) {
		return d, false
	}
	e.eliminate(room, p, now, &d)
	e.checkGameOver(room, now, &d)
	return d, true
}

// ConfirmElimination handles a client's claim that its countdown ran out. The
// claim is honored only if the server deadline agrees; otherwise the client is
// resynchronized with a game_state.
func (e *Engine) ConfirmElimination(room *models.Room, playerID string, now time.Time) (Delta, error) {
	if room.Status != models.RoomStatusPlaying {
		return Delta{}, ErrInvalidStateTransition
	}
	if _, ok := room.Players[playerID]; !ok {
		return Delta{}, ErrPlayerNotFound
	}

	d, eliminated := e.CheckExpiry(room, playerID, now)
	if eliminated {
		return d, nil
	}

	log.Debug().
		Str("room_id", room.ID).
		Str("player_id", playerID).
		Msg("ignoring premature elimination hint")
	return e.StateFor(room, playerID, now), nil
}

func (e *Engine) eliminate(room *models.Room, p *models.Player, now time.Time, d *Delta) {
	p.IsEliminated = true
	p.EliminatedAt = timePtr(now)
	p.FinalDeadline = p.TimerEndTime
	p.TimerEndTime = nil
	p.FrozenUntil = nil
	p.ClearSelection()
	delete(room.PendingTargets, p.ID)

	log.Info().
		Str("room_id", room.ID).
		Str("player_id", p.ID).
		Msg("player eliminated")

	d.broadcast(events.EventTypePlayerEliminated, events.PlayerEliminatedPayload{
		PlayerID:     p.ID,
		Username:     p.Username,
		EliminatedAt: now.UnixMilli(),
	})
}

// checkGameOver ends the room when at most one player is still active.
func (e *Engine) checkGameOver(room *models.Room, now time.Time, d *Delta) {
	if room.Status != models.RoomStatusPlaying {
		return
	}
	active := room.ActivePlayers()
	if len(active) > 1 {
		return
	}

	room.Status = models.RoomStatusEnded
	room.EndedAt = timePtr(now)
	room.PendingTargets = make(map[string][]*models.TargetRequest)

	payload := events.GameEndedPayload{Rankings: e.Rankings(room, now)}
	if len(active) == 1 {
		room.WinnerID = stringPtr(active[0].ID)
		payload.Winner = stringPtr(active[0].ID)
		payload.WinnerName = stringPtr(active[0].Username)
	}

	log.Info().
		Str("room_id", room.ID).
		Int("survivors", len(active)).
		Msg("game ended")

	d.Ended = true
	d.broadcast(events.EventTypeGameEnded, payload)
}

// Rankings orders players best first: survivors before the eliminated, survivors
// by remaining time, the eliminated by how late they went out.
func (e *Engine) Rankings(room *models.Room, now time.Time) []events.RankingEntry {
	players := room.OrderedPlayers()
	sort.SliceStable(players, func(i, j int) bool {
		return rankBefore(room, players[i], players[j], now)
	})

	out := make([]events.RankingEntry, 0, len(players))
	for i, p := range players {
		out = append(out, events.RankingEntry{
			Rank:            i + 1,
			PlayerID:        p.ID,
			Username:        p.Username,
			IsEliminated:    p.IsEliminated,
			TimeRemainingMs: p.TimeRemaining(now).Milliseconds(),
			EliminatedAt:    events.Millis(p.EliminatedAt),
		})
	}
	return out
}

func rankBefore(room *models.Room, a, b *models.Player, now time.Time) bool {
	if a.IsEliminated != b.IsEliminated {
		return !a.IsEliminated
	}
	if !a.IsEliminated {
		ra, rb := a.TimeRemaining(now), b.TimeRemaining(now)
		if ra != rb {
			return ra > rb
		}
	} else if !a.EliminatedAt.Equal(*b.EliminatedAt) {
		return a.EliminatedAt.After(*b.EliminatedAt)
	}

	da, db := deadlineOf(a), deadlineOf(b)
	if !da.Equal(db) {
		return da.After(db)
	}
	return room.JoinIndex(a.ID) < room.JoinIndex(b.ID)
}

func deadlineOf(p *models.Player) time.Time {
	switch {
	case p.TimerEndTime != nil:
		return *p.TimerEndTime
	case p.FinalDeadline != nil:
		return *p.FinalDeadline
	default:
		return time.Time{}
	}
}
