package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

const maxUsernameLength = 32

// Join adds a new player to a lobby room. The first player becomes host.
func (e *Engine) Join(room *models.Room, username string, now time.Time) (*models.Player, Delta, error) {
	var d Delta

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, d, fmt.Errorf("username is required: %w", ErrInvalidRequest)
	}
	if len(username) > maxUsernameLength {
		return nil, d, fmt.Errorf("username longer than %d characters: %w", maxUsernameLength, ErrInvalidRequest)
	}
	if room.Status != models.RoomStatusLobby {
		return nil, d, fmt.Errorf("room %s is %s: %w", room.ID, room.Status, ErrRoomClosed)
	}

	p := &models.Player{
		ID:       newID(),
		Username: username,
		Hand:     []models.Card{},
		JoinedAt: now,
	}
	room.Players[p.ID] = p
	room.JoinOrder = append(room.JoinOrder, p.ID)
	if room.HostID == "" {
		room.HostID = p.ID
	}

	log.Info().
		Str("room_id", room.ID).
		Str("player_id", p.ID).
		Str("username", p.Username).
		Int("players", len(room.Players)).
		Msg("player joined room")

	view := events.NewRoomView(room, now)
	d.unicast(p.ID, events.EventTypeRoomJoined, events.RoomJoinedPayload{PlayerID: p.ID, Room: view})
	d.broadcast(events.EventTypePlayerJoined, events.PlayerJoinedPayload{
		PlayerID: p.ID,
		Username: p.Username,
		Room:     view,
	})
	return p, d, nil
}

// Leave removes a player, promoting the next player to host when needed.
// The delta is marked Destroyed when the room becomes empty.
func (e *Engine) Leave(room *models.Room, playerID string, now time.Time) (Delta, error) {
	var d Delta

	p, ok := room.Players[playerID]
	if !ok {
		return d, ErrPlayerNotFound
	}

	room.RemovePlayer(playerID)
	delete(room.PendingTargets, playerID)

	log.Info().
		Str("room_id", room.ID).
		Str("player_id", playerID).
		Str("status", string(room.Status)).
		Int("players", len(room.Players)).
		Msg("player left room")

	if room.IsEmpty() {
		d.Destroyed = true
		return d, nil
	}

	if room.HostID == playerID {
		room.HostID = room.JoinOrder[0]
		log.Info().Str("room_id", room.ID).Str("host_id", room.HostID).Msg("host promoted")
	}

	d.broadcast(events.EventTypePlayerLeft, events.PlayerLeftPayload{
		PlayerID: playerID,
		Username: p.Username,
		HostID:   room.HostID,
		Room:     events.NewRoomView(room, now),
	})

	if room.Status == models.RoomStatusPlaying {
		e.checkGameOver(room, now, &d)
	}
	return d, nil
}

// Start deals hands, starts every countdown and moves the room to playing.
func (e *Engine) Start(room *models.Room, requesterID string, now time.Time) (Delta, error) {
	var d Delta

	if room.Status != models.RoomStatusLobby {
		return d, fmt.Errorf("start in %s: %w", room.Status, ErrInvalidStateTransition)
	}
	if requesterID != room.HostID {
		return d, ErrNotHost
	}
	if len(room.Players) < e.rules.MinPlayers {
		return d, fmt.Errorf("%d of %d players: %w", len(room.Players), e.rules.MinPlayers, ErrInsufficientPlayers)
	}

	deadline := now.Add(e.rules.BaseDuration)
	for _, p := range room.OrderedPlayers() {
		e.DealInitialHand(p, now)
		p.TimerEndTime = timePtr(deadline)
		p.IsEliminated = false
		p.EliminatedAt = nil
		p.ClearSelection()
	}
	room.Status = models.RoomStatusPlaying
	room.StartedAt = timePtr(now)

	log.Info().
		Str("room_id", room.ID).
		Int("players", len(room.Players)).
		Time("deadline", deadline).
		Msg("game started")

	d.Started = true
	d.broadcast(events.EventTypeGameStarted, events.GameStartedPayload{
		Players:    events.NewPlayerViews(room, now),
		StartedAt:  now.UnixMilli(),
		ServerTime: now.UnixMilli(),
	})
	return d, nil
}

// SelectCard sets or clears the player's selected card. Selecting a card that is
// not in hand, or selecting while eliminated, changes nothing. A player whose
// deadline has passed is eliminated instead.
func (e *Engine) SelectCard(room *models.Room, playerID string, cardID *string, now time.Time) (Delta, error) {
	var d Delta

	if room.Status != models.RoomStatusPlaying {
		return d, fmt.Errorf("select card in %s: %w", room.Status, ErrInvalidStateTransition)
	}
	p, ok := room.Players[playerID]
	if !ok {
		return d, ErrPlayerNotFound
	}
	if p.IsEliminated {
		return d, nil
	}
	if expired, gone := e.CheckExpiry(room, playerID, now); gone {
		return expired, fmt.Errorf("select card: %w", ErrPlayerEliminated)
	}

	if cardID == nil {
		p.ClearSelection()
	} else {
		idx := p.CardIndex(*cardID)
		if idx < 0 {
			return d, nil
		}
		p.SelectedCardID = stringPtr(*cardID)
		p.SelectedAt = timePtr(now)
		if p.Hand[idx].FirstSelectedAt == nil {
			p.Hand[idx].FirstSelectedAt = timePtr(now)
		}
	}

	d.broadcast(events.EventTypeCardSelected, events.CardSelectedPayload{
		PlayerID: playerID,
		CardID:   p.SelectedCardID,
	})
	return d, nil
}
