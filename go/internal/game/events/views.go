package events

import (
	"time"

	"github.com/mcdev12/codebattle/go/internal/models"
)

// PlayerView is the client projection of a player. Times are epoch milliseconds.
type PlayerView struct {
	ID              string        `json:"id"`
	Username        string        `json:"username"`
	IsHost          bool          `json:"isHost"`
	Hand            []models.Card `json:"hand"`
	TimerEndTime    *int64        `json:"timerEndTime"`
	TimeRemainingMs int64         `json:"timeRemainingMs"`
	IsEliminated    bool          `json:"isEliminated"`
	EliminatedAt    *int64        `json:"eliminatedAt,omitempty"`
	SelectedCardID  *string       `json:"selectedCardId"`
	FrozenUntil     *int64        `json:"frozenUntil,omitempty"`
}

// RoomView is the full-state snapshot used for game_state and resync.
type RoomView struct {
	ID         string            `json:"roomId"`
	HostID     string            `json:"hostId"`
	Status     models.RoomStatus `json:"status"`
	Players    []PlayerView      `json:"players"`
	WinnerID   *string           `json:"winnerId,omitempty"`
	StartedAt  *int64            `json:"startedAt,omitempty"`
	EndedAt    *int64            `json:"endedAt,omitempty"`
	ServerTime int64             `json:"serverTime"`
}

// RoomSummary is the compact listing entry for active rooms.
type RoomSummary struct {
	ID          string            `json:"roomId"`
	Status      models.RoomStatus `json:"status"`
	HostID      string            `json:"hostId"`
	PlayerCount int               `json:"playerCount"`
	ActiveCount int               `json:"activeCount"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Millis converts an optional time to epoch milliseconds.
func Millis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// NewPlayerView projects a player at the given instant.
func NewPlayerView(p *models.Player, hostID string, now time.Time) PlayerView {
	hand := p.Hand
	if hand == nil {
		hand = []models.Card{}
	}
	return PlayerView{
		ID:              p.ID,
		Username:        p.Username,
		IsHost:          p.ID == hostID,
		Hand:            hand,
		TimerEndTime:    Millis(p.TimerEndTime),
		TimeRemainingMs: p.TimeRemaining(now).Milliseconds(),
		IsEliminated:    p.IsEliminated,
		EliminatedAt:    Millis(p.EliminatedAt),
		SelectedCardID:  p.SelectedCardID,
		FrozenUntil:     Millis(p.FrozenUntil),
	}
}

// NewPlayerViews projects every player in join order.
func NewPlayerViews(room *models.Room, now time.Time) []PlayerView {
	players := room.OrderedPlayers()
	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, NewPlayerView(p, room.HostID, now))
	}
	return views
}

// NewRoomView projects the whole room.
func NewRoomView(room *models.Room, now time.Time) RoomView {
	return RoomView{
		ID:         room.ID,
		HostID:     room.HostID,
		Status:     room.Status,
		Players:    NewPlayerViews(room, now),
		WinnerID:   room.WinnerID,
		StartedAt:  Millis(room.StartedAt),
		EndedAt:    Millis(room.EndedAt),
		ServerTime: now.UnixMilli(),
	}
}

// NewRoomSummary builds a listing entry.
func NewRoomSummary(room *models.Room) RoomSummary {
	return RoomSummary{
		ID:          room.ID,
		Status:      room.Status,
		HostID:      room.HostID,
		PlayerCount: len(room.Players),
		ActiveCount: len(room.ActivePlayers()),
		CreatedAt:   room.CreatedAt,
	}
}
