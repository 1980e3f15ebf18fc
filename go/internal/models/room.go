package models

import (
	"time"
)

// RoomStatus defines the lifecycle stage of a room.
type RoomStatus string

const (
	RoomStatusLobby   RoomStatus = "lobby"
	RoomStatusPlaying RoomStatus = "playing"
	RoomStatusEnded   RoomStatus = "ended"
)

// Room is the authoritative state of one game session.
type Room struct {
	ID        string             `json:"id"`
	HostID    string             `json:"hostId"`
	Status    RoomStatus         `json:"status"`
	Players   map[string]*Player `json:"players"`
	JoinOrder []string           `json:"joinOrder"`
	WinnerID  *string            `json:"winnerId,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	StartedAt *time.Time         `json:"startedAt,omitempty"`
	EndedAt   *time.Time         `json:"endedAt,omitempty"`

	// PendingTargets holds the FIFO queue of unresolved targeted rewards per source player.
	PendingTargets map[string][]*TargetRequest `json:"-"`
}

// NewRoom creates an empty lobby room.
func NewRoom(id string, now time.Time) *Room {
	return &Room{
		ID:             id,
		Status:         RoomStatusLobby,
		Players:        make(map[string]*Player),
		CreatedAt:      now,
		PendingTargets: make(map[string][]*TargetRequest),
	}
}

// OrderedPlayers returns the room's players in join order.
func (r *Room) OrderedPlayers() []*Player {
	out := make([]*Player, 0, len(r.JoinOrder))
	for _, id := range r.JoinOrder {
		if p, ok := r.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ActivePlayers returns the non-eliminated players in join order.
func (r *Room) ActivePlayers() []*Player {
	var out []*Player
	for _, p := range r.OrderedPlayers() {
		if !p.IsEliminated {
			out = append(out, p)
		}
	}
	return out
}

// JoinIndex returns the position of a player in join order, or -1.
func (r *Room) JoinIndex(playerID string) int {
	for i, id := range r.JoinOrder {
		if id == playerID {
			return i
		}
	}
	return -1
}

// RemovePlayer deletes a player from the room and from the join order.
func (r *Room) RemovePlayer(playerID string) {
	delete(r.Players, playerID)
	if i := r.JoinIndex(playerID); i >= 0 {
		r.JoinOrder = append(r.JoinOrder[:i], r.JoinOrder[i+1:]...)
	}
}

// IsEmpty reports whether no players remain.
func (r *Room) IsEmpty() bool {
	return len(r.Players) == 0
}

// TargetRequest is a targeted reward waiting for its source player to pick a victim.
type TargetRequest struct {
	ID               string     `json:"id"`
	RoomID           string     `json:"roomId"`
	SourcePlayerID   string     `json:"sourcePlayerId"`
	Kind             RewardKind `json:"kind"`
	Magnitude        int        `json:"magnitude"`
	CandidateTargets []string   `json:"candidateTargets"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// IsCandidate reports whether playerID was offered as a target.
func (t *TargetRequest) IsCandidate(playerID string) bool {
	for _, id := range t.CandidateTargets {
		if id == playerID {
			return true
		}
	}
	return false
}
