package models

import (
	"time"
)

// Player is a participant in a room. A nil TimerEndTime means the player
// has not started yet or has been eliminated.
type Player struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Hand           []Card     `json:"hand"`
	TimerEndTime   *time.Time `json:"timerEndTime,omitempty"`
	IsEliminated   bool       `json:"isEliminated"`
	EliminatedAt   *time.Time `json:"eliminatedAt,omitempty"`
	SelectedCardID *string    `json:"selectedCardId,omitempty"`
	SelectedAt     *time.Time `json:"selectedAt,omitempty"`
	FrozenUntil    *time.Time `json:"frozenUntil,omitempty"`
	JoinedAt       time.Time  `json:"joinedAt"`

	// FinalDeadline is the deadline the player held when eliminated, used for ranking ties.
	FinalDeadline *time.Time `json:"-"`
}

// CardIndex returns the index of the card in the player's hand, or -1.
func (p *Player) CardIndex(cardID string) int {
	for i := range p.Hand {
		if p.Hand[i].ID == cardID {
			return i
		}
	}
	return -1
}

// Card returns the card with the given id from the player's hand.
func (p *Player) Card(cardID string) (Card, bool) {
	if i := p.CardIndex(cardID); i >= 0 {
		return p.Hand[i], true
	}
	return Card{}, false
}

// ProblemIDs returns the set of problem ids currently in hand.
func (p *Player) ProblemIDs() map[string]bool {
	ids := make(map[string]bool, len(p.Hand))
	for _, c := range p.Hand {
		ids[c.Problem.ID] = true
	}
	return ids
}

// TimeRemaining is the time left before the player's deadline, never negative.
func (p *Player) TimeRemaining(now time.Time) time.Duration {
	if p.TimerEndTime == nil {
		return 0
	}
	if d := p.TimerEndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IsExpired reports whether an active player's deadline has been reached.
func (p *Player) IsExpired(now time.Time) bool {
	return !p.IsEliminated && p.TimerEndTime != nil && !now.Before(*p.TimerEndTime)
}

// ClearSelection drops the current card selection.
func (p *Player) ClearSelection() {
	p.SelectedCardID = nil
	p.SelectedAt = nil
}
