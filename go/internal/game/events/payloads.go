package events

import (
	"github.com/mcdev12/codebattle/go/internal/models"
)

// Inbound payloads

type JoinRoomPayload struct {
	Username string `json:"username"`
	RoomCode string `json:"roomCode"`
}

type SelectCardPayload struct {
	CardID *string `json:"cardId"`
}

type SubmitSolutionPayload struct {
	CardID string `json:"cardId"`
	Code   string `json:"code"`
}

type ApplyTargetedDebuffPayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

// DebugTriggerRewardPayload fires a reward without solving a card.
type DebugTriggerRewardPayload struct {
	Kind      models.RewardKind  `json:"kind"`
	Scope     models.RewardScope `json:"scope"`
	Targeting models.Targeting   `json:"targeting,omitempty"`
	Magnitude int                `json:"magnitude"`
}

// Reward converts the payload into a reward, defaulting scope to self.
func (p DebugTriggerRewardPayload) Reward() models.Reward {
	r := models.Reward{
		Scope:     p.Scope,
		Kind:      p.Kind,
		Magnitude: p.Magnitude,
		Targeting: p.Targeting,
	}
	if r.Scope == "" {
		r.Scope = models.RewardScopeSelf
	}
	if r.Scope == models.RewardScopeOther && r.Targeting == "" {
		r.Targeting = models.TargetingRandom
	}
	return r
}

// Outbound payloads

type RoomJoinedPayload struct {
	PlayerID string   `json:"playerId"`
	Room     RoomView `json:"room"`
}

type PlayerJoinedPayload struct {
	PlayerID string   `json:"playerId"`
	Username string   `json:"username"`
	Room     RoomView `json:"room"`
}

type PlayerLeftPayload struct {
	PlayerID string   `json:"playerId"`
	Username string   `json:"username"`
	HostID   string   `json:"hostId"`
	Room     RoomView `json:"room"`
}

type GameStartedPayload struct {
	Players    []PlayerView `json:"players"`
	StartedAt  int64        `json:"startedAt"`
	ServerTime int64        `json:"serverTime"`
}

type CardSelectedPayload struct {
	PlayerID string  `json:"playerId"`
	CardID   *string `json:"cardId"`
}

type SolutionPassedPayload struct {
	PlayerID string       `json:"playerId"`
	CardID   string       `json:"cardId"`
	NewCard  *models.Card `json:"newCard,omitempty"`
}

type SolutionFailedPayload struct {
	PlayerID    string              `json:"playerId"`
	CardID      string              `json:"cardId"`
	Error       string              `json:"error"`
	TestResults []models.TestResult `json:"testResults"`
}

// TargetCandidate is one opponent offered in a targeted selection.
type TargetCandidate struct {
	PlayerID        string `json:"playerId"`
	Username        string `json:"username"`
	TimeRemainingMs int64  `json:"timeRemainingMs"`
}

type TargetSelectionRequiredPayload struct {
	RequestID        string            `json:"requestId"`
	AvailableTargets []TargetCandidate `json:"availableTargets"`
	Effect           models.RewardKind `json:"effect"`
	Value            int               `json:"value"`
}

type RewardAppliedPayload struct {
	PlayerID     string            `json:"playerId"`
	Effect       models.RewardKind `json:"effect"`
	Value        int               `json:"value"`
	FromPlayer   string            `json:"fromPlayer"`
	TimerEndTime *int64            `json:"timerEndTime,omitempty"`
	FrozenUntil  *int64            `json:"frozenUntil,omitempty"`
}

type PlayerEliminatedPayload struct {
	PlayerID     string `json:"playerId"`
	Username     string `json:"username"`
	EliminatedAt int64  `json:"eliminatedAt"`
}

// RankingEntry is a player's final standing.
type RankingEntry struct {
	Rank            int    `json:"rank"`
	PlayerID        string `json:"playerId"`
	Username        string `json:"username"`
	IsEliminated    bool   `json:"isEliminated"`
	TimeRemainingMs int64  `json:"timeRemainingMs"`
	EliminatedAt    *int64 `json:"eliminatedAt,omitempty"`
}

type GameEndedPayload struct {
	Winner     *string        `json:"winner"`
	WinnerName *string        `json:"winnerName"`
	Rankings   []RankingEntry `json:"rankings"`
}

type GameStatePayload struct {
	Room RoomView `json:"room"`
}

type ErrorPayload struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Event   EventType `json:"event,omitempty"`
}
