package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names an inbound or outbound protocol message.
type EventType string

// Inbound events sent by clients.
const (
	EventTypeJoinRoom            EventType = "join_room"
	EventTypeLeaveRoom           EventType = "leave_room"
	EventTypeStartGame           EventType = "start_game"
	EventTypeSelectCard          EventType = "select_card"
	EventTypeSubmitSolution      EventType = "submit_solution"
	EventTypeApplyTargetedDebuff EventType = "apply_targeted_debuff"
	EventTypeGetGameState        EventType = "get_game_state"
	EventTypeDebugTriggerReward  EventType = "debug_trigger_reward"
)

// Outbound events sent by the server. player_eliminated flows both ways.
const (
	EventTypeRoomJoined              EventType = "room_joined"
	EventTypePlayerJoined            EventType = "player_joined"
	EventTypePlayerLeft              EventType = "player_left"
	EventTypeGameStarted             EventType = "game_started"
	EventTypeCardSelected            EventType = "card_selected"
	EventTypeSolutionPassed          EventType = "solution_passed"
	EventTypeSolutionFailed          EventType = "solution_failed"
	EventTypeTargetSelectionRequired EventType = "target_selection_required"
	EventTypeRewardApplied           EventType = "reward_applied"
	EventTypePlayerEliminated        EventType = "player_eliminated"
	EventTypeGameEnded               EventType = "game_ended"
	EventTypeGameState               EventType = "game_state"
	EventTypeError                   EventType = "error"
)

// Event is the envelope for every server-to-client message.
type Event struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"roomId"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps a payload in an envelope.
func NewEvent(roomID string, eventType EventType, payload any, at time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// ClientMessage is the envelope for every client-to-server message.
type ClientMessage struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeData unmarshals a message payload into T. An absent payload yields the zero value.
func DecodeData[T any](data json.RawMessage) (T, error) {
	var out T
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

// ParseEventPayload decodes the data of an outbound event into its payload struct.
func ParseEventPayload(event *Event) (any, error) {
	switch event.Type {
	case EventTypeRoomJoined:
		return DecodeData[RoomJoinedPayload](event.Data)
	case EventTypePlayerJoined:
		return DecodeData[PlayerJoinedPayload](event.Data)
	case EventTypePlayerLeft:
		return DecodeData[PlayerLeftPayload](event.Data)
	case EventTypeGameStarted:
		return DecodeData[GameStartedPayload](event.Data)
	case EventTypeCardSelected:
		return DecodeData[CardSelectedPayload](event.Data)
	case EventTypeSolutionPassed:
		return DecodeData[SolutionPassedPayload](event.Data)
	case EventTypeSolutionFailed:
		return DecodeData[SolutionFailedPayload](event.Data)
	case EventTypeTargetSelectionRequired:
		return DecodeData[TargetSelectionRequiredPayload](event.Data)
	case EventTypeRewardApplied:
		return DecodeData[RewardAppliedPayload](event.Data)
	case EventTypePlayerEliminated:
		return DecodeData[PlayerEliminatedPayload](event.Data)
	case EventTypeGameEnded:
		return DecodeData[GameEndedPayload](event.Data)
	case EventTypeGameState:
		return DecodeData[GameStatePayload](event.Data)
	case EventTypeError:
		return DecodeData[ErrorPayload](event.Data)
	default:
		return nil, nil
	}
}
