package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/codebattle/go/internal/game/engine"
	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/game/orchestrator"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

// GameService is the room orchestrator as seen by the gateway.
type GameService interface {
	Join(ctx context.Context, req orchestrator.JoinRequest) (orchestrator.JoinResult, error)
	Leave(ctx context.Context, roomID, playerID string) error
	Disconnect(ctx context.Context, roomID, playerID string) error
	Start(ctx context.Context, roomID, playerID string) error
	SelectCard(ctx context.Context, roomID, playerID string, cardID *string) error
	Submit(ctx context.Context, roomID, playerID, cardID, code string) error
	ReportElimination(ctx context.Context, roomID, playerID string) error
	ApplyTargetedDebuff(ctx context.Context, roomID, playerID, targetID string) error
	GetGameState(ctx context.Context, roomID, playerID string) error
	DebugTriggerReward(ctx context.Context, roomID, playerID string, reward models.Reward) error
}

// Dispatcher turns client messages into game operations. Failures are
// reported to the originating connection only.
type Dispatcher struct {
	game        GameService
	connections *ConnectionManager
	timeout     time.Duration
}

func NewDispatcher(game GameService, cm *ConnectionManager, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{game: game, connections: cm, timeout: timeout}
}

// HandleMessage implements MessageHandler.
func (d *Dispatcher) HandleMessage(c *Connection, message []byte) {
	var msg events.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		d.sendError(c, "", fmt.Errorf("malformed message: %w", engine.ErrInvalidRequest))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.dispatch(ctx, c, msg); err != nil {
		roomID, playerID := d.connections.Binding(c)
		log.Debug().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", playerID).
			Str("event_type", string(msg.Type)).
			Msg("client request rejected")
		d.sendError(c, msg.Type, err)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, c *Connection, msg events.ClientMessage) error {
	roomID, playerID := d.connections.Binding(c)

	if msg.Type == events.EventTypeJoinRoom {
		if playerID != "" {
			return fmt.Errorf("already in room %s: %w", roomID, engine.ErrInvalidStateTransition)
		}
		payload, err := events.DecodeData[events.JoinRoomPayload](msg.Data)
		if err != nil {
			return fmt.Errorf("%v: %w", err, engine.ErrInvalidRequest)
		}
		_, err = d.game.Join(ctx, orchestrator.JoinRequest{
			Username: payload.Username,
			RoomCode: payload.RoomCode,
			OnJoined: func(roomID, playerID string) {
				d.connections.Bind(c, roomID, playerID)
			},
		})
		return err
	}

	if playerID == "" {
		return fmt.Errorf("%s before join_room: %w", msg.Type, engine.ErrInvalidStateTransition)
	}

	switch msg.Type {
	case events.EventTypeLeaveRoom:
		err := d.game.Leave(ctx, roomID, playerID)
		if err == nil || errors.Is(err, engine.ErrRoomNotFound) || errors.Is(err, engine.ErrPlayerNotFound) {
			d.connections.Unbind(c)
			return nil
		}
		return err

	case events.EventTypeStartGame:
		return d.game.Start(ctx, roomID, playerID)

	case events.EventTypeSelectCard:
		payload, err := events.DecodeData[events.SelectCardPayload](msg.Data)
		if err != nil {
			return fmt.Errorf("%v: %w", err, engine.ErrInvalidRequest)
		}
		return d.game.SelectCard(ctx, roomID, playerID, payload.CardID)

	case events.EventTypeSubmitSolution:
		payload, err := events.DecodeData[events.SubmitSolutionPayload](msg.Data)
		if err != nil {
			return fmt.Errorf("%v: %w", err, engine.ErrInvalidRequest)
		}
		if payload.CardID == "" {
			return fmt.Errorf("cardId is required: %w", engine.ErrInvalidRequest)
		}
		return d.game.Submit(ctx, roomID, playerID, payload.CardID, payload.Code)

	case events.EventTypePlayerEliminated:
		return d.game.ReportElimination(ctx, roomID, playerID)

	case events.EventTypeApplyTargetedDebuff:
		payload, err := events.DecodeData[events.ApplyTargetedDebuffPayload](msg.Data)
		if err != nil {
			return fmt.Errorf("%v: %w", err, engine.ErrInvalidRequest)
		}
		if strings.TrimSpace(payload.TargetPlayerID) == "" {
			return fmt.Errorf("targetPlayerId is required: %w", engine.ErrInvalidTarget)
		}
		return d.game.ApplyTargetedDebuff(ctx, roomID, playerID, payload.TargetPlayerID)

	case events.EventTypeGetGameState:
		return d.game.GetGameState(ctx, roomID, playerID)

	case events.EventTypeDebugTriggerReward:
		payload, err := events.DecodeData[events.DebugTriggerRewardPayload](msg.Data)
		if err != nil {
			return fmt.Errorf("%v: %w", err, engine.ErrInvalidRequest)
		}
		return d.game.DebugTriggerReward(ctx, roomID, playerID, payload.Reward())

	default:
		return fmt.Errorf("unknown message type %q: %w", msg.Type, engine.ErrInvalidRequest)
	}
}

// HandleDisconnect implements MessageHandler.
func (d *Dispatcher) HandleDisconnect(c *Connection) {
	roomID, playerID := d.connections.Binding(c)
	if playerID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.game.Disconnect(ctx, roomID, playerID)
	if err != nil && !errors.Is(err, engine.ErrRoomNotFound) {
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("player_id", playerID).
			Msg("failed to handle disconnect")
	}
}

func (d *Dispatcher) sendError(c *Connection, eventType events.EventType, err error) {
	roomID, _ := d.connections.Binding(c)
	event, buildErr := events.NewEvent(roomID, events.EventTypeError, events.ErrorPayload{
		Code:    engine.ErrorCode(err),
		Message: err.Error(),
		Event:   eventType,
	}, time.Now())
	if buildErr != nil {
		log.Error().Err(buildErr).Msg("failed to build error event")
		return
	}
	d.connections.SendDirect(c, event)
}
