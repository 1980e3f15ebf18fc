package engine

import "errors"

var (
	ErrRoomClosed             = errors.New("room is not accepting players")
	ErrRoomNotFound           = errors.New("room not found")
	ErrPlayerNotFound         = errors.New("player not in room")
	ErrPlayerEliminated       = errors.New("player is eliminated")
	ErrNotHost                = errors.New("only the host can start the game")
	ErrInsufficientPlayers    = errors.New("not enough players to start")
	ErrInvalidStateTransition = errors.New("action not allowed in current room state")
	ErrInvalidTarget          = errors.New("invalid target")
	ErrUnknownCard            = errors.New("card not in hand")
	ErrSubmissionPending      = errors.New("a submission is already being judged")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrDebugDisabled          = errors.New("debug rewards are disabled")
)

// ErrorCode maps an error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomClosed):
		return "RoomClosed"
	case errors.Is(err, ErrRoomNotFound):
		return "RoomNotFound"
	case errors.Is(err, ErrPlayerNotFound):
		return "PlayerNotFound"
	case errors.Is(err, ErrPlayerEliminated):
		return "PlayerEliminated"
	case errors.Is(err, ErrNotHost):
		return "NotHost"
	case errors.Is(err, ErrInsufficientPlayers):
		return "InsufficientPlayers"
	case errors.Is(err, ErrInvalidStateTransition):
		return "InvalidStateTransition"
	case errors.Is(err, ErrInvalidTarget):
		return "InvalidTarget"
	case errors.Is(err, ErrUnknownCard):
		return "UnknownCard"
	case errors.Is(err, ErrSubmissionPending):
		return "SubmissionPending"
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, ErrDebugDisabled):
		return "DebugDisabled"
	default:
		return "Internal"
	}
}
