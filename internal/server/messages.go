package server

import (
	"errors"

	"github.com/cardroom/uno-server-go/internal/game"
	"github.com/cardroom/uno-server-go/internal/replication"
	"github.com/cardroom/uno-server-go/internal/room"
)

// Command is an in-game request sent over the websocket.
type Command struct {
	Type      string `json:"type"`
	CardIndex int    `json:"cardIndex"`
	Color     string `json:"color,omitempty"`
	TargetID  string `json:"targetId,omitempty"`
}

// Command types accepted over the websocket.
const (
	CmdStartGame  = "start_game"
	CmdPlayCard   = "play_card"
	CmdDrawCard   = "draw_card"
	CmdDeclare    = "declare_last_card"
	CmdChooseSwap = "choose_swap"
	CmdAddBot     = "add_bot"
	CmdLeaveRoom  = "leave_room"
)

// Envelope is a server-to-client message.
type Envelope struct {
	Type    string       `json:"type"`
	State   *TableView   `json:"state,omitempty"`
	Players []PlayerView `json:"players,omitempty"`
	Event   *game.Event  `json:"event,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Envelope types sent to clients.
const (
	MsgState       = "state"
	MsgPlayers     = "players"
	MsgEvent       = "event"
	MsgGameStarted = "game_started"
	MsgNotice      = "notice"
	MsgError       = "error"
)

// errorCode maps rule and lobby failures onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return "NOT_YOUR_TURN"
	case errors.Is(err, game.ErrInvalidCardIndex):
		return "INVALID_CARD_INDEX"
	case errors.Is(err, game.ErrIllegalCard):
		return "ILLEGAL_CARD"
	case errors.Is(err, game.ErrMissingColorChoice):
		return "MISSING_COLOR_CHOICE"
	case errors.Is(err, game.ErrSwapPending):
		return "SWAP_PENDING"
	case errors.Is(err, game.ErrNoSwapPending):
		return "NO_SWAP_PENDING"
	case errors.Is(err, game.ErrInvalidSwapTarget):
		return "INVALID_SWAP_TARGET"
	case errors.Is(err, game.ErrDeclareNotAllowed):
		return "DECLARE_NOT_ALLOWED"
	case errors.Is(err, game.ErrUnknownPlayer):
		return "UNKNOWN_PLAYER"
	case errors.Is(err, game.ErrGameNotStarted):
		return "GAME_NOT_STARTED"
	case errors.Is(err, game.ErrGameFinished):
		return "GAME_FINISHED"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "NOT_ENOUGH_PLAYERS"
	case errors.Is(err, room.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, room.ErrWrongPassword):
		return "WRONG_PASSWORD"
	case errors.Is(err, room.ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, room.ErrAlreadyInGame):
		return "ALREADY_IN_GAME"
	case errors.Is(err, room.ErrNotHost):
		return "NOT_HOST"
	case errors.Is(err, replication.ErrOutOfSync):
		return "OUT_OF_SYNC"
	default:
		return "INTERNAL"
	}
}
