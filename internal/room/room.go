// Package room manages the lifecycle of game rooms: creation with six-digit
// join codes, password-protected joining, seat management and the hand-off
// into a running game.
package room

import (
	"context"
	"errors"
	"time"

	"github.com/cardroom/uno-server-go/internal/game"
	"github.com/cardroom/uno-server-go/internal/replication"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrWrongPassword = errors.New("wrong room password")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInGame = errors.New("game already in progress")
	ErrNotHost       = errors.New("only the host may do that")
)

// DefaultMaxPlayers caps a room when the creator does not choose a limit.
const DefaultMaxPlayers = 8

// Config carries the tunables a manager applies to every room it hosts.
type Config struct {
	// BotDelay is the pause before an automated participant acts.
	BotDelay time.Duration
	// DeclareGrace is the window to declare a low hand before the
	// penalty draw.
	DeclareGrace time.Duration
	// DefaultRules applies when a room is created without choosing
	// rule variants.
	DefaultRules game.HouseRules
	// Replication tunes publish retries for every room.
	Replication replication.Options
}

// Session is the server-side runtime of one hosted room: its event bus, its
// replication handle and the orchestrator driving automated participants.
type Session struct {
	Code       string
	Bus        *game.EventBus
	Replicator *replication.Replicator
	Orch       *game.Orchestrator

	cancelWatch context.CancelFunc
}

// Close tears the session's runtime down. The room document is left to the
// caller; an emptied room is removed by Manager.Leave.
func (s *Session) Close() {
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
	s.Orch.Close()
	s.Replicator.Close()
}

// Summary is the lobby listing entry for one room.
type Summary struct {
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Status      game.Status `json:"status"`
	Players     int         `json:"players"`
	MaxPlayers  int         `json:"maxPlayers"`
	HasPassword bool        `json:"hasPassword"`
}
