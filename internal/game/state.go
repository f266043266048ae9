package game

import (
	"github.com/cardroom/uno-server-go/internal/deck"
)

// Status represents the lifecycle state of a table.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// HouseRules captures the optional rule variants agreed in the lobby before
// the game starts.
type HouseRules struct {
	// SwapOnSeven suspends resolution after a 7 is played until the player
	// chooses an opponent to swap hands with.
	SwapOnSeven bool `json:"swapOnSeven"`
	// RotateOnZero rotates every hand one seat in the direction of play
	// when a 0 is played.
	RotateOnZero bool `json:"rotateOnZero"`
}

// Player is one participant's record inside the table state. Hand order
// carries no meaning beyond indexing plays.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	Hand     deck.Pile `json:"hand"`
	Declared bool      `json:"declared"`
}

// SwapRequest marks a suspended rank-7 resolution. The turn does not advance
// until the playing participant picks a swap target.
type SwapRequest struct {
	PlayerID string `json:"playerId"`
}

// TableState is the replicated, authoritative view of one game. It is a
// value: engine operations take a snapshot and return a new snapshot, never
// mutating their input. Only the replication layer holds the "current" copy
// long-term.
type TableState struct {
	RoomID             string       `json:"roomId"`
	Status             Status       `json:"status"`
	Players            []Player     `json:"players"`
	DrawPile           deck.Pile    `json:"drawPile"`
	DiscardPile        deck.Pile    `json:"discardPile"`
	ActiveColor        deck.Color   `json:"activeColor"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	Direction          int          `json:"direction"`
	PendingDrawCount   int          `json:"pendingDrawCount"`
	PendingSwap        *SwapRequest `json:"pendingSwap,omitempty"`
	Seq                uint64       `json:"turnSequenceNumber"`
	WinnerID           string       `json:"winnerId,omitempty"`
	Rules              HouseRules   `json:"houseRules"`
}

// Clone returns a deep copy of the state. Pile and player slices are copied
// so the clone can be mutated freely.
func (s TableState) Clone() TableState {
	out := s
	out.DrawPile = s.DrawPile.Clone()
	out.DiscardPile = s.DiscardPile.Clone()
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p
		out.Players[i].Hand = p.Hand.Clone()
	}
	if s.PendingSwap != nil {
		swap := *s.PendingSwap
		out.PendingSwap = &swap
	}
	return out
}

// CurrentPlayer returns the player whose turn it is.
func (s TableState) CurrentPlayer() Player {
	return s.Players[s.CurrentPlayerIndex]
}

// PlayerIndex resolves a player ID to its seat index, or -1 if absent.
func (s TableState) PlayerIndex(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// NextIndex steps from seat index i by step seats in the direction of play,
// wrapping negative indices back to the last seat.
func (s TableState) NextIndex(i, step int) int {
	n := len(s.Players)
	next := (i + s.Direction*step) % n
	if next < 0 {
		next += n
	}
	return next
}

// CardCount sums all cards visible in the state. For any reachable state it
// equals deck.StandardDeckSize.
func (s TableState) CardCount() int {
	total := s.DrawPile.Len() + s.DiscardPile.Len()
	for _, p := range s.Players {
		total += p.Hand.Len()
	}
	return total
}

// DiscardTop returns the card on top of the discard pile. The pile is never
// empty once a game has started.
func (s TableState) DiscardTop() deck.Card {
	top, err := s.DiscardPile.Top()
	if err != nil {
		// Start always seeds the discard pile.
		panic("discard pile empty in started game")
	}
	return top
}
