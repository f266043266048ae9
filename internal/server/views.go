package server

import (
	"github.com/cardroom/uno-server-go/internal/deck"
	"github.com/cardroom/uno-server-go/internal/game"
)

// PlayerView is what any participant may know about a seat: everything
// except the cards themselves.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	CardCount int    `json:"cardCount"`
	Declared  bool   `json:"declared"`
	IsCurrent bool   `json:"isCurrent"`
}

// TableView is one viewer's picture of the table. Only the viewer's own
// hand is present; every other hand is reduced to a count.
type TableView struct {
	RoomID           string       `json:"roomId"`
	Status           game.Status  `json:"status"`
	Hand             deck.Pile    `json:"hand"`
	Players          []PlayerView `json:"players"`
	DiscardTop       *deck.Card   `json:"discardTop,omitempty"`
	ActiveColor      deck.Color   `json:"activeColor"`
	Direction        int          `json:"direction"`
	DrawPileSize     int          `json:"drawPileSize"`
	PendingDrawCount int          `json:"pendingDrawCount"`
	PendingSwapBy    string       `json:"pendingSwapBy,omitempty"`
	Seq              uint64       `json:"turnSequenceNumber"`
	WinnerID         string       `json:"winnerId,omitempty"`
}

// NewTableView projects the full state onto what viewerID is allowed to
// see.
func NewTableView(s game.TableState, viewerID string) TableView {
	view := TableView{
		RoomID:           s.RoomID,
		Status:           s.Status,
		Players:          make([]PlayerView, len(s.Players)),
		ActiveColor:      s.ActiveColor,
		Direction:        s.Direction,
		DrawPileSize:     s.DrawPile.Len(),
		PendingDrawCount: s.PendingDrawCount,
		Seq:              s.Seq,
		WinnerID:         s.WinnerID,
	}
	if s.DiscardPile.Len() > 0 {
		top := s.DiscardTop()
		view.DiscardTop = &top
	}
	if s.PendingSwap != nil {
		view.PendingSwapBy = s.PendingSwap.PlayerID
	}
	for i, p := range s.Players {
		view.Players[i] = PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			IsHost:    p.IsHost,
			CardCount: p.Hand.Len(),
			Declared:  p.Declared,
			IsCurrent: s.Status == game.StatusPlaying && i == s.CurrentPlayerIndex,
		}
		if p.ID == viewerID {
			view.Hand = p.Hand.Clone()
		}
	}
	if view.Hand == nil {
		view.Hand = deck.Pile{}
	}
	return view
}
