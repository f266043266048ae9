package game

import (
	"math/rand"

	"github.com/cardroom/uno-server-go/internal/deck"
)

// StartingHandSize is the number of cards dealt to each player.
const StartingHandSize = 7

// PenaltyDrawCount is the draw assessed for an undeclared low hand.
const PenaltyDrawCount = 2

// Start deals a new game for the given seats. Seat order becomes the turn
// order for the whole game. The random source drives the shuffle only;
// everything after is deterministic.
func Start(roomID string, seats []Player, rules HouseRules, rng *rand.Rand) (TableState, []Event, error) {
	if len(seats) < 2 {
		return TableState{}, nil, ErrNotEnoughPlayers
	}

	pile := deck.NewStandardDeck()
	pile.Shuffle(rng)

	s := TableState{
		RoomID:    roomID,
		Status:    StatusPlaying,
		Direction: 1,
		Rules:     rules,
		DrawPile:  pile,
	}
	s.Players = make([]Player, len(seats))
	for i, seat := range seats {
		s.Players[i] = Player{
			ID:     seat.ID,
			Name:   seat.Name,
			IsHost: seat.IsHost,
			Hand:   make(deck.Pile, 0, StartingHandSize),
		}
	}

	for n := 0; n < StartingHandSize; n++ {
		for i := range s.Players {
			card, rest, err := s.DrawPile.Draw()
			if err != nil {
				return TableState{}, nil, err
			}
			s.DrawPile = rest
			s.Players[i].Hand = s.Players[i].Hand.Push(card)
		}
	}

	// Flip the first discard. Wild flips go under the draw pile so the
	// opening color is always concrete.
	for {
		card, rest, err := s.DrawPile.Draw()
		if err != nil {
			return TableState{}, nil, err
		}
		s.DrawPile = rest
		if !card.IsWild() {
			s.DiscardPile = s.DiscardPile.Push(card)
			s.ActiveColor = card.Color
			break
		}
		s.DrawPile = append(deck.Pile{card}, s.DrawPile...)
	}

	s.Seq = 1
	return s, []Event{{Type: EventGameStarted, Seq: s.Seq}}, nil
}

// Playable reports whether the card satisfies the play-legality predicate
// against the current table state. While a pending draw is outstanding only
// a card of the same rank as the discard top (stacking) is legal.
func Playable(s TableState, c deck.Card) bool {
	top := s.DiscardTop()
	if s.PendingDrawCount > 0 {
		return c.Rank == top.Rank
	}
	return c.IsWild() || c.Color == s.ActiveColor || c.Rank == top.Rank
}

// ApplyPlay resolves the acting player discarding the card at cardIndex.
// chosenColor must be a non-wild color when the card itself is wild, and is
// ignored otherwise. The input state is never mutated; on success the new
// snapshot and the transition's events are returned.
func ApplyPlay(state TableState, playerID string, cardIndex int, chosenColor deck.Color) (TableState, []Event, error) {
	if err := checkActionable(state, playerID); err != nil {
		return state, nil, err
	}

	s := state.Clone()
	player := &s.Players[s.CurrentPlayerIndex]

	if cardIndex < 0 || cardIndex >= player.Hand.Len() {
		return state, nil, ErrInvalidCardIndex
	}
	card := player.Hand[cardIndex]
	if !Playable(s, card) {
		return state, nil, ErrIllegalCard
	}
	if card.IsWild() && chosenColor.IsWild() {
		return state, nil, ErrMissingColorChoice
	}

	player.Hand = player.Hand.Remove(cardIndex)
	s.DiscardPile = s.DiscardPile.Push(card)

	var events []Event
	played := card
	events = append(events, Event{Type: EventCardPlayed, PlayerID: player.ID, Card: &played})

	// Effects in fixed order. advance is the number of seats the turn
	// moves afterwards; 0 means resolution is suspended.
	advance := 1
	switch {
	case card.Rank == deck.RankWild:
		s.ActiveColor = chosenColor
		events = append(events, Event{Type: EventColorChosen, PlayerID: player.ID, Color: chosenColor})
	case card.Rank == deck.RankWildDrawFour:
		s.ActiveColor = chosenColor
		s.PendingDrawCount += 4
		events = append(events,
			Event{Type: EventColorChosen, PlayerID: player.ID, Color: chosenColor},
			Event{Type: EventDrawStacked, PlayerID: player.ID, Count: s.PendingDrawCount})
	case card.Rank == deck.RankDrawTwo:
		s.PendingDrawCount += 2
		events = append(events, Event{Type: EventDrawStacked, PlayerID: player.ID, Count: s.PendingDrawCount})
	case card.Rank == deck.RankSkip:
		skipped := s.Players[s.NextIndex(s.CurrentPlayerIndex, 1)]
		advance = 2
		events = append(events, Event{Type: EventTurnSkipped, PlayerID: player.ID, TargetID: skipped.ID})
	case card.Rank == deck.RankReverse:
		s.Direction = -s.Direction
		events = append(events, Event{Type: EventDirectionReversed, PlayerID: player.ID})
		if len(s.Players) == 2 {
			// With two players a Reverse acts as a Skip: the turn
			// does not return to the opponent.
			advance = 2
			skipped := s.Players[s.NextIndex(s.CurrentPlayerIndex, 1)]
			events = append(events, Event{Type: EventTurnSkipped, PlayerID: player.ID, TargetID: skipped.ID})
		}
	case card.Rank == deck.RankSeven && s.Rules.SwapOnSeven:
		s.PendingSwap = &SwapRequest{PlayerID: player.ID}
		advance = 0
		events = append(events, Event{Type: EventSwapRequested, PlayerID: player.ID})
	case card.Rank == deck.RankZero && s.Rules.RotateOnZero:
		rotateHands(&s)
		events = append(events, Event{Type: EventHandsRotated, PlayerID: player.ID})
	}
	if !card.IsWild() {
		s.ActiveColor = card.Color
	}

	// Win detection runs after effects: a zero-rotation can refill the
	// acting player's hand.
	if player.Hand.IsEmpty() {
		s.Status = StatusFinished
		s.WinnerID = player.ID
		s.PendingSwap = nil
		events = append(events, Event{Type: EventGameWon, PlayerID: player.ID})
	} else if advance > 0 {
		s.CurrentPlayerIndex = s.NextIndex(s.CurrentPlayerIndex, advance)
		events = append(events, Event{Type: EventTurnAdvanced, PlayerID: s.CurrentPlayer().ID})
	}

	clearStaleDeclarations(&s)
	s.Seq++
	return s, stamp(events, s.Seq), nil
}

// ApplyDraw resolves the acting player drawing. With a pending draw
// outstanding the full obligation is drawn and the turn advances. Otherwise
// a single card is drawn; the turn stays with the player only if the drawn
// card is immediately playable.
func ApplyDraw(state TableState, playerID string, rng *rand.Rand) (TableState, []Event, error) {
	if err := checkActionable(state, playerID); err != nil {
		return state, nil, err
	}

	s := state.Clone()
	player := &s.Players[s.CurrentPlayerIndex]
	var events []Event

	if s.PendingDrawCount > 0 {
		cards, short := drawCards(&s, s.PendingDrawCount, rng)
		player.Hand = player.Hand.Push(cards...)
		events = append(events, Event{Type: EventCardsDrawn, PlayerID: player.ID, Count: len(cards)})
		if short {
			events = append(events, Event{Type: EventInsufficientCards, PlayerID: player.ID, Count: s.PendingDrawCount - len(cards)})
		}
		s.PendingDrawCount = 0
		s.CurrentPlayerIndex = s.NextIndex(s.CurrentPlayerIndex, 1)
		events = append(events, Event{Type: EventTurnAdvanced, PlayerID: s.CurrentPlayer().ID})
	} else {
		cards, short := drawCards(&s, 1, rng)
		keepTurn := false
		if len(cards) == 1 {
			player.Hand = player.Hand.Push(cards[0])
			events = append(events, Event{Type: EventCardsDrawn, PlayerID: player.ID, Count: 1})
			keepTurn = Playable(s, cards[0])
		}
		if short {
			events = append(events, Event{Type: EventInsufficientCards, PlayerID: player.ID, Count: 1 - len(cards)})
		}
		if !keepTurn {
			s.CurrentPlayerIndex = s.NextIndex(s.CurrentPlayerIndex, 1)
			events = append(events, Event{Type: EventTurnAdvanced, PlayerID: s.CurrentPlayer().ID})
		}
	}

	clearStaleDeclarations(&s)
	s.Seq++
	return s, stamp(events, s.Seq), nil
}

// ResolveSwap completes a suspended rank-7 resolution by swapping the acting
// player's hand with the chosen target's, then advancing the turn.
func ResolveSwap(state TableState, playerID, targetID string) (TableState, []Event, error) {
	if err := checkLifecycle(state); err != nil {
		return state, nil, err
	}
	if state.PendingSwap == nil {
		return state, nil, ErrNoSwapPending
	}
	if state.PendingSwap.PlayerID != playerID {
		return state, nil, ErrNotYourTurn
	}
	targetIndex := state.PlayerIndex(targetID)
	if targetIndex < 0 || targetID == playerID {
		return state, nil, ErrInvalidSwapTarget
	}

	s := state.Clone()
	playerIndex := s.PlayerIndex(playerID)
	s.Players[playerIndex].Hand, s.Players[targetIndex].Hand =
		s.Players[targetIndex].Hand, s.Players[playerIndex].Hand
	s.PendingSwap = nil

	events := []Event{{Type: EventHandsSwapped, PlayerID: playerID, TargetID: targetID}}
	s.CurrentPlayerIndex = s.NextIndex(s.CurrentPlayerIndex, 1)
	events = append(events, Event{Type: EventTurnAdvanced, PlayerID: s.CurrentPlayer().ID})

	clearStaleDeclarations(&s)
	s.Seq++
	return s, stamp(events, s.Seq), nil
}

// Declare records a low-hand declaration. It is legal at any time the
// declaring player holds exactly one card, regardless of whose turn it is.
func Declare(state TableState, playerID string) (TableState, []Event, error) {
	if err := checkLifecycle(state); err != nil {
		return state, nil, err
	}
	index := state.PlayerIndex(playerID)
	if index < 0 {
		return state, nil, ErrUnknownPlayer
	}
	if state.Players[index].Hand.Len() != 1 {
		return state, nil, ErrDeclareNotAllowed
	}

	s := state.Clone()
	s.Players[index].Declared = true
	s.Seq++
	return s, stamp([]Event{{Type: EventLowHandDeclared, PlayerID: playerID}}, s.Seq), nil
}

// ApplyPenalty assesses the undeclared-low-hand draw penalty against the
// given player. The caller (the orchestrator) is responsible for the timing
// rules; the engine only performs the draw.
func ApplyPenalty(state TableState, playerID string, rng *rand.Rand) (TableState, []Event, error) {
	if err := checkLifecycle(state); err != nil {
		return state, nil, err
	}
	index := state.PlayerIndex(playerID)
	if index < 0 {
		return state, nil, ErrUnknownPlayer
	}

	s := state.Clone()
	cards, short := drawCards(&s, PenaltyDrawCount, rng)
	s.Players[index].Hand = s.Players[index].Hand.Push(cards...)

	events := []Event{{Type: EventPenaltyAssessed, PlayerID: playerID, Count: len(cards)}}
	if short {
		events = append(events, Event{Type: EventInsufficientCards, PlayerID: playerID, Count: PenaltyDrawCount - len(cards)})
	}

	clearStaleDeclarations(&s)
	s.Seq++
	return s, stamp(events, s.Seq), nil
}

func checkLifecycle(s TableState) error {
	switch s.Status {
	case StatusPlaying:
		return nil
	case StatusFinished:
		return ErrGameFinished
	default:
		return ErrGameNotStarted
	}
}

func checkActionable(s TableState, playerID string) error {
	if err := checkLifecycle(s); err != nil {
		return err
	}
	if s.PendingSwap != nil {
		return ErrSwapPending
	}
	index := s.PlayerIndex(playerID)
	if index < 0 {
		return ErrUnknownPlayer
	}
	if index != s.CurrentPlayerIndex {
		return ErrNotYourTurn
	}
	return nil
}

// drawCards moves up to n cards off the draw pile, replenishing from the
// discard pile (all but its top card, reshuffled) when the draw pile
// empties. Returns short=true when both piles ran out before n cards were
// drawn; the draw is then partially satisfied.
func drawCards(s *TableState, n int, rng *rand.Rand) ([]deck.Card, bool) {
	out := make([]deck.Card, 0, n)
	for len(out) < n {
		if s.DrawPile.IsEmpty() && !replenishDrawPile(s, rng) {
			return out, true
		}
		card, rest, err := s.DrawPile.Draw()
		if err != nil {
			return out, true
		}
		s.DrawPile = rest
		out = append(out, card)
	}
	return out, false
}

func replenishDrawPile(s *TableState, rng *rand.Rand) bool {
	if s.DiscardPile.Len() <= 1 {
		return false
	}
	top := s.DiscardTop()
	pile := s.DiscardPile[:s.DiscardPile.Len()-1].Clone()
	pile.Shuffle(rng)
	s.DrawPile = pile
	s.DiscardPile = deck.Pile{top}
	return true
}

// rotateHands moves every hand one seat in the direction of play.
func rotateHands(s *TableState) {
	hands := make([]deck.Pile, len(s.Players))
	for i := range s.Players {
		hands[s.NextIndex(i, 1)] = s.Players[i].Hand
	}
	for i := range s.Players {
		s.Players[i].Hand = hands[i]
	}
}

// clearStaleDeclarations drops the declared flag for any player no longer
// holding exactly one card, so the obligation can recur later in the game.
func clearStaleDeclarations(s *TableState) {
	for i := range s.Players {
		if s.Players[i].Hand.Len() != 1 {
			s.Players[i].Declared = false
		}
	}
}

func stamp(events []Event, seq uint64) []Event {
	for i := range events {
		events[i].Seq = seq
	}
	return events
}
