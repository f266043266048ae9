package deck

import (
	"errors"
	"math/rand"
)

// StandardDeckSize is the card count of a full UNO deck. The total is
// conserved across a game: draw pile + discard pile + all hands always sum
// to this.
const StandardDeckSize = 108

// ErrEmptyPile is returned when a draw is attempted on an empty pile.
// Callers are expected to replenish from the discard pile before retrying.
var ErrEmptyPile = errors.New("empty pile")

// Pile is an ordered stack of cards. The top of the pile is the last
// element.
type Pile []Card

// NewStandardDeck builds the full 108-card UNO deck in deterministic order:
// per color one zero, two each of 1-9, two each of Skip/Reverse/DrawTwo,
// plus four Wild and four WildDrawFour.
func NewStandardDeck() Pile {
	cards := make(Pile, 0, StandardDeckSize)
	for _, color := range Colors() {
		cards = append(cards, Card{Color: color, Rank: RankZero})
		for rank := RankOne; rank <= RankNine; rank++ {
			cards = append(cards, Card{Color: color, Rank: rank}, Card{Color: color, Rank: rank})
		}
		for _, rank := range []Rank{RankSkip, RankReverse, RankDrawTwo} {
			cards = append(cards, Card{Color: color, Rank: rank}, Card{Color: color, Rank: rank})
		}
	}
	for i := 0; i < 4; i++ {
		cards = append(cards, Card{Color: ColorWild, Rank: RankWild})
		cards = append(cards, Card{Color: ColorWild, Rank: RankWildDrawFour})
	}
	return cards
}

// Shuffle permutes the pile in place using Fisher-Yates. The random source
// is caller-supplied so outcomes are reproducible in tests.
func (p Pile) Shuffle(rng *rand.Rand) {
	for i := len(p) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
}

// Len returns the number of cards in the pile.
func (p Pile) Len() int {
	return len(p)
}

// IsEmpty reports whether the pile holds no cards.
func (p Pile) IsEmpty() bool {
	return len(p) == 0
}

// Top returns the top card without removing it.
func (p Pile) Top() (Card, error) {
	if p.IsEmpty() {
		return Card{}, ErrEmptyPile
	}
	return p[len(p)-1], nil
}

// Draw removes and returns the top card. The remaining pile is returned as a
// new slice header; the caller must use it in place of the original.
func (p Pile) Draw() (Card, Pile, error) {
	if p.IsEmpty() {
		return Card{}, p, ErrEmptyPile
	}
	return p[len(p)-1], p[:len(p)-1], nil
}

// Push places cards on top of the pile.
func (p Pile) Push(cards ...Card) Pile {
	return append(p, cards...)
}

// Remove deletes the card at index i, preserving order. The index must be in
// range.
func (p Pile) Remove(i int) Pile {
	out := make(Pile, 0, len(p)-1)
	out = append(out, p[:i]...)
	return append(out, p[i+1:]...)
}

// Clone returns an independent copy of the pile.
func (p Pile) Clone() Pile {
	out := make(Pile, len(p))
	copy(out, p)
	return out
}

// Counts tallies the pile into a multiset keyed by card value. Useful for
// composition and conservation checks.
func (p Pile) Counts() map[Card]int {
	counts := make(map[Card]int, len(p))
	for _, c := range p {
		counts[c]++
	}
	return counts
}
