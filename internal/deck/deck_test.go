package deck

import (
	"math/rand"
	"testing"
)

func TestNewStandardDeckComposition(t *testing.T) {
	d := NewStandardDeck()

	if d.Len() != StandardDeckSize {
		t.Fatalf("expected %d cards, got %d", StandardDeckSize, d.Len())
	}

	counts := d.Counts()

	for _, color := range Colors() {
		if got := counts[Card{Color: color, Rank: RankZero}]; got != 1 {
			t.Fatalf("expected 1 zero of %s, got %d", color, got)
		}
		for rank := RankOne; rank <= RankNine; rank++ {
			if got := counts[Card{Color: color, Rank: rank}]; got != 2 {
				t.Fatalf("expected 2 of %s %s, got %d", color, rank, got)
			}
		}
		for _, rank := range []Rank{RankSkip, RankReverse, RankDrawTwo} {
			if got := counts[Card{Color: color, Rank: rank}]; got != 2 {
				t.Fatalf("expected 2 of %s %s, got %d", color, rank, got)
			}
		}
	}

	if got := counts[Card{Color: ColorWild, Rank: RankWild}]; got != 4 {
		t.Fatalf("expected 4 Wild cards, got %d", got)
	}
	if got := counts[Card{Color: ColorWild, Rank: RankWildDrawFour}]; got != 4 {
		t.Fatalf("expected 4 WildDrawFour cards, got %d", got)
	}
}

func TestNewStandardDeckDeterministic(t *testing.T) {
	a := NewStandardDeck()
	b := NewStandardDeck()

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("deck composition not deterministic at index %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	d := NewStandardDeck()
	before := d.Counts()

	d.Shuffle(rand.New(rand.NewSource(42)))

	after := d.Counts()
	if len(before) != len(after) {
		t.Fatalf("shuffle changed the card multiset: %d distinct values before, %d after", len(before), len(after))
	}
	for card, n := range before {
		if after[card] != n {
			t.Fatalf("shuffle changed count of %s: %d before, %d after", card, n, after[card])
		}
	}
}

func TestShuffleReproducible(t *testing.T) {
	a := NewStandardDeck()
	b := NewStandardDeck()

	a.Shuffle(rand.New(rand.NewSource(7)))
	b.Shuffle(rand.New(rand.NewSource(7)))

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different order at index %d", i)
		}
	}
}

func TestDraw(t *testing.T) {
	p := Pile{{Color: ColorRed, Rank: RankThree}, {Color: ColorBlue, Rank: RankSkip}}

	card, rest, err := p.Draw()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card != (Card{Color: ColorBlue, Rank: RankSkip}) {
		t.Fatalf("expected top card blue Skip, got %s", card)
	}
	if rest.Len() != 1 {
		t.Fatalf("expected 1 card remaining, got %d", rest.Len())
	}

	_, rest, err = rest.Draw()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := rest.Draw(); err != ErrEmptyPile {
		t.Fatalf("expected ErrEmptyPile, got %v", err)
	}
}

func TestRemovePreservesOrder(t *testing.T) {
	p := Pile{
		{Color: ColorRed, Rank: RankOne},
		{Color: ColorGreen, Rank: RankTwo},
		{Color: ColorBlue, Rank: RankThree},
	}

	out := p.Remove(1)
	if out.Len() != 2 {
		t.Fatalf("expected 2 cards, got %d", out.Len())
	}
	if out[0] != p[0] || out[1] != p[2] {
		t.Fatalf("remove broke ordering: %v", out)
	}
	// The original backing array must be untouched.
	if p[1] != (Card{Color: ColorGreen, Rank: RankTwo}) {
		t.Fatalf("remove mutated the source pile")
	}
}

func TestParseColor(t *testing.T) {
	for _, color := range Colors() {
		parsed, err := ParseColor(color.String())
		if err != nil {
			t.Fatalf("unexpected error parsing %s: %v", color, err)
		}
		if parsed != color {
			t.Fatalf("expected %s, got %s", color, parsed)
		}
	}
	if _, err := ParseColor("purple"); err == nil {
		t.Fatal("expected error for unknown color")
	}
}
