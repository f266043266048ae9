package deck

import "fmt"

// Color identifies the suit of an UNO card. Wild is only ever carried by
// Wild and WildDrawFour cards; an active table color is never Wild.
type Color int

const (
	ColorWild Color = iota
	ColorRed
	ColorYellow
	ColorGreen
	ColorBlue
)

var colorNames = map[Color]string{
	ColorWild:   "wild",
	ColorRed:    "red",
	ColorYellow: "yellow",
	ColorGreen:  "green",
	ColorBlue:   "blue",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("color_%d", int(c))
}

// IsWild reports whether the color is the wild pseudo-color.
func (c Color) IsWild() bool {
	return c == ColorWild
}

// Colors lists the four playable (non-wild) colors.
func Colors() []Color {
	return []Color{ColorRed, ColorYellow, ColorGreen, ColorBlue}
}

// ParseColor converts a lowercase color name into a Color.
func ParseColor(s string) (Color, error) {
	for color, name := range colorNames {
		if name == s {
			return color, nil
		}
	}
	return ColorWild, fmt.Errorf("unknown color %q", s)
}

// Rank identifies the face of an UNO card. Values 0-9 map directly to the
// numbered ranks.
type Rank int

const (
	RankZero Rank = iota
	RankOne
	RankTwo
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankSkip
	RankReverse
	RankDrawTwo
	RankWild
	RankWildDrawFour
)

var rankNames = map[Rank]string{
	RankSkip:         "Skip",
	RankReverse:      "Reverse",
	RankDrawTwo:      "DrawTwo",
	RankWild:         "Wild",
	RankWildDrawFour: "WildDrawFour",
}

func (r Rank) String() string {
	if r >= RankZero && r <= RankNine {
		return fmt.Sprintf("%d", int(r))
	}
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rank_%d", int(r))
}

// IsNumber reports whether the rank is one of the numbered ranks 0-9.
func (r Rank) IsNumber() bool {
	return r >= RankZero && r <= RankNine
}

// Card is an immutable card value. Two cards with the same color and rank are
// interchangeable; duplicates are distinguished only by pile position.
type Card struct {
	Color Color `json:"color"`
	Rank  Rank  `json:"rank"`
}

func (c Card) String() string {
	if c.Color.IsWild() {
		return c.Rank.String()
	}
	return fmt.Sprintf("%s %s", c.Color, c.Rank)
}

// IsWild reports whether the card is a Wild or WildDrawFour.
func (c Card) IsWild() bool {
	return c.Rank == RankWild || c.Rank == RankWildDrawFour
}
