// Package pattern decides whether a bingo card satisfies a winning pattern.
package pattern

import (
	"fmt"
	"strings"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/card"
)

// Kind identifies a winning pattern.
type Kind string

// Supported patterns.
const (
	FullHouse   Kind = "FULL_HOUSE"
	AnyLine     Kind = "ANY_LINE"
	FourCorners Kind = "FOUR_CORNERS"
	Cross       Kind = "CROSS"
	LetterX     Kind = "LETTER_X"
	SmallSquare Kind = "SMALL_SQUARE"
	TopRow      Kind = "TOP_ROW"
	MiddleRow   Kind = "MIDDLE_ROW"
	BottomRow   Kind = "BOTTOM_ROW"
	LeftL       Kind = "LEFT_L"
	RightL      Kind = "RIGHT_L"
)

// Cell is a (row, col) position on a card.
type Cell struct {
	Row, Col int
}

// Shape is one set of cells that must all be marked.
type Shape []Cell

var (
	all = []Kind{
		FullHouse, AnyLine, FourCorners, Cross, LetterX, SmallSquare,
		TopRow, MiddleRow, BottomRow, LeftL, RightL,
	}

	// shapes maps each kind to its alternatives; a card wins if any one
	// alternative is fully marked.
	shapes = buildShapes()
)

func row(r int) Shape {
	s := make(Shape, 0, card.Size)
	for c := 0; c < card.Size; c++ {
		s = append(s, Cell{r, c})
	}
	return s
}

func col(c int) Shape {
	s := make(Shape, 0, card.Size)
	for r := 0; r < card.Size; r++ {
		s = append(s, Cell{r, c})
	}
	return s
}

func mainDiagonal() Shape {
	s := make(Shape, 0, card.Size)
	for i := 0; i < card.Size; i++ {
		s = append(s, Cell{i, i})
	}
	return s
}

func antiDiagonal() Shape {
	s := make(Shape, 0, card.Size)
	for i := 0; i < card.Size; i++ {
		s = append(s, Cell{i, card.Size - 1 - i})
	}
	return s
}

func union(parts ...Shape) Shape {
	seen := make(map[Cell]bool)
	var s Shape
	for _, p := range parts {
		for _, c := range p {
			if !seen[c] {
				seen[c] = true
				s = append(s, c)
			}
		}
	}
	return s
}

func buildShapes() map[Kind][]Shape {
	last := card.Size - 1

	lines := make([]Shape, 0, 2*card.Size+2)
	for i := 0; i < card.Size; i++ {
		lines = append(lines, row(i))
	}
	for i := 0; i < card.Size; i++ {
		lines = append(lines, col(i))
	}
	lines = append(lines, mainDiagonal(), antiDiagonal())

	full := make(Shape, 0, card.Size*card.Size)
	for r := 0; r < card.Size; r++ {
		full = append(full, row(r)...)
	}

	return map[Kind][]Shape{
		FullHouse:   {full},
		AnyLine:     lines,
		FourCorners: {{{0, 0}, {0, last}, {last, 0}, {last, last}}},
		Cross:       {union(row(card.Center), col(card.Center))},
		LetterX:     {union(mainDiagonal(), antiDiagonal())},
		SmallSquare: {{{0, 0}, {0, 1}, {1, 0}, {1, 1}}},
		TopRow:      {row(0)},
		MiddleRow:   {row(card.Center)},
		BottomRow:   {row(last)},
		LeftL:       {union(col(0), row(last))},
		RightL:      {union(col(last), row(0))},
	}
}

// All returns every supported pattern.
func All() []Kind {
	out := make([]Kind, len(all))
	copy(out, all)
	return out
}

// Parse converts a pattern name into a Kind. Matching ignores case and
// accepts '-' or ' ' in place of '_'.
func Parse(s string) (Kind, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	k := Kind(norm)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown pattern %q", game.ErrValidation, s)
	}
	return k, nil
}

// Valid reports whether k is a supported pattern.
func (k Kind) Valid() bool {
	_, ok := shapes[k]
	return ok
}

// Shapes returns the alternatives for k, or nil for an unknown kind.
func (k Kind) Shapes() []Shape {
	src := shapes[k]
	out := make([]Shape, len(src))
	for i, s := range src {
		out[i] = append(Shape(nil), s...)
	}
	return out
}

// Set is the set of called numbers.
type Set map[int]struct{}

// NewSet builds a Set from numbers.
func NewSet(nums ...int) Set {
	s := make(Set, len(nums))
	for _, n := range nums {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether n was called.
func (s Set) Has(n int) bool {
	_, ok := s[n]
	return ok
}

// Marked reports whether the cell counts as marked: it is the free space or
// its number was called.
func Marked(c card.Card, called Set, cell Cell) bool {
	if c.IsFree(cell.Row, cell.Col) {
		return true
	}
	return called.Has(c[cell.Row][cell.Col])
}

// IsWinningCard reports whether every cell of at least one of the pattern's
// shapes is marked. Unknown kinds never win.
func IsWinningCard(c card.Card, called Set, k Kind) bool {
	for _, s := range shapes[k] {
		if covered(c, called, s) {
			return true
		}
	}
	return false
}

func covered(c card.Card, called Set, s Shape) bool {
	for _, cell := range s {
		if !Marked(c, called, cell) {
			return false
		}
	}
	return true
}
