// Package card generates 5x5 bingo cards.
//
// Columns follow the B-I-N-G-O ranges: B 1-15, I 16-30, N 31-45, G 46-60,
// O 61-75. The center cell is the FREE space and is stored as Free (0).
package card

import (
	"fmt"

	"bingo-platform/internal/game"
)

const (
	// Size is the number of rows and columns on a card.
	Size = 5

	// Free marks the center cell. It counts as marked on every card.
	Free = 0

	// Center is the row and column index of the free cell.
	Center = 2

	// ColumnSpan is how many numbers each column range holds.
	ColumnSpan = 15

	// MaxNumber is the highest callable number.
	MaxNumber = Size * ColumnSpan
)

// Card is a bingo card indexed [row][col]. Row 0 is the top row and
// column 0 is the B column.
type Card [Size][Size]int

// ColumnRange returns the inclusive number range for a column.
func ColumnRange(col int) (lo, hi int) {
	lo = col*ColumnSpan + 1
	return lo, lo + ColumnSpan - 1
}

// New generates a card using the process-wide generator.
func New() Card {
	return Generate(game.DefaultRand)
}

// Generate builds a card by sampling 5 distinct numbers per column, without
// replacement, from the column's range. The center is always Free.
func Generate(r game.Rand) Card {
	var c Card
	for col := 0; col < Size; col++ {
		lo, _ := ColumnRange(col)

		pool := make([]int, ColumnSpan)
		for i := range pool {
			pool[i] = lo + i
		}

		// Partial Fisher-Yates: the first Size slots end up a uniform sample.
		for i := 0; i < Size; i++ {
			j := i + r.IntN(ColumnSpan-i)
			pool[i], pool[j] = pool[j], pool[i]
			c[i][col] = pool[i]
		}
	}
	c[Center][Center] = Free
	return c
}

// IsFree reports whether the cell at (row, col) is the free space.
func (c Card) IsFree(row, col int) bool {
	return row == Center && col == Center
}

// Validate checks the column ranges, per-column distinctness and the free
// center.
func (c Card) Validate() error {
	for col := 0; col < Size; col++ {
		lo, hi := ColumnRange(col)
		seen := make(map[int]bool, Size)
		for row := 0; row < Size; row++ {
			v := c[row][col]
			if c.IsFree(row, col) {
				if v != Free {
					return fmt.Errorf("%w: center cell must be free, got %d", game.ErrValidation, v)
				}
				continue
			}
			if v < lo || v > hi {
				return fmt.Errorf("%w: cell (%d,%d)=%d outside %d-%d", game.ErrValidation, row, col, v, lo, hi)
			}
			if seen[v] {
				return fmt.Errorf("%w: duplicate %d in column %d", game.ErrValidation, v, col)
			}
			seen[v] = true
		}
	}
	return nil
}

// Numbers returns the 24 numbers on the card, row by row, skipping the free
// cell.
func (c Card) Numbers() []int {
	nums := make([]int, 0, Size*Size-1)
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if c.IsFree(row, col) {
				continue
			}
			nums = append(nums, c[row][col])
		}
	}
	return nums
}

// Flatten returns the card row-major with Free at the center. This is the
// storage layout.
func (c Card) Flatten() []int32 {
	cells := make([]int32, 0, Size*Size)
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			cells = append(cells, int32(c[row][col]))
		}
	}
	return cells
}

// FromCells rebuilds a card from its row-major layout and validates it.
func FromCells(cells []int32) (Card, error) {
	var c Card
	if len(cells) != Size*Size {
		return c, fmt.Errorf("%w: card needs %d cells, got %d", game.ErrValidation, Size*Size, len(cells))
	}
	for i, v := range cells {
		c[i/Size][i%Size] = int(v)
	}
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	return c, nil
}

// Letter returns the column letter for a called number, e.g. "B" for 7.
// It returns "" for numbers outside 1-75.
func Letter(n int) string {
	if n < 1 || n > MaxNumber {
		return ""
	}
	return string("BINGO"[(n-1)/ColumnSpan])
}
