package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"bingo-platform/internal/game"
)

// TestGenerateValidProperty checks that every generated card keeps each
// column inside its range, has no duplicates in a column and a free center.
func TestGenerateValidProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		c := Generate(game.NewSeededRand(seed))

		if err := c.Validate(); err != nil {
			t.Fatalf("generated card invalid: %v\n%v", err, c)
		}
		if c[Center][Center] != Free {
			t.Fatalf("center should be free, got %d", c[Center][Center])
		}
		for col := 0; col < Size; col++ {
			lo, hi := ColumnRange(col)
			for row := 0; row < Size; row++ {
				if c.IsFree(row, col) {
					continue
				}
				if c[row][col] < lo || c[row][col] > hi {
					t.Fatalf("cell (%d,%d)=%d outside %d-%d", row, col, c[row][col], lo, hi)
				}
			}
		}
	})
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(game.NewSeededRand(42))
	b := Generate(game.NewSeededRand(42))
	assert.Equal(t, a, b)
}

func TestNew_Valid(t *testing.T) {
	for i := 0; i < 100; i++ {
		require.NoError(t, New().Validate())
	}
}

func TestColumnRange(t *testing.T) {
	tests := []struct {
		col    int
		lo, hi int
	}{
		{0, 1, 15},
		{1, 16, 30},
		{2, 31, 45},
		{3, 46, 60},
		{4, 61, 75},
	}
	for _, tt := range tests {
		lo, hi := ColumnRange(tt.col)
		assert.Equal(t, tt.lo, lo, "col %d", tt.col)
		assert.Equal(t, tt.hi, hi, "col %d", tt.col)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	c := Generate(game.NewSeededRand(7))
	cells := c.Flatten()
	require.Len(t, cells, Size*Size)
	assert.Equal(t, int32(Free), cells[Center*Size+Center])

	back, err := FromCells(cells)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestFromCells_Rejects(t *testing.T) {
	_, err := FromCells([]int32{1, 2, 3})
	assert.ErrorIs(t, err, game.ErrValidation)

	c := Generate(game.NewSeededRand(1))
	cells := c.Flatten()
	cells[0] = 16 // B column holds 1-15
	_, err = FromCells(cells)
	assert.ErrorIs(t, err, game.ErrValidation)

	cells = c.Flatten()
	cells[Size] = cells[0] // duplicate in column B
	_, err = FromCells(cells)
	assert.ErrorIs(t, err, game.ErrValidation)

	cells = c.Flatten()
	cells[Center*Size+Center] = 33
	_, err = FromCells(cells)
	assert.ErrorIs(t, err, game.ErrValidation)
}

func TestNumbers(t *testing.T) {
	c := Generate(game.NewSeededRand(3))
	nums := c.Numbers()
	assert.Len(t, nums, 24)
	assert.NotContains(t, nums, Free)
}

func TestLetter(t *testing.T) {
	assert.Equal(t, "B", Letter(1))
	assert.Equal(t, "B", Letter(15))
	assert.Equal(t, "I", Letter(16))
	assert.Equal(t, "N", Letter(45))
	assert.Equal(t, "G", Letter(46))
	assert.Equal(t, "O", Letter(75))
	assert.Equal(t, "", Letter(0))
	assert.Equal(t, "", Letter(76))
}
