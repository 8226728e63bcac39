package bingo

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/card"
	"bingo-platform/internal/game/pattern"
	"bingo-platform/internal/model"
)

// TestCallIdempotenceProperty checks that calling a number twice never
// changes the called sequence the second time.
func TestCallIdempotenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g, _ := NewGame(Params{ID: "p", OrganizerID: 1, Prize: 10, CardPrice: 1, Pattern: pattern.FullHouse, Mode: model.ModeManual})
		_ = Start(g, 1)

		nums := rapid.SliceOfNDistinct(rapid.IntRange(1, card.MaxNumber), 1, 40, rapid.ID[int]).Draw(t, "nums")
		for _, n := range nums {
			if _, err := Call(g, n); err != nil {
				t.Fatalf("first call of %d failed: %v", n, err)
			}
		}

		again := rapid.SampledFrom(nums).Draw(t, "again")
		before := slices.Clone(g.CalledNumbers)
		_, err := Call(g, again)
		if err == nil {
			t.Fatalf("second call of %d succeeded", again)
		}
		if !slices.Equal(before, g.CalledNumbers) {
			t.Fatalf("called numbers changed: %v -> %v", before, g.CalledNumbers)
		}
	})
}

// TestCalledNumbersInvariantProperty checks that automatic draws keep the
// called sequence unique and inside 1-75, and stop once someone wins.
func TestCalledNumbersInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.SampledFrom(pattern.All()).Draw(t, "pattern")
		g, _ := NewGame(Params{ID: "p", OrganizerID: 1, Prize: 10, CardPrice: 1, Pattern: k, Mode: model.ModeAutomatic})

		players := rapid.IntRange(0, 4).Draw(t, "players")
		r := game.NewSeededRand(rapid.Uint64().Draw(t, "seed"))
		for p := 0; p < players; p++ {
			_ = AddCard(g, int64(p+2), card.Generate(r))
		}
		_ = Start(g, 1)

		for g.Status == model.GameInProgress {
			if _, err := DrawNext(g, r); err != nil {
				t.Fatalf("draw failed: %v", err)
			}
		}

		seen := map[int]bool{}
		for _, n := range g.CalledNumbers {
			if n < 1 || n > card.MaxNumber || seen[n] {
				t.Fatalf("bad called sequence %v", g.CalledNumbers)
			}
			seen[n] = true
		}
		if players > 0 && len(g.Winners) == 0 {
			t.Fatalf("players held cards but nobody won after %d calls", len(g.CalledNumbers))
		}
		if len(g.Winners) > 0 {
			// The game stops at the first winning call.
			prefix := g.Clone()
			prefix.CalledNumbers = prefix.CalledNumbers[:len(prefix.CalledNumbers)-1]
			if len(Winners(prefix)) > 0 {
				t.Fatalf("game kept calling after a win")
			}
		}
	})
}

// TestWinnersOrderIndependentProperty checks that the winner set depends on
// which numbers were called, not on the order they were called in.
func TestWinnersOrderIndependentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.SampledFrom(pattern.All()).Draw(t, "pattern")
		r := game.NewSeededRand(rapid.Uint64().Draw(t, "seed"))

		g := &model.Game{Pattern: k}
		for p := 0; p < 3; p++ {
			g.Players = append(g.Players, model.Player{UserID: int64(p + 2), Cards: []card.Card{card.Generate(r)}})
		}
		g.CalledNumbers = rapid.SliceOfDistinct(rapid.IntRange(1, card.MaxNumber), rapid.ID[int]).Draw(t, "called")

		want := Winners(g)

		shuffled := g.Clone()
		rev := slices.Clone(shuffled.CalledNumbers)
		slices.Reverse(rev)
		shuffled.CalledNumbers = rev

		if !slices.Equal(want, Winners(shuffled)) {
			t.Fatalf("winners depend on call order: %v vs %v", want, Winners(shuffled))
		}
	})
}
