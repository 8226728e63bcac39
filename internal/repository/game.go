package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-platform/internal/game/card"
	"bingo-platform/internal/model"
)

const gameColumns = `id, organizer_id, prize, card_price, pot, pattern, mode, status,
	called_numbers, winners, payout_complete, created_at, updated_at`

// GameRepository persists bingo games and their cards.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

func scanGame(row pgx.Row) (*model.Game, error) {
	var (
		g      model.Game
		called []int32
	)
	err := row.Scan(
		&g.ID,
		&g.OrganizerID,
		&g.Prize,
		&g.CardPrice,
		&g.Pot,
		&g.Pattern,
		&g.Mode,
		&g.Status,
		&called,
		&g.Winners,
		&g.PayoutComplete,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.CalledNumbers = toInts(called)
	return &g, nil
}

// Create debits the organizer's prize and inserts the game in one transaction.
func (r *GameRepository) Create(ctx context.Context, g *model.Game, funding Entry) error {
	const query = `
		INSERT INTO games (id, organizer_id, prize, card_price, pot, pattern, mode, status,
			called_numbers, winners, payout_complete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, $11, $11)
	`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := debit(ctx, tx, funding); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, query,
			g.ID, g.OrganizerID, g.Prize, g.CardPrice, g.Pot, g.Pattern, g.Mode, g.Status,
			toInt32s(g.CalledNumbers), nonNilInt64s(g.Winners), g.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert game: %w", err)
		}
		return nil
	})
}

// Get loads a game with its players and cards.
// Returns ErrGameNotFound if the game does not exist.
func (r *GameRepository) Get(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(r.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if err := r.loadCards(ctx, []*model.Game{g}); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns games in any of the given statuses (all when none are
// given), newest first.
func (r *GameRepository) List(ctx context.Context, statuses []model.GameStatus, limit int) ([]*model.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.query(ctx, query, statusStrings(statuses), limit)
}

// ListUnsettled returns finished games with winners whose payout has not
// been applied.
func (r *GameRepository) ListUnsettled(ctx context.Context) ([]*model.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'finished' AND cardinality(winners) > 0 AND NOT payout_complete
		ORDER BY updated_at
	`
	return r.query(ctx, query)
}

func (r *GameRepository) query(ctx context.Context, query string, args ...any) ([]*model.Game, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	rows.Close()

	if err := r.loadCards(ctx, games); err != nil {
		return nil, err
	}
	return games, nil
}

// loadCards fills in the players of each game, in purchase order.
func (r *GameRepository) loadCards(ctx context.Context, games []*model.Game) error {
	if len(games) == 0 {
		return nil
	}
	byID := make(map[string]*model.Game, len(games))
	ids := make([]string, len(games))
	for i, g := range games {
		byID[g.ID] = g
		ids[i] = g.ID
		g.Players = nil
	}

	const query = `
		SELECT game_id, player_id, cells
		FROM game_cards
		WHERE game_id = ANY($1::text[]::uuid[])
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			gameID   string
			playerID int64
			cells    []int32
		)
		if err := rows.Scan(&gameID, &playerID, &cells); err != nil {
			return fmt.Errorf("failed to scan card: %w", err)
		}
		c, err := card.FromCells(cells)
		if err != nil {
			return fmt.Errorf("corrupt card in game %s: %w", gameID, err)
		}
		g := byID[gameID]
		if p := g.Player(playerID); p != nil {
			p.Cards = append(p.Cards, c)
		} else {
			g.Players = append(g.Players, model.Player{UserID: playerID, Cards: []card.Card{c}})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating cards: %w", err)
	}
	return nil
}

// AddCard debits the buyer, stores the card and updates the pot in one
// transaction. The game must still be waiting.
func (r *GameRepository) AddCard(ctx context.Context, gameID string, buyerID int64, c card.Card, pot int64, payment Entry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE games SET pot = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'waiting'
		`, gameID, pot)
		if err != nil {
			return fmt.Errorf("failed to update pot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}
		if err := debit(ctx, tx, payment); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO game_cards (game_id, player_id, cells, created_at)
			VALUES ($1, $2, $3, NOW())
		`, gameID, buyerID, c.Flatten())
		if err != nil {
			return fmt.Errorf("failed to insert card: %w", err)
		}
		return nil
	})
}

// Save writes the mutable play state of a game: status, called numbers,
// winners and pot. A finished game is never overwritten.
func (r *GameRepository) Save(ctx context.Context, g *model.Game) error {
	const query = `
		UPDATE games
		SET status = $2, called_numbers = $3, winners = $4, pot = $5, updated_at = NOW()
		WHERE id = $1 AND status <> 'finished'
	`
	tag, err := r.pool.Exec(ctx, query, g.ID, g.Status, toInt32s(g.CalledNumbers), nonNilInt64s(g.Winners), g.Pot)
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// Delete applies refunds and removes the game in one transaction. Games in
// progress and finished games with an unpaid winner are left in place and
// ErrStaleState is returned.
func (r *GameRepository) Delete(ctx context.Context, id string, refunds []Entry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM games
			WHERE id = $1
			  AND (status = 'waiting'
			       OR (status = 'finished' AND (payout_complete OR cardinality(winners) = 0)))
		`, id)
		if err != nil {
			return fmt.Errorf("failed to delete game: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}
		for _, e := range refunds {
			if err := credit(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountByStatus returns the number of games in the given status.
func (r *GameRepository) CountByStatus(ctx context.Context, status model.GameStatus) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE status = $1`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nonNilInt64s(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}
