package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-platform/internal/model"
)

// MessageRepository persists direct messages.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository instance.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create inserts a message.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	const query = `
		INSERT INTO messages (id, sender_id, receiver_id, text, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.pool.Exec(ctx, query, m.ID, m.SenderID, m.ReceiverID, m.Text, m.Read, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Conversation returns the latest messages between two users, oldest first.
func (r *MessageRepository) Conversation(ctx context.Context, a, b int64, limit int) ([]*model.Message, error) {
	const query = `
		SELECT id, sender_id, receiver_id, text, read, created_at FROM (
			SELECT id, sender_id, receiver_id, text, read, created_at
			FROM messages
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at DESC
			LIMIT $3
		) latest
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// MarkRead marks every message from sender to reader as read.
func (r *MessageRepository) MarkRead(ctx context.Context, reader, sender int64) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET read = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND NOT read
	`, reader, sender)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UnreadCounts returns unread message counts for reader, keyed by sender.
func (r *MessageRepository) UnreadCounts(ctx context.Context, reader int64) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND NOT read
		GROUP BY sender_id
	`, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			sender int64
			n      int
		)
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[sender] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread counts: %w", err)
	}
	return counts, nil
}

// Partners returns the users someone has exchanged messages with, most
// recent conversation first.
func (r *MessageRepository) Partners(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT partner FROM (
			SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS partner,
			       MAX(created_at) AS last_at
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
			GROUP BY partner
		) p
		ORDER BY last_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	var partners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		partners = append(partners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partners: %w", err)
	}
	return partners, nil
}
