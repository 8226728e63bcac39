package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
)

// MaxMessageLength is the longest accepted message, in characters.
const MaxMessageLength = 2000

// ChatService handles direct messages between users.
type ChatService struct {
	messages MessageStore
	users    UserStore
}

// NewChatService creates a new ChatService instance.
func NewChatService(messages MessageStore, users UserStore) *ChatService {
	return &ChatService{messages: messages, users: users}
}

// Send delivers a message.
func (s *ChatService) Send(ctx context.Context, fromID, toID int64, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", game.ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", game.ErrValidation, MaxMessageLength)
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot message yourself", game.ErrValidation)
	}
	if _, err := s.users.GetByID(ctx, toID); err != nil {
		return nil, err
	}

	m := &model.Message{
		ID:         uuid.NewString(),
		SenderID:   fromID,
		ReceiverID: toID,
		Text:       text,
		CreatedAt:  time.Now(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Conversation returns the latest messages between two users, oldest first.
func (s *ChatService) Conversation(ctx context.Context, a, b int64, limit int) ([]*model.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.messages.Conversation(ctx, a, b, limit)
}

// MarkRead marks everything partner sent to reader as read.
func (s *ChatService) MarkRead(ctx context.Context, reader, partner int64) (int, error) {
	return s.messages.MarkRead(ctx, reader, partner)
}

// UnreadCounts returns unread counts per sender.
func (s *ChatService) UnreadCounts(ctx context.Context, reader int64) (map[int64]int, error) {
	return s.messages.UnreadCounts(ctx, reader)
}

// Partners lists the users someone has talked to.
func (s *ChatService) Partners(ctx context.Context, userID int64) ([]int64, error) {
	return s.messages.Partners(ctx, userID)
}
