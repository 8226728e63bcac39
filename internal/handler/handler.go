// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
	"bingo-platform/internal/service"
)

// errNoSender is returned for updates without a sender, which are ignored.
var errNoSender = errors.New("update has no sender")

// ensureSender registers the sender on first contact and returns the
// account.
func ensureSender(ctx context.Context, accounts *service.AccountService, c tele.Context) (*model.User, error) {
	sender := c.Sender()
	if sender == nil {
		return nil, errNoSender
	}
	name := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	user, _, err := accounts.EnsureUser(ctx, sender.ID, sender.Username, name)
	return user, err
}

// replyError answers with a user-facing message for err.
func replyError(c tele.Context, err error) error {
	if errors.Is(err, errNoSender) {
		return nil
	}
	return c.Reply(userMessage(err))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrInsufficientBalance):
		return "❌ Insufficient balance"
	case errors.Is(err, game.ErrNotOrganizer):
		return "❌ Only the organizer can do that"
	case errors.Is(err, service.ErrForbidden):
		return "❌ Permission denied"
	case errors.Is(err, game.ErrNotFound):
		return "❌ Not found"
	case errors.Is(err, game.ErrValidation),
		errors.Is(err, game.ErrInvalidStateTransition),
		errors.Is(err, game.ErrDuplicateCall):
		return "❌ " + capitalize(err.Error())
	}
	log.Error().Err(err).Msg("Command failed")
	return "❌ Something went wrong, please try again later"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, service.ErrInvalidAmount
	}
	return n, nil
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", game.ErrValidation, s)
	}
	return n, nil
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id %q", game.ErrValidation, s)
	}
	return id, nil
}

func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", game.ErrValidation, s)
	}
	return n, nil
}

func parseMode(s string) (model.Mode, error) {
	switch strings.ToLower(s) {
	case "auto", "automatic":
		return model.ModeAutomatic, nil
	case "manual":
		return model.ModeManual, nil
	}
	return "", fmt.Errorf("%w: mode must be auto or manual", game.ErrValidation)
}

// displayName renders a user for chat output.
func displayName(u *model.User) string {
	switch {
	case u == nil:
		return "unknown"
	case u.Username != "":
		return "@" + u.Username
	case u.Name != "":
		return u.Name
	}
	return fmt.Sprintf("User%d", u.ID)
}

const rule = "━━━━━━━━━━━━━━━"
