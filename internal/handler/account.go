package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// HandleStart handles the /start command. New users get an account with
// the configured initial balance.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	name := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	user, created, err := h.accountService.EnsureUser(ctx, sender.ID, sender.Username, name)
	if err != nil {
		return replyError(c, err)
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome %s!\n\n"+
				"Your account is ready with %d credits.\n\n"+
				"Commands:\n"+
				"/balance - show your balance\n"+
				"/games - open bingo games\n"+
				"/raffles - open raffles\n"+
				"/pay <user_id> <amount> - send credits\n"+
				"/request <user_id> <amount> - ask an organizer for credits\n"+
				"/msg <user_id> <text> - private message",
			displayName(user), user.Balance,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back %s!\n\nBalance: %d credits", displayName(user), user.Balance))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	user, err := ensureSender(context.Background(), h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("💰 Balance: %d credits (%s)", user.Balance, user.Role))
}
