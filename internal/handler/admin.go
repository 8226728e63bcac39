package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/model"
	"bingo-platform/internal/service"
)

// AdminHandler handles admin commands. Callers are checked by the admin
// middleware.
type AdminHandler struct {
	accountService *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService) *AdminHandler {
	return &AdminHandler{accountService: accountService}
}

type balanceOp func(ctx context.Context, id int64, amount int64) (*model.User, error)

// HandleAdminAdd handles /admin_add <user_id> <amount>.
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	return h.adjust(c, "admin_add", h.accountService.AdminAdd)
}

// HandleAdminSub handles /admin_sub <user_id> <amount>. The balance does
// not go below zero.
func (h *AdminHandler) HandleAdminSub(c tele.Context) error {
	return h.adjust(c, "admin_sub", h.accountService.AdminSub)
}

// HandleAdminSet handles /admin_set <user_id> <balance>.
func (h *AdminHandler) HandleAdminSet(c tele.Context) error {
	return h.adjust(c, "admin_set", h.accountService.AdminSet)
}

func (h *AdminHandler) adjust(c tele.Context, op string, fn balanceOp) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 2 {
		return c.Reply(fmt.Sprintf("❌ Usage: /%s <user_id> <amount>\nExample: /%s 123456789 100", op, op))
	}
	targetID, err := parseUserID(args[0])
	if err != nil {
		return replyError(c, err)
	}
	amount, err := parseInt(args[1])
	if err != nil {
		return replyError(c, err)
	}

	user, err := fn(context.Background(), targetID, amount)
	if err != nil {
		return replyError(c, err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", op).
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n"+
			"👤 User: %s (ID: %d)\n"+
			"💰 Balance: %d credits",
		displayName(user), targetID, user.Balance,
	))
}

// HandleAdminRole handles /admin_role <user_id> <user|organizer>.
func (h *AdminHandler) HandleAdminRole(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Reply("❌ Usage: /admin_role <user_id> <user|organizer>")
	}
	targetID, err := parseUserID(args[0])
	if err != nil {
		return replyError(c, err)
	}

	user, err := h.accountService.SetRole(context.Background(), sender.ID, targetID, model.Role(args[1]))
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ %s is now %s", displayName(user), user.Role))
}
