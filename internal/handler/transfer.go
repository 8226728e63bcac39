package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/service"
)

// TransferHandler handles /pay.
type TransferHandler struct {
	accountService  *service.AccountService
	transferService *service.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(accountService *service.AccountService, transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{
		accountService:  accountService,
		transferService: transferService,
	}
}

// HandlePay handles the /pay command.
// Format: /pay <amount> as a reply to the recipient, or /pay <user_id> <amount>.
func (h *TransferHandler) HandlePay(c tele.Context) error {
	ctx := context.Background()
	if _, err := ensureSender(ctx, h.accountService, c); err != nil {
		return replyError(c, err)
	}

	var (
		targetID int64
		target   string
		amount   int64
		err      error
	)
	args := c.Args()
	msg := c.Message()
	switch {
	case len(args) == 1 && msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil:
		targetID = msg.ReplyTo.Sender.ID
		target = msg.ReplyTo.Sender.Username
		amount, err = parseAmount(args[0])
	case len(args) == 2:
		targetID, err = parseUserID(args[0])
		if err == nil {
			amount, err = parseAmount(args[1])
		}
	default:
		return c.Reply("❌ Usage: /pay <amount> (as a reply) or /pay <user_id> <amount>")
	}
	if err != nil {
		return replyError(c, err)
	}
	if target == "" {
		target = fmt.Sprintf("%d", targetID)
	}

	if err := h.transferService.Transfer(ctx, c.Sender().ID, targetID, amount); err != nil {
		return replyError(c, err)
	}

	balance, _ := h.accountService.GetBalance(ctx, c.Sender().ID)
	return c.Reply(fmt.Sprintf("✅ Sent %d credits to %s\n💰 Balance: %d credits", amount, target, balance))
}
