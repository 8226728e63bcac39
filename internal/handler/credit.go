package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/service"
)

// CreditHandler handles credit requests and private messages.
type CreditHandler struct {
	accountService *service.AccountService
	creditService  *service.CreditService
	chatService    *service.ChatService
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(accountService *service.AccountService, creditService *service.CreditService, chatService *service.ChatService) *CreditHandler {
	return &CreditHandler{
		accountService: accountService,
		creditService:  creditService,
		chatService:    chatService,
	}
}

// HandleRequest handles /request <to_user_id> <amount> [proof].
func (h *CreditHandler) HandleRequest(c tele.Context) error {
	ctx := context.Background()
	user, err := ensureSender(ctx, h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /request <to_user_id> <amount> [proof]")
	}
	to, err := parseUserID(args[0])
	if err != nil {
		return replyError(c, err)
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return replyError(c, err)
	}

	cr, err := h.creditService.Request(ctx, user.ID, to, amount, strings.Join(args[2:], " "))
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("📨 Requested %d credits from %d\nRequest ID: %s", cr.Amount, cr.ToUserID, cr.ID))
}

// HandleRequests handles /requests: pending requests addressed to the
// sender and the sender's own requests.
func (h *CreditHandler) HandleRequests(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := context.Background()
	pending, err := h.creditService.ListPending(ctx, sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	mine, err := h.creditService.ListByUser(ctx, sender.ID)
	if err != nil {
		return replyError(c, err)
	}

	var b strings.Builder
	b.WriteString("📥 Waiting for you\n" + rule + "\n")
	if len(pending) == 0 {
		b.WriteString("none\n")
	}
	for _, cr := range pending {
		fmt.Fprintf(&b, "%s\n  from %d: %d credits", cr.ID, cr.FromUserID, cr.Amount)
		if cr.PaymentProof != nil {
			fmt.Fprintf(&b, " (proof: %s)", *cr.PaymentProof)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n📤 Your requests\n" + rule + "\n")
	if len(mine) == 0 {
		b.WriteString("none\n")
	}
	for _, cr := range mine {
		fmt.Fprintf(&b, "%s\n  to %d: %d credits, %s\n", cr.ID, cr.ToUserID, cr.Amount, cr.Status)
	}
	return c.Reply(b.String())
}

// HandleApproveCredit handles /approve_credit <id>.
func (h *CreditHandler) HandleApproveCredit(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) != 1 {
		return c.Reply("❌ Usage: /approve_credit <request_id>")
	}
	cr, err := h.creditService.Approve(context.Background(), c.Args()[0], sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ Sent %d credits to %d", cr.Amount, cr.FromUserID))
}

// HandleRejectCredit handles /reject_credit <id>.
func (h *CreditHandler) HandleRejectCredit(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) != 1 {
		return c.Reply("❌ Usage: /reject_credit <request_id>")
	}
	if _, err := h.creditService.Reject(context.Background(), c.Args()[0], sender.ID); err != nil {
		return replyError(c, err)
	}
	return c.Reply("↩️ Request rejected")
}

// HandleMsg handles /msg <user_id> <text>.
func (h *CreditHandler) HandleMsg(c tele.Context) error {
	ctx := context.Background()
	user, err := ensureSender(ctx, h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /msg <user_id> <text>")
	}
	to, err := parseUserID(args[0])
	if err != nil {
		return replyError(c, err)
	}
	if _, err := h.chatService.Send(ctx, user.ID, to, strings.Join(args[1:], " ")); err != nil {
		return replyError(c, err)
	}
	return c.Reply("✉️ Message sent")
}

// HandleInbox handles /inbox: unread messages per partner, marked read
// once shown.
func (h *CreditHandler) HandleInbox(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := context.Background()
	counts, err := h.chatService.UnreadCounts(ctx, sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	if len(counts) == 0 {
		return c.Reply("📭 No unread messages")
	}

	partners, err := h.chatService.Partners(ctx, sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	var b strings.Builder
	b.WriteString("📬 Inbox\n" + rule + "\n")
	for _, partner := range partners {
		if counts[partner] == 0 {
			continue
		}
		msgs, err := h.chatService.Conversation(ctx, sender.ID, partner, 100)
		if err != nil {
			return replyError(c, err)
		}
		for _, m := range msgs {
			if m.SenderID == partner && !m.Read {
				fmt.Fprintf(&b, "%d: %s\n", partner, m.Text)
			}
		}
		if _, err := h.chatService.MarkRead(ctx, sender.ID, partner); err != nil {
			return replyError(c, err)
		}
	}
	b.WriteString(rule)
	return c.Reply(b.String())
}
