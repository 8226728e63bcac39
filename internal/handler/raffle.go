package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/game/raffle"
	"bingo-platform/internal/model"
	"bingo-platform/internal/service"
)

// RaffleHandler handles raffle commands.
type RaffleHandler struct {
	accountService *service.AccountService
	raffleService  *service.RaffleService
}

// NewRaffleHandler creates a new RaffleHandler.
func NewRaffleHandler(accountService *service.AccountService, raffleService *service.RaffleService) *RaffleHandler {
	return &RaffleHandler{
		accountService: accountService,
		raffleService:  raffleService,
	}
}

// HandleNewRaffle handles /newraffle <prize> <ticket_price> <tickets> <auto|manual> <name...>.
func (h *RaffleHandler) HandleNewRaffle(c tele.Context) error {
	ctx := context.Background()
	user, err := ensureSender(ctx, h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}

	args := c.Args()
	if len(args) < 5 {
		return c.Reply("❌ Usage: /newraffle <prize> <ticket_price> <tickets> <auto|manual> <name>")
	}
	prize, err := parseAmount(args[0])
	if err != nil {
		return replyError(c, err)
	}
	price, err := parseAmount(args[1])
	if err != nil {
		return replyError(c, err)
	}
	total, err := parseNumber(args[2])
	if err != nil {
		return replyError(c, err)
	}
	mode, err := parseMode(args[3])
	if err != nil {
		return replyError(c, err)
	}

	rf, err := h.raffleService.Create(ctx, user.ID, service.CreateRaffleInput{
		Name:         strings.Join(args[4:], " "),
		Prize:        prize,
		TicketPrice:  price,
		TotalTickets: total,
		Mode:         mode,
	})
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"🎟 Raffle \"%s\" created\n%s\n"+
			"ID: %s\n"+
			"Prize: %d | Ticket: %d\n"+
			"Tickets: 0-%d | Mode: %s\n%s\n"+
			"Buy with /buy %s <n,n,...>",
		rf.Name, rule, rf.ID, rf.Prize, rf.TicketPrice, len(rf.Tickets)-1, rf.Mode, rule, rf.ID,
	))
}

// HandleRaffles handles /raffles.
func (h *RaffleHandler) HandleRaffles(c tele.Context) error {
	raffles, err := h.raffleService.List(context.Background(), model.RaffleWaiting)
	if err != nil {
		return replyError(c, err)
	}
	if len(raffles) == 0 {
		return c.Reply("🎟 No open raffles")
	}

	var b strings.Builder
	b.WriteString("🎟 Open raffles\n" + rule + "\n")
	for _, rf := range raffles {
		fmt.Fprintf(&b, "%s\n  %s, prize %d, ticket %d, %d/%d available, %s\n",
			rf.ID, rf.Name, rf.Prize, rf.TicketPrice,
			rf.CountByStatus(model.TicketAvailable), len(rf.Tickets), rf.Mode)
	}
	b.WriteString(rule)
	return c.Reply(b.String())
}

// HandleBuy handles /buy <raffle_id> <n,n,...>, paid from the balance.
func (h *RaffleHandler) HandleBuy(c tele.Context) error {
	ctx := context.Background()
	user, err := ensureSender(ctx, h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /buy <raffle_id> <n,n,...>")
	}
	numbers, err := raffle.ParseNumbers(strings.Join(args[1:], ","))
	if err != nil {
		return replyError(c, err)
	}

	rf, err := h.raffleService.Purchase(ctx, args[0], user.ID, numbers)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("✅ Bought tickets %s for %d credits",
		formatNumbers(numbers), rf.TicketPrice*int64(len(numbers))))
}

// HandleReserve handles /reserve <raffle_id> <n,n,...> <proof>: tickets
// paid outside the platform, pending the organizer's approval.
func (h *RaffleHandler) HandleReserve(c tele.Context) error {
	ctx := context.Background()
	user, err := ensureSender(ctx, h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}
	args := c.Args()
	if len(args) < 3 {
		return c.Reply("❌ Usage: /reserve <raffle_id> <n,n,...> <proof>")
	}
	numbers, err := raffle.ParseNumbers(args[1])
	if err != nil {
		return replyError(c, err)
	}

	if _, err := h.raffleService.Reserve(ctx, args[0], user.ID, numbers, strings.Join(args[2:], " ")); err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("⏳ Tickets %s reserved, waiting for the organizer", formatNumbers(numbers)))
}

// HandleApprove handles /approve <raffle_id> <n>.
func (h *RaffleHandler) HandleApprove(c tele.Context) error {
	return h.review(c, "/approve", h.raffleService.Approve, "✅ Ticket %d approved")
}

// HandleReject handles /reject <raffle_id> <n>.
func (h *RaffleHandler) HandleReject(c tele.Context) error {
	return h.review(c, "/reject", h.raffleService.Reject, "↩️ Ticket %d released")
}

type reviewFunc func(ctx context.Context, raffleID string, actorID int64, n int) (*model.Raffle, error)

func (h *RaffleHandler) review(c tele.Context, cmd string, fn reviewFunc, done string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Reply(fmt.Sprintf("❌ Usage: %s <raffle_id> <ticket>", cmd))
	}
	n, err := parseNumber(args[1])
	if err != nil {
		return replyError(c, err)
	}
	if _, err := fn(context.Background(), args[0], sender.ID, n); err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(done, n))
}

// HandleDraw handles /draw <raffle_id> [n]. Manual raffles need the
// winning ticket.
func (h *RaffleHandler) HandleDraw(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 || len(args) > 2 {
		return c.Reply("❌ Usage: /draw <raffle_id> [ticket]")
	}
	var number *int
	if len(args) == 2 {
		n, err := parseNumber(args[1])
		if err != nil {
			return replyError(c, err)
		}
		number = &n
	}

	rf, result, err := h.raffleService.Draw(context.Background(), args[0], sender.ID, number)
	if err != nil {
		return replyError(c, err)
	}
	msg := fmt.Sprintf("🎉 Raffle \"%s\" drawn\nWinning ticket: %d\nWinner: %d",
		rf.Name, *rf.WinnerTicket, *rf.WinnerID)
	if result.Applied {
		msg += fmt.Sprintf("\nPrize paid: %d (commission %d)", result.Plan.PerWinner, result.Plan.Commission)
	}
	return c.Reply(msg)
}

func formatNumbers(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
