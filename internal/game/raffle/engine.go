// Package raffle implements the raffle lifecycle: ticket sales and
// reservations, reservation review, and the winning draw.
//
// As with the bingo engine, every function validates before it mutates and
// callers serialize access per raffle.
package raffle

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
)

// MinTickets is the smallest raffle that can be created.
const MinTickets = 2

// Params describes a new raffle.
type Params struct {
	ID           string
	OrganizerID  int64
	Name         string
	Prize        int64
	TicketPrice  int64
	TotalTickets int
	MaxTickets   int
	Mode         model.Mode
	CreatedAt    time.Time
}

// NewRaffle validates p and returns a waiting raffle with tickets numbered
// 0..TotalTickets-1, all available.
func NewRaffle(p Params) (*model.Raffle, error) {
	name := strings.TrimSpace(p.Name)
	switch {
	case p.ID == "":
		return nil, fmt.Errorf("%w: raffle id is required", game.ErrValidation)
	case name == "":
		return nil, fmt.Errorf("%w: raffle name is required", game.ErrValidation)
	case p.Prize <= 0:
		return nil, fmt.Errorf("%w: prize must be positive", game.ErrValidation)
	case p.TicketPrice <= 0:
		return nil, fmt.Errorf("%w: ticket price must be positive", game.ErrValidation)
	case p.TotalTickets < MinTickets:
		return nil, fmt.Errorf("%w: a raffle needs at least %d tickets", game.ErrValidation, MinTickets)
	case p.MaxTickets > 0 && p.TotalTickets > p.MaxTickets:
		return nil, fmt.Errorf("%w: a raffle can have at most %d tickets", game.ErrValidation, p.MaxTickets)
	case !p.Mode.Valid():
		return nil, fmt.Errorf("%w: unknown mode %q", game.ErrValidation, p.Mode)
	}

	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tickets := make([]model.Ticket, p.TotalTickets)
	for i := range tickets {
		tickets[i] = model.Ticket{Number: i, Status: model.TicketAvailable}
	}

	return &model.Raffle{
		ID:          p.ID,
		OrganizerID: p.OrganizerID,
		Name:        name,
		Prize:       p.Prize,
		TicketPrice: p.TicketPrice,
		Mode:        p.Mode,
		Status:      model.RaffleWaiting,
		Tickets:     tickets,
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

func ticket(r *model.Raffle, n int) (*model.Ticket, error) {
	if n < 0 || n >= len(r.Tickets) {
		return nil, fmt.Errorf("%w: ticket %d outside 0-%d", game.ErrValidation, n, len(r.Tickets)-1)
	}
	return &r.Tickets[n], nil
}

// checkSelection validates that numbers is a non-empty set of distinct,
// available tickets on a waiting raffle.
func checkSelection(r *model.Raffle, buyerID int64, numbers []int) error {
	if r.Status != model.RaffleWaiting {
		return fmt.Errorf("%w: raffle is %s", game.ErrInvalidStateTransition, r.Status)
	}
	if buyerID == r.OrganizerID {
		return fmt.Errorf("%w: organizer cannot buy tickets in their own raffle", game.ErrValidation)
	}
	if len(numbers) == 0 {
		return fmt.Errorf("%w: select at least one ticket", game.ErrValidation)
	}

	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		t, err := ticket(r, n)
		if err != nil {
			return err
		}
		if seen[n] {
			return fmt.Errorf("%w: ticket %d selected twice", game.ErrValidation, n)
		}
		seen[n] = true
		if t.Status != model.TicketAvailable {
			return fmt.Errorf("%w: ticket %d is %s", game.ErrInvalidStateTransition, n, t.Status)
		}
	}
	return nil
}

// Cost returns the price of count tickets.
func Cost(r *model.Raffle, count int) int64 {
	return r.TicketPrice * int64(count)
}

// CheckPurchase validates a purchase and returns its cost without changing
// the raffle.
func CheckPurchase(r *model.Raffle, buyerID int64, numbers []int) (int64, error) {
	if err := checkSelection(r, buyerID, numbers); err != nil {
		return 0, err
	}
	return Cost(r, len(numbers)), nil
}

// Purchase marks the tickets sold to buyerID and returns the total cost.
// The caller debits the buyer.
func Purchase(r *model.Raffle, buyerID int64, numbers []int) (int64, error) {
	cost, err := CheckPurchase(r, buyerID, numbers)
	if err != nil {
		return 0, err
	}
	for _, n := range numbers {
		owner := buyerID
		r.Tickets[n] = model.Ticket{Number: n, Status: model.TicketSold, OwnerID: &owner}
	}
	r.UpdatedAt = time.Now()
	return cost, nil
}

// Reserve holds the tickets for buyerID pending review of the attached
// payment proof. Nothing is debited. The proof is stored as given.
func Reserve(r *model.Raffle, buyerID int64, numbers []int, proof string) error {
	if strings.TrimSpace(proof) == "" {
		return fmt.Errorf("%w: payment proof is required", game.ErrValidation)
	}
	if err := checkSelection(r, buyerID, numbers); err != nil {
		return err
	}
	for _, n := range numbers {
		owner := buyerID
		p := proof
		r.Tickets[n] = model.Ticket{Number: n, Status: model.TicketReserved, OwnerID: &owner, PaymentProof: &p}
	}
	r.UpdatedAt = time.Now()
	return nil
}

func reservedTicket(r *model.Raffle, actorID int64, n int) (*model.Ticket, error) {
	if actorID != r.OrganizerID {
		return nil, game.ErrNotOrganizer
	}
	if r.Status != model.RaffleWaiting {
		return nil, fmt.Errorf("%w: raffle is %s", game.ErrInvalidStateTransition, r.Status)
	}
	t, err := ticket(r, n)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TicketReserved {
		return nil, fmt.Errorf("%w: ticket %d is %s, not reserved", game.ErrInvalidStateTransition, n, t.Status)
	}
	return t, nil
}

// Approve confirms a reservation: the ticket becomes sold and keeps its
// owner. Funding is assumed to have happened outside the platform.
func Approve(r *model.Raffle, actorID int64, n int) error {
	t, err := reservedTicket(r, actorID, n)
	if err != nil {
		return err
	}
	t.Status = model.TicketSold
	r.UpdatedAt = time.Now()
	return nil
}

// Reject releases a reservation: the ticket is available again and its
// owner and proof are cleared.
func Reject(r *model.Raffle, actorID int64, n int) error {
	t, err := reservedTicket(r, actorID, n)
	if err != nil {
		return err
	}
	*t = model.Ticket{Number: n, Status: model.TicketAvailable}
	r.UpdatedAt = time.Now()
	return nil
}

// SoldNumbers returns the sold ticket numbers, ascending.
func SoldNumbers(r *model.Raffle) []int {
	var sold []int
	for _, t := range r.Tickets {
		if t.Status == model.TicketSold {
			sold = append(sold, t.Number)
		}
	}
	return sold
}

func checkDraw(r *model.Raffle, actorID int64) error {
	if actorID != r.OrganizerID {
		return game.ErrNotOrganizer
	}
	if r.Status != model.RaffleWaiting {
		return fmt.Errorf("%w: raffle is %s", game.ErrInvalidStateTransition, r.Status)
	}
	return nil
}

func finish(r *model.Raffle, n int) {
	number := n
	owner := *r.Tickets[n].OwnerID
	r.WinnerTicket = &number
	r.WinnerID = &owner
	r.Status = model.RaffleFinished
	r.UpdatedAt = time.Now()
}

// DrawAuto picks a uniformly random sold ticket as the winner and finishes
// the raffle. It fails if no ticket is sold.
func DrawAuto(r *model.Raffle, actorID int64, rnd game.Rand) (int, error) {
	if err := checkDraw(r, actorID); err != nil {
		return 0, err
	}
	sold := SoldNumbers(r)
	if len(sold) == 0 {
		return 0, fmt.Errorf("%w: no tickets sold", game.ErrInvalidStateTransition)
	}
	n := sold[rnd.IntN(len(sold))]
	finish(r, n)
	return n, nil
}

// DrawManual declares ticket n the winner. The ticket must exist and be
// sold.
func DrawManual(r *model.Raffle, actorID int64, n int) error {
	if err := checkDraw(r, actorID); err != nil {
		return err
	}
	t, err := ticket(r, n)
	if err != nil {
		return err
	}
	if t.Status != model.TicketSold {
		return fmt.Errorf("%w: ticket %d is %s, not sold", game.ErrInvalidStateTransition, n, t.Status)
	}
	finish(r, n)
	return nil
}

// DeleteRefund reports what deleting the raffle returns to the organizer.
// A waiting raffle with no sold or reserved tickets refunds the prize. A
// waiting raffle that has sold or reserved tickets cannot be deleted. A
// finished raffle is deleted without refund once its winner is paid.
func DeleteRefund(r *model.Raffle, actorID int64) (int64, error) {
	if actorID != r.OrganizerID {
		return 0, game.ErrNotOrganizer
	}
	if r.Status == model.RaffleFinished {
		if r.WinnerID != nil && !r.PayoutComplete {
			return 0, fmt.Errorf("%w: raffle payout is still pending", game.ErrInvalidStateTransition)
		}
		return 0, nil
	}
	if taken := slices.IndexFunc(r.Tickets, func(t model.Ticket) bool {
		return t.Status != model.TicketAvailable
	}); taken >= 0 {
		return 0, fmt.Errorf("%w: raffle already has sold or reserved tickets", game.ErrInvalidStateTransition)
	}
	return r.Prize, nil
}

// ParseNumbers parses a comma or space separated ticket list such as
// "1,2, 7".
func ParseNumbers(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a ticket number", game.ErrValidation, f)
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%w: no ticket numbers given", game.ErrValidation)
	}
	return nums, nil
}
