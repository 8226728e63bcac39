// Package model defines the data models for the bingo platform.
package model

import (
	"time"

	"bingo-platform/internal/game/card"
	"bingo-platform/internal/game/pattern"
)

// Role is a user's role on the platform.
type Role string

// User roles.
const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// CanOrganize reports whether the role may create games and raffles.
func (r Role) CanOrganize() bool {
	return r == RoleOrganizer || r == RoleAdmin
}

// User represents a platform account.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Name      string    `db:"name" json:"name"`
	Role      Role      `db:"role" json:"role"`
	Balance   int64     `db:"balance" json:"balance"`
	Avatar    string    `db:"avatar" json:"avatar"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the name, falling back to the username and then the ID.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "user"
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial          = "initial"           // Initial balance on account creation
	TxTypeTransfer         = "transfer"          // User-to-user transfer
	TxTypeGameCreate       = "game_create"       // Organizer funds a bingo prize
	TxTypeGameRefund       = "game_refund"       // Prize returned when a waiting game is deleted
	TxTypeCardPurchase     = "card_purchase"     // Bingo card bought
	TxTypeRaffleCreate     = "raffle_create"     // Organizer funds a raffle prize
	TxTypeRaffleRefund     = "raffle_refund"     // Prize returned when a raffle is deleted
	TxTypeTicketPurchase   = "ticket_purchase"   // Raffle tickets bought with credits
	TxTypePayoutWin        = "payout_win"        // Prize share credited to a winner
	TxTypePayoutCommission = "payout_commission" // Commission credited to the admin
	TxTypeCreditRequest    = "credit_request"    // Approved top-up request
	TxTypeAdminAdd         = "admin_add"         // Admin added balance
	TxTypeAdminSub         = "admin_sub"         // Admin subtracted balance
	TxTypeAdminSet         = "admin_set"         // Admin set balance
)

// Mode selects how numbers are called or a raffle winner is drawn.
type Mode string

// Modes.
const (
	ModeAutomatic Mode = "automatic"
	ModeManual    Mode = "manual"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAutomatic || m == ModeManual
}

// GameStatus is the lifecycle state of a bingo game.
type GameStatus string

// Game statuses, in lifecycle order.
const (
	GameWaiting    GameStatus = "waiting"
	GameInProgress GameStatus = "in_progress"
	GameFinished   GameStatus = "finished"
)

// Player is a participant in a bingo game and the cards they bought.
type Player struct {
	UserID int64       `json:"user_id"`
	Cards  []card.Card `json:"cards"`
}

// Game is a bingo game.
type Game struct {
	ID             string       `json:"id"`
	OrganizerID    int64        `json:"organizer_id"`
	Prize          int64        `json:"prize"`
	CardPrice      int64        `json:"card_price"`
	Pot            int64        `json:"pot"`
	Pattern        pattern.Kind `json:"pattern"`
	Mode           Mode         `json:"mode"`
	Status         GameStatus   `json:"status"`
	CalledNumbers  []int        `json:"called_numbers"`
	Players        []Player     `json:"players"`
	Winners        []int64      `json:"winners"`
	PayoutComplete bool         `json:"payout_complete"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Player returns the roster entry for a user, or nil.
func (g *Game) Player(userID int64) *Player {
	for i := range g.Players {
		if g.Players[i].UserID == userID {
			return &g.Players[i]
		}
	}
	return nil
}

// CardCount returns the total number of cards sold.
func (g *Game) CardCount() int {
	n := 0
	for _, p := range g.Players {
		n += len(p.Cards)
	}
	return n
}

// LastCalled returns the most recent called number, or 0.
func (g *Game) LastCalled() int {
	if len(g.CalledNumbers) == 0 {
		return 0
	}
	return g.CalledNumbers[len(g.CalledNumbers)-1]
}

// Clone returns a deep copy so a failed operation can be discarded.
func (g *Game) Clone() *Game {
	c := *g
	c.CalledNumbers = append([]int(nil), g.CalledNumbers...)
	c.Winners = append([]int64(nil), g.Winners...)
	c.Players = make([]Player, len(g.Players))
	for i, p := range g.Players {
		c.Players[i] = Player{UserID: p.UserID, Cards: append([]card.Card(nil), p.Cards...)}
	}
	return &c
}

// RaffleStatus is the lifecycle state of a raffle.
type RaffleStatus string

// Raffle statuses.
const (
	RaffleWaiting  RaffleStatus = "waiting"
	RaffleFinished RaffleStatus = "finished"
)

// TicketStatus is the state of a single raffle ticket.
type TicketStatus string

// Ticket statuses.
const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketSold      TicketStatus = "sold"
)

// Ticket is one numbered raffle ticket. OwnerID is set only while the ticket
// is reserved or sold.
type Ticket struct {
	Number       int          `json:"number"`
	Status       TicketStatus `json:"status"`
	OwnerID      *int64       `json:"owner_id,omitempty"`
	PaymentProof *string      `json:"payment_proof,omitempty"`
}

// Raffle is a numbered-ticket raffle.
type Raffle struct {
	ID             string       `json:"id"`
	OrganizerID    int64        `json:"organizer_id"`
	Name           string       `json:"name"`
	Prize          int64        `json:"prize"`
	TicketPrice    int64        `json:"ticket_price"`
	Mode           Mode         `json:"mode"`
	Status         RaffleStatus `json:"status"`
	Tickets        []Ticket     `json:"tickets"`
	WinnerTicket   *int         `json:"winner_ticket,omitempty"`
	WinnerID       *int64       `json:"winner_id,omitempty"`
	PayoutComplete bool         `json:"payout_complete"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CountByStatus returns how many tickets are in the given status.
func (r *Raffle) CountByStatus(s TicketStatus) int {
	n := 0
	for _, t := range r.Tickets {
		if t.Status == s {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so a failed operation can be discarded.
func (r *Raffle) Clone() *Raffle {
	c := *r
	c.Tickets = make([]Ticket, len(r.Tickets))
	for i, t := range r.Tickets {
		c.Tickets[i] = t
		if t.OwnerID != nil {
			id := *t.OwnerID
			c.Tickets[i].OwnerID = &id
		}
		if t.PaymentProof != nil {
			p := *t.PaymentProof
			c.Tickets[i].PaymentProof = &p
		}
	}
	if r.WinnerTicket != nil {
		n := *r.WinnerTicket
		c.WinnerTicket = &n
	}
	if r.WinnerID != nil {
		id := *r.WinnerID
		c.WinnerID = &id
	}
	return &c
}

// CreditRequestStatus is the state of a top-up request.
type CreditRequestStatus string

// Credit request statuses.
const (
	CreditPending  CreditRequestStatus = "pending"
	CreditApproved CreditRequestStatus = "approved"
	CreditRejected CreditRequestStatus = "rejected"
)

// CreditRequest asks an organizer or admin to top up a user's balance.
type CreditRequest struct {
	ID           string              `json:"id"`
	FromUserID   int64               `json:"from_user_id"`
	ToUserID     int64               `json:"to_user_id"`
	Amount       int64               `json:"amount"`
	Status       CreditRequestStatus `json:"status"`
	PaymentProof *string             `json:"payment_proof,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	ResolvedAt   *time.Time          `json:"resolved_at,omitempty"`
}

// Message is a direct chat message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Text       string    `json:"text"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	TotalCommission  int64 `json:"total_commission"`
	GameCommission   int64 `json:"game_commission"`
	RaffleCommission int64 `json:"raffle_commission"`
	ActiveRaffles    int   `json:"active_raffles"`
	ActiveGames      int   `json:"active_games"`
	Organizers       int   `json:"organizers"`
	Players          int   `json:"players"`
}
