// Package servicetest provides in-memory stores for testing the services
// and the front ends built on them.
package servicetest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/card"
	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
	"bingo-platform/internal/repository"
)

// DB is an in-memory stand-in for the Postgres repositories with the same
// balance rules: debits need funds unless the user is an admin. The store
// views (Users, Games, ...) share one DB.
type DB struct {
	mu       sync.Mutex
	users    map[int64]*model.User
	txs      []*model.Transaction
	games    map[string]*model.Game
	raffles  map[string]*model.Raffle
	credits  map[string]*model.CreditRequest
	messages []*model.Message
	applies  int
}

// NewDB returns an empty store.
func NewDB() *DB {
	return &DB{
		users:   map[int64]*model.User{},
		games:   map[string]*model.Game{},
		raffles: map[string]*model.Raffle{},
		credits: map[string]*model.CreditRequest{},
	}
}

// AddUser creates or replaces a user.
func (d *DB) AddUser(id int64, role model.Role, balance int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = &model.User{ID: id, Username: "u", Role: role, Balance: balance, CreatedAt: time.Now()}
}

// Balance returns a user's balance.
func (d *DB) Balance(id int64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[id].Balance
}

// Total returns the sum of all balances.
func (d *DB) Total() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var sum int64
	for _, u := range d.users {
		sum += u.Balance
	}
	return sum
}

// SetRole changes a user's role directly.
func (d *DB) SetRole(id int64, role model.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id].Role = role
}

// DeleteUser removes a user.
func (d *DB) DeleteUser(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

// Applies returns how many settlements the ledger applied.
func (d *DB) Applies() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applies
}

// Users returns the user store view.
func (d *DB) Users() Users { return Users{d} }

// Transactions returns the transaction reader view.
func (d *DB) Transactions() Transactions { return Transactions{d} }

// Games returns the game store view.
func (d *DB) Games() Games { return Games{d} }

// Raffles returns the raffle store view.
func (d *DB) Raffles() Raffles { return Raffles{d} }

// Ledger returns the settlement ledger view.
func (d *DB) Ledger() Ledger { return Ledger{d} }

// Credits returns the credit request store view.
func (d *DB) Credits() Credits { return Credits{d} }

// Messages returns the message store view.
func (d *DB) Messages() Messages { return Messages{d} }

func (d *DB) checkDebit(e repository.Entry) error {
	u, ok := d.users[e.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if u.Role != model.RoleAdmin && u.Balance < e.Amount {
		return repository.ErrInsufficientBalance
	}
	return nil
}

func (d *DB) debit(e repository.Entry) {
	u := d.users[e.UserID]
	if u.Role != model.RoleAdmin {
		u.Balance -= e.Amount
	}
	d.record(e.UserID, -e.Amount, e.Type, e.Description)
}

func (d *DB) credit(e repository.Entry) error {
	u, ok := d.users[e.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Balance += e.Amount
	d.record(e.UserID, e.Amount, e.Type, e.Description)
	return nil
}

func (d *DB) record(userID, amount int64, txType, desc string) {
	d.txs = append(d.txs, &model.Transaction{
		ID: int64(len(d.txs) + 1), UserID: userID, Amount: amount, Type: txType, Description: &desc, CreatedAt: time.Now(),
	})
}

// Users implements the user store.
type Users struct{ *DB }

func (m Users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m Users) GetOrCreate(ctx context.Context, id int64, username, name string, role model.Role, initial int64) (*model.User, bool, error) {
	m.mu.Lock()
	if u, ok := m.users[id]; ok {
		c := *u
		m.mu.Unlock()
		return &c, false, nil
	}
	m.users[id] = &model.User{ID: id, Username: username, Name: name, Role: role, Balance: initial, CreatedAt: time.Now()}
	m.record(id, initial, model.TxTypeInitial, "")
	m.mu.Unlock()
	u, err := m.GetByID(ctx, id)
	return u, true, err
}

func (m Users) UpdateProfile(ctx context.Context, id int64, username, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Username, u.Name = username, name
	return nil
}

func (m Users) Adjust(ctx context.Context, id int64, e repository.Entry) (*model.User, error) {
	m.mu.Lock()
	e.UserID = id
	var err error
	if e.Amount < 0 {
		e.Amount = -e.Amount
		if err = m.checkDebit(e); err == nil {
			m.debit(e)
		}
	} else {
		err = m.credit(e)
	}
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m Users) SetBalance(ctx context.Context, id int64, balance int64, txType, desc string) (*model.User, error) {
	m.mu.Lock()
	u, ok := m.users[id]
	if !ok {
		m.mu.Unlock()
		return nil, repository.ErrUserNotFound
	}
	m.record(id, balance-u.Balance, txType, desc)
	u.Balance = balance
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m Users) Transfer(ctx context.Context, from, to repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDebit(from); err != nil {
		return err
	}
	if _, ok := m.users[to.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	m.debit(from)
	return m.credit(to)
}

func (m Users) SetRole(ctx context.Context, id int64, role model.Role) (*model.User, error) {
	m.mu.Lock()
	u, ok := m.users[id]
	if ok {
		u.Role = role
	}
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return m.GetByID(ctx, id)
}

func (m Users) SetAvatar(ctx context.Context, id int64, avatar string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Avatar = avatar
	return nil
}

func (m Users) FindAdmin(ctx context.Context) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var admin *model.User
	for _, u := range m.users {
		if u.Role == model.RoleAdmin && (admin == nil || u.ID < admin.ID) {
			admin = u
		}
	}
	if admin == nil {
		return nil, repository.ErrNoAdmin
	}
	c := *admin
	return &c, nil
}

func (m Users) sorted(keep func(*model.User) bool) []*model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.users {
		if keep(u) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m Users) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	all := m.sorted(func(*model.User) bool { return true })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	return all[:min(limit, len(all))], nil
}

func (m Users) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	all := m.sorted(func(u *model.User) bool { return u.Role != model.RoleAdmin })
	sort.SliceStable(all, func(i, j int) bool { return all[i].Balance > all[j].Balance })
	return all[:min(limit, len(all))], nil
}

func (m Users) CountByRole(ctx context.Context, role model.Role) (int, error) {
	return len(m.sorted(func(u *model.User) bool { return u.Role == role })), nil
}

// Transactions reads the transaction log.
type Transactions struct{ *DB }

func (m Transactions) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].UserID == userID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m Transactions) SumByType(ctx context.Context, txType, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, tx := range m.txs {
		if tx.Type == txType && (prefix == "" || strings.HasPrefix(*tx.Description, prefix)) {
			sum += tx.Amount
		}
	}
	return sum, nil
}

// Games implements the game store.
type Games struct{ *DB }

func (m Games) Create(ctx context.Context, g *model.Game, funding repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDebit(funding); err != nil {
		return err
	}
	m.debit(funding)
	m.games[g.ID] = g.Clone()
	return nil
}

func (m Games) Get(ctx context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	return g.Clone(), nil
}

func (m Games) filter(keep func(*model.Game) bool) []*model.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Game
	for _, g := range m.games {
		if keep(g) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m Games) List(ctx context.Context, statuses []model.GameStatus, limit int) ([]*model.Game, error) {
	out := m.filter(func(g *model.Game) bool { return len(statuses) == 0 || slices.Contains(statuses, g.Status) })
	return out[:min(limit, len(out))], nil
}

func (m Games) ListUnsettled(ctx context.Context) ([]*model.Game, error) {
	return m.filter(func(g *model.Game) bool {
		return g.Status == model.GameFinished && len(g.Winners) > 0 && !g.PayoutComplete
	}), nil
}

func (m Games) AddCard(ctx context.Context, gameID string, buyerID int64, c card.Card, pot int64, payment repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok || g.Status != model.GameWaiting {
		return repository.ErrStaleState
	}
	if err := m.checkDebit(payment); err != nil {
		return err
	}
	m.debit(payment)
	if p := g.Player(buyerID); p != nil {
		p.Cards = append(p.Cards, c)
	} else {
		g.Players = append(g.Players, model.Player{UserID: buyerID, Cards: []card.Card{c}})
	}
	g.Pot = pot
	return nil
}

func (m Games) Save(ctx context.Context, g *model.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.games[g.ID]
	if !ok || stored.Status == model.GameFinished {
		return repository.ErrStaleState
	}
	next := g.Clone()
	next.Players = stored.Players
	next.PayoutComplete = stored.PayoutComplete
	m.games[g.ID] = next
	return nil
}

func (m Games) Delete(ctx context.Context, id string, refunds []repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok || g.Status == model.GameInProgress {
		return repository.ErrStaleState
	}
	if g.Status == model.GameFinished && len(g.Winners) > 0 && !g.PayoutComplete {
		return repository.ErrStaleState
	}
	for _, e := range refunds {
		if err := m.credit(e); err != nil {
			return err
		}
	}
	delete(m.games, id)
	return nil
}

func (m Games) CountByStatus(ctx context.Context, status model.GameStatus) (int, error) {
	return len(m.filter(func(g *model.Game) bool { return g.Status == status })), nil
}

// Raffles implements the raffle store.
type Raffles struct{ *DB }

func (m Raffles) Create(ctx context.Context, rf *model.Raffle, funding repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDebit(funding); err != nil {
		return err
	}
	m.debit(funding)
	m.raffles[rf.ID] = rf.Clone()
	return nil
}

func (m Raffles) Get(ctx context.Context, id string) (*model.Raffle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rf, ok := m.raffles[id]
	if !ok {
		return nil, repository.ErrRaffleNotFound
	}
	return rf.Clone(), nil
}

func (m Raffles) filter(keep func(*model.Raffle) bool) []*model.Raffle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Raffle
	for _, rf := range m.raffles {
		if keep(rf) {
			out = append(out, rf.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m Raffles) List(ctx context.Context, statuses []model.RaffleStatus, limit int) ([]*model.Raffle, error) {
	out := m.filter(func(rf *model.Raffle) bool { return len(statuses) == 0 || slices.Contains(statuses, rf.Status) })
	return out[:min(limit, len(out))], nil
}

func (m Raffles) ListUnsettled(ctx context.Context) ([]*model.Raffle, error) {
	return m.filter(func(rf *model.Raffle) bool {
		return rf.Status == model.RaffleFinished && rf.WinnerID != nil && !rf.PayoutComplete
	}), nil
}

func (m Raffles) Purchase(ctx context.Context, raffleID string, buyerID int64, numbers []int, payment repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rf, ok := m.raffles[raffleID]
	if !ok || rf.Status != model.RaffleWaiting {
		return repository.ErrStaleState
	}
	for _, n := range numbers {
		if rf.Tickets[n].Status != model.TicketAvailable {
			return repository.ErrStaleState
		}
	}
	if err := m.checkDebit(payment); err != nil {
		return err
	}
	m.debit(payment)
	for _, n := range numbers {
		owner := buyerID
		rf.Tickets[n] = model.Ticket{Number: n, Status: model.TicketSold, OwnerID: &owner}
	}
	return nil
}

func (m Raffles) SaveTickets(ctx context.Context, raffleID string, tickets []model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rf, ok := m.raffles[raffleID]
	if !ok || rf.Status != model.RaffleWaiting {
		return repository.ErrStaleState
	}
	for _, t := range tickets {
		rf.Tickets[t.Number] = t
	}
	return nil
}

func (m Raffles) Finish(ctx context.Context, rf *model.Raffle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.raffles[rf.ID]
	if !ok || stored.Status != model.RaffleWaiting {
		return repository.ErrStaleState
	}
	stored.Status = model.RaffleFinished
	stored.WinnerTicket = rf.WinnerTicket
	stored.WinnerID = rf.WinnerID
	return nil
}

func (m Raffles) Delete(ctx context.Context, id string, refunds []repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rf, ok := m.raffles[id]
	if !ok {
		return repository.ErrRaffleNotFound
	}
	if rf.WinnerID != nil && !rf.PayoutComplete {
		return repository.ErrStaleState
	}
	for _, e := range refunds {
		if err := m.credit(e); err != nil {
			return err
		}
	}
	delete(m.raffles, id)
	return nil
}

func (m Raffles) CountByStatus(ctx context.Context, status model.RaffleStatus) (int, error) {
	return len(m.filter(func(rf *model.Raffle) bool { return rf.Status == status })), nil
}

// Ledger implements payout.Ledger.
type Ledger struct{ *DB }

func (m Ledger) AdminID(ctx context.Context) (int64, error) {
	admin, err := Users{m.DB}.FindAdmin(ctx)
	if err != nil {
		return 0, err
	}
	return admin.ID, nil
}

func (m Ledger) Apply(ctx context.Context, s payout.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch s.Kind {
	case payout.KindGame:
		g := m.games[s.EntityID]
		if g == nil || g.PayoutComplete || g.Status != model.GameFinished {
			return game.ErrAlreadySettled
		}
		g.PayoutComplete = true
	case payout.KindRaffle:
		rf := m.raffles[s.EntityID]
		if rf == nil || rf.PayoutComplete || rf.Status != model.RaffleFinished {
			return game.ErrAlreadySettled
		}
		rf.PayoutComplete = true
	}
	m.applies++
	for _, c := range s.Credits {
		if err := m.credit(repository.Entry{UserID: c.UserID, Amount: c.Amount, Type: c.Type, Description: string(s.Kind) + " " + s.EntityID}); err != nil {
			return err
		}
	}
	return nil
}

// Credits implements the credit request store.
type Credits struct{ *DB }

func (m Credits) Create(ctx context.Context, cr *model.CreditRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cr
	m.credits[cr.ID] = &c
	return nil
}

func (m Credits) Get(ctx context.Context, id string) (*model.CreditRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.credits[id]
	if !ok {
		return nil, repository.ErrCreditRequestNotFound
	}
	c := *cr
	return &c, nil
}

func (m Credits) Approve(ctx context.Context, id string, from, to repository.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr := m.credits[id]
	if cr == nil || cr.Status != model.CreditPending {
		return repository.ErrStaleState
	}
	if err := m.checkDebit(from); err != nil {
		return err
	}
	m.debit(from)
	if err := m.credit(to); err != nil {
		return err
	}
	cr.Status = model.CreditApproved
	return nil
}

func (m Credits) Reject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr := m.credits[id]
	if cr == nil || cr.Status != model.CreditPending {
		return repository.ErrStaleState
	}
	cr.Status = model.CreditRejected
	return nil
}

func (m Credits) list(keep func(*model.CreditRequest) bool) []*model.CreditRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CreditRequest
	for _, cr := range m.credits {
		if keep(cr) {
			c := *cr
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m Credits) ListPendingTo(ctx context.Context, to int64) ([]*model.CreditRequest, error) {
	return m.list(func(cr *model.CreditRequest) bool { return cr.ToUserID == to && cr.Status == model.CreditPending }), nil
}

func (m Credits) ListFrom(ctx context.Context, from int64, limit int) ([]*model.CreditRequest, error) {
	out := m.list(func(cr *model.CreditRequest) bool { return cr.FromUserID == from })
	return out[:min(limit, len(out))], nil
}

// Messages implements the message store.
type Messages struct{ *DB }

func (m Messages) Create(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *msg
	m.messages = append(m.messages, &c)
	return nil
}

func (m Messages) Conversation(ctx context.Context, a, b int64, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.messages {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			c := *msg
			out = append(out, &c)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m Messages) MarkRead(ctx context.Context, reader, sender int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.ReceiverID == reader && msg.SenderID == sender && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}

func (m Messages) UnreadCounts(ctx context.Context, reader int64) (map[int64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[int64]int{}
	for _, msg := range m.messages {
		if msg.ReceiverID == reader && !msg.Read {
			counts[msg.SenderID]++
		}
	}
	return counts, nil
}

func (m Messages) Partners(ctx context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		var p int64
		switch userID {
		case msg.SenderID:
			p = msg.ReceiverID
		case msg.ReceiverID:
			p = msg.SenderID
		default:
			continue
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}
