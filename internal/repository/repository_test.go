// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"bingo-platform/internal/game"
	"bingo-platform/internal/game/bingo"
	"bingo-platform/internal/game/card"
	"bingo-platform/internal/game/pattern"
	"bingo-platform/internal/game/raffle"
	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
	"bingo-platform/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container, applies the migrations and
// returns a connection pool. Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func mustUser(t *testing.T, repo *UserRepository, id int64, role model.Role, balance int64) {
	t.Helper()
	_, err := repo.Create(context.Background(), id, "user", "", role, balance)
	require.NoError(t, err)
}

func balanceOf(t *testing.T, repo *UserRepository, id int64) int64 {
	t.Helper()
	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, 12345, "testuser", "Test", model.RoleUser, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.ID)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, int64(1000), user.Balance)

	got, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "testuser", got.Username)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, game.ErrNotFound)

	txs, err := NewTransactionRepository(pool).GetByUserID(ctx, 12345, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxTypeInitial, txs[0].Type)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, created, err := repo.GetOrCreate(ctx, 1, "a", "", model.RoleUser, 1000)
	require.NoError(t, err)
	assert.True(t, created)

	user, created, err := repo.GetOrCreate(ctx, 1, "a", "", model.RoleUser, 1000)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1000), user.Balance)
}

func TestUserRepository_Adjust(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	mustUser(t, repo, 1, model.RoleUser, 1000)
	mustUser(t, repo, 2, model.RoleAdmin, 0)

	user, err := repo.Adjust(ctx, 1, Entry{Amount: 500, Type: model.TxTypeAdminAdd})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), user.Balance)

	user, err = repo.Adjust(ctx, 1, Entry{Amount: -1500, Type: model.TxTypeAdminSub})
	require.NoError(t, err)
	assert.Zero(t, user.Balance)

	_, err = repo.Adjust(ctx, 1, Entry{Amount: -1, Type: model.TxTypeAdminSub})
	assert.ErrorIs(t, err, game.ErrInsufficientBalance)

	// Admin debits are recorded but leave the balance unchanged.
	admin, err := repo.Adjust(ctx, 2, Entry{Amount: -700, Type: model.TxTypeCardPurchase})
	require.NoError(t, err)
	assert.Zero(t, admin.Balance)

	_, err = repo.Adjust(ctx, 99, Entry{Amount: -1, Type: model.TxTypeAdminSub})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_TransferIsAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	mustUser(t, repo, 1, model.RoleUser, 100)
	mustUser(t, repo, 2, model.RoleUser, 0)

	err := repo.Transfer(ctx,
		Entry{UserID: 1, Amount: 60, Type: model.TxTypeTransfer},
		Entry{UserID: 2, Amount: 60, Type: model.TxTypeTransfer})
	require.NoError(t, err)
	assert.Equal(t, int64(40), balanceOf(t, repo, 1))
	assert.Equal(t, int64(60), balanceOf(t, repo, 2))

	// Receiver missing: the debit rolls back.
	err = repo.Transfer(ctx,
		Entry{UserID: 1, Amount: 10, Type: model.TxTypeTransfer},
		Entry{UserID: 3, Amount: 10, Type: model.TxTypeTransfer})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, int64(40), balanceOf(t, repo, 1))
}

func TestUserRepository_RolesAndAdmin(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.FindAdmin(ctx)
	assert.ErrorIs(t, err, ErrNoAdmin)

	mustUser(t, repo, 1, model.RoleUser, 3000)
	mustUser(t, repo, 2, model.RoleUser, 1000)
	mustUser(t, repo, 3, model.RoleAdmin, 9000)

	admin, err := repo.FindAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), admin.ID)

	user, err := repo.SetRole(ctx, 2, model.RoleOrganizer)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrganizer, user.Role)

	n, err := repo.CountByRole(ctx, model.RoleOrganizer)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	top, err := repo.GetTopUsers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(1), top[0].ID)

	set, err := repo.SetBalance(ctx, 2, 50, model.TxTypeAdminSet, "")
	require.NoError(t, err)
	assert.Equal(t, int64(50), set.Balance)
}

// ============================================================================
// GameRepository Tests
// ============================================================================

func TestGameRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	ctx := context.Background()
	mustUser(t, users, 1, model.RoleOrganizer, 1000)
	mustUser(t, users, 2, model.RoleUser, 100)

	g, err := bingo.NewGame(bingo.Params{
		ID: uuid.NewString(), OrganizerID: 1, Prize: 500, CardPrice: 50,
		Pattern: pattern.TopRow, Mode: model.ModeManual, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, games.Create(ctx, g, Entry{UserID: 1, Amount: 500, Type: model.TxTypeGameCreate}))
	assert.Equal(t, int64(500), balanceOf(t, users, 1))

	c := card.New()
	require.NoError(t, bingo.AddCard(g, 2, c))
	require.NoError(t, games.AddCard(ctx, g.ID, 2, c, g.Pot, Entry{UserID: 2, Amount: 50, Type: model.TxTypeCardPurchase}))
	assert.Equal(t, int64(50), balanceOf(t, users, 2))

	loaded, err := games.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(550), loaded.Pot)
	require.Len(t, loaded.Players, 1)
	assert.Equal(t, c, loaded.Players[0].Cards[0])

	require.NoError(t, bingo.Start(loaded, 1))
	for _, n := range c.Numbers()[:5] {
		_, err := bingo.Call(loaded, n)
		require.NoError(t, err)
	}
	require.NoError(t, games.Save(ctx, loaded))

	reloaded, err := games.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, loaded.CalledNumbers, reloaded.CalledNumbers)
	assert.Equal(t, loaded.Status, reloaded.Status)

	// Buying after start is refused by the guarded update.
	err = games.AddCard(ctx, g.ID, 2, card.New(), 600, Entry{UserID: 2, Amount: 50, Type: model.TxTypeCardPurchase})
	assert.ErrorIs(t, err, ErrStaleState)
	assert.Equal(t, int64(50), balanceOf(t, users, 2))

	_, err = games.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestGameRepository_DeleteRefunds(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	ctx := context.Background()
	mustUser(t, users, 1, model.RoleOrganizer, 1000)

	g, err := bingo.NewGame(bingo.Params{
		ID: uuid.NewString(), OrganizerID: 1, Prize: 400, CardPrice: 10,
		Pattern: pattern.FullHouse, Mode: model.ModeAutomatic, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, games.Create(ctx, g, Entry{UserID: 1, Amount: 400, Type: model.TxTypeGameCreate}))

	require.NoError(t, games.Delete(ctx, g.ID, []Entry{{UserID: 1, Amount: 400, Type: model.TxTypeGameRefund}}))
	assert.Equal(t, int64(1000), balanceOf(t, users, 1))

	list, err := games.List(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// ============================================================================
// RaffleRepository Tests
// ============================================================================

func TestRaffleRepository_PurchaseAndFinish(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	raffles := NewRaffleRepository(pool)
	ctx := context.Background()
	mustUser(t, users, 1, model.RoleOrganizer, 1000)
	mustUser(t, users, 2, model.RoleUser, 100)
	mustUser(t, users, 3, model.RoleUser, 100)

	rf, err := raffle.NewRaffle(raffle.Params{
		ID: uuid.NewString(), OrganizerID: 1, Name: "Weekly", Prize: 999, TicketPrice: 10,
		TotalTickets: 10, Mode: model.ModeManual, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, raffles.Create(ctx, rf, Entry{UserID: 1, Amount: 999, Type: model.TxTypeRaffleCreate}))

	require.NoError(t, raffles.Purchase(ctx, rf.ID, 2, []int{3, 7}, Entry{UserID: 2, Amount: 20, Type: model.TxTypeTicketPurchase}))
	assert.Equal(t, int64(80), balanceOf(t, users, 2))

	// Ticket 7 is taken: nothing is sold and nothing is debited.
	err = raffles.Purchase(ctx, rf.ID, 3, []int{7, 8}, Entry{UserID: 3, Amount: 20, Type: model.TxTypeTicketPurchase})
	assert.ErrorIs(t, err, ErrStaleState)
	assert.Equal(t, int64(100), balanceOf(t, users, 3))

	loaded, err := raffles.Get(ctx, rf.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Tickets, 10)
	assert.Equal(t, model.TicketSold, loaded.Tickets[7].Status)
	assert.Equal(t, int64(2), *loaded.Tickets[7].OwnerID)
	assert.Equal(t, model.TicketAvailable, loaded.Tickets[8].Status)

	require.NoError(t, raffle.Reserve(loaded, 3, []int{8}, "receipt-1"))
	require.NoError(t, raffles.SaveTickets(ctx, rf.ID, []model.Ticket{loaded.Tickets[8]}))

	require.NoError(t, raffle.DrawManual(loaded, 1, 7))
	require.NoError(t, raffles.Finish(ctx, loaded))
	assert.ErrorIs(t, raffles.Finish(ctx, loaded), ErrStaleState)

	unsettled, err := raffles.ListUnsettled(ctx)
	require.NoError(t, err)
	require.Len(t, unsettled, 1)
	assert.Equal(t, 7, *unsettled[0].WinnerTicket)
	assert.Equal(t, "receipt-1", *unsettled[0].Tickets[8].PaymentProof)
}

// ============================================================================
// SettlementRepository Tests
// ============================================================================

func TestSettlementRepository_AppliesOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	ledger := NewSettlementRepository(pool)
	ctx := context.Background()
	mustUser(t, users, 1, model.RoleOrganizer, 2000)
	mustUser(t, users, 2, model.RoleUser, 0)
	mustUser(t, users, 100, model.RoleAdmin, 0)

	g, err := bingo.NewGame(bingo.Params{
		ID: uuid.NewString(), OrganizerID: 1, Prize: 1050, CardPrice: 10,
		Pattern: pattern.FullHouse, Mode: model.ModeManual, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, games.Create(ctx, g, Entry{UserID: 1, Amount: 1050, Type: model.TxTypeGameCreate}))
	g.Status = model.GameFinished
	g.Winners = []int64{2}
	_, err = pool.Exec(ctx, `UPDATE games SET status = 'finished', winners = $2 WHERE id = $1`, g.ID, g.Winners)
	require.NoError(t, err)

	resolver := payout.NewResolver(ledger, 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.SettleGame(ctx, g)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(997), balanceOf(t, users, 2))
	assert.Equal(t, int64(52), balanceOf(t, users, 100))

	stored, err := games.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, stored.PayoutComplete)

	total, err := NewTransactionRepository(pool).SumByType(ctx, model.TxTypePayoutCommission, "game ")
	require.NoError(t, err)
	assert.Equal(t, int64(52), total)
}

func TestDeleteKeepsUnpaidWinners(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	raffles := NewRaffleRepository(pool)
	resolver := payout.NewResolver(NewSettlementRepository(pool), 5)
	ctx := context.Background()
	mustUser(t, users, 1, model.RoleOrganizer, 5000)
	mustUser(t, users, 2, model.RoleUser, 100)
	mustUser(t, users, 100, model.RoleAdmin, 0)

	g, err := bingo.NewGame(bingo.Params{
		ID: uuid.NewString(), OrganizerID: 1, Prize: 1000, CardPrice: 10,
		Pattern: pattern.FullHouse, Mode: model.ModeManual, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, games.Create(ctx, g, Entry{UserID: 1, Amount: 1000, Type: model.TxTypeGameCreate}))
	g.Status = model.GameFinished
	g.Winners = []int64{2}
	_, err = pool.Exec(ctx, `UPDATE games SET status = 'finished', winners = $2 WHERE id = $1`, g.ID, g.Winners)
	require.NoError(t, err)

	assert.ErrorIs(t, games.Delete(ctx, g.ID, nil), ErrStaleState)
	_, err = resolver.SettleGame(ctx, g)
	require.NoError(t, err)
	require.NoError(t, games.Delete(ctx, g.ID, nil))

	rf, err := raffle.NewRaffle(raffle.Params{
		ID: uuid.NewString(), OrganizerID: 1, Name: "Unpaid", Prize: 500, TicketPrice: 10,
		TotalTickets: 5, Mode: model.ModeManual, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, raffles.Create(ctx, rf, Entry{UserID: 1, Amount: 500, Type: model.TxTypeRaffleCreate}))
	require.NoError(t, raffles.Purchase(ctx, rf.ID, 2, []int{1}, Entry{UserID: 2, Amount: 10, Type: model.TxTypeTicketPurchase}))
	loaded, err := raffles.Get(ctx, rf.ID)
	require.NoError(t, err)
	require.NoError(t, raffle.DrawManual(loaded, 1, 1))
	require.NoError(t, raffles.Finish(ctx, loaded))

	assert.ErrorIs(t, raffles.Delete(ctx, rf.ID, nil), ErrStaleState)
	_, err = resolver.SettleRaffle(ctx, loaded)
	require.NoError(t, err)
	require.NoError(t, raffles.Delete(ctx, rf.ID, nil))
	assert.ErrorIs(t, raffles.Delete(ctx, rf.ID, nil), ErrRaffleNotFound)
}

// ============================================================================
// CreditRequestRepository / MessageRepository Tests
// ============================================================================

func TestCreditRequestRepository_Approve(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	requests := NewCreditRequestRepository(pool)
	ctx := context.Background()
	mustUser(t, users, 1, model.RoleUser, 0)
	mustUser(t, users, 2, model.RoleOrganizer, 300)

	cr := &model.CreditRequest{ID: uuid.NewString(), FromUserID: 1, ToUserID: 2, Amount: 200, Status: model.CreditPending, CreatedAt: time.Now()}
	require.NoError(t, requests.Create(ctx, cr))

	pending, err := requests.ListPendingTo(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	err = requests.Approve(ctx, cr.ID,
		Entry{UserID: 2, Amount: 200, Type: model.TxTypeCreditRequest},
		Entry{UserID: 1, Amount: 200, Type: model.TxTypeCreditRequest})
	require.NoError(t, err)
	assert.Equal(t, int64(200), balanceOf(t, users, 1))
	assert.Equal(t, int64(100), balanceOf(t, users, 2))

	assert.ErrorIs(t, requests.Reject(ctx, cr.ID), ErrStaleState)

	got, err := requests.Get(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CreditApproved, got.Status)
	assert.NotNil(t, got.ResolvedAt)
}

func TestMessageRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	messages := NewMessageRepository(pool)
	ctx := context.Background()
	mustUser(t, users, 1, model.RoleUser, 0)
	mustUser(t, users, 2, model.RoleUser, 0)

	now := time.Now()
	for i, text := range []string{"hi", "hello", "bingo?"} {
		from, to := int64(1), int64(2)
		if i == 1 {
			from, to = 2, 1
		}
		require.NoError(t, messages.Create(ctx, &model.Message{
			ID: uuid.NewString(), SenderID: from, ReceiverID: to, Text: text, CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	conv, err := messages.Conversation(ctx, 2, 1, 50)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, "hi", conv[0].Text)

	counts, err := messages.UnreadCounts(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[1])

	n, err := messages.MarkRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	partners, err := messages.Partners(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, partners)
}
