package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/model"
	"bingo-platform/internal/payout"
	"bingo-platform/internal/service"
)

type sentMessage struct {
	to   string
	text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to.Recipient(), text: fmt.Sprint(what)})
	return &tele.Message{}, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func gameSettled() service.Event {
	return service.Event{
		Type: service.EventGameSettled,
		Game: &model.Game{ID: "g1", OrganizerID: 2},
		Payout: &payout.Result{
			AdminID: 1,
			Applied: true,
			Plan: payout.Plan{
				Pool:       1050,
				Commission: 52,
				PerWinner:  499,
				Shares:     []payout.Share{{UserID: 3, Amount: 499}, {UserID: 4, Amount: 499}},
			},
		},
	}
}

func TestSettlementMessages(t *testing.T) {
	msgs := settlementMessages(gameSettled())
	require.Len(t, msgs, 4)
	assert.Equal(t, int64(3), msgs[0].to)
	assert.Contains(t, msgs[0].text, "You won 499 credits in bingo game g1")
	assert.Equal(t, int64(4), msgs[1].to)
	assert.Equal(t, int64(2), msgs[2].to)
	assert.Contains(t, msgs[2].text, "2 winner(s), 499 each, commission 52")
	assert.Equal(t, int64(1), msgs[3].to)
	assert.Contains(t, msgs[3].text, "Commission of 52")

	winner := int64(3)
	ticket := 7
	raffle := service.Event{
		Type:   service.EventRaffleSettled,
		Raffle: &model.Raffle{ID: "r1", Name: "Spring", OrganizerID: 2, WinnerID: &winner, WinnerTicket: &ticket},
		Payout: &payout.Result{Plan: payout.Plan{Pool: 10, PerWinner: 10, Shares: []payout.Share{{UserID: 3, Amount: 10}}}},
	}
	msgs = settlementMessages(raffle)
	require.Len(t, msgs, 2, "no commission message when the commission is zero")
	assert.Contains(t, msgs[0].text, `raffle "Spring"`)

	assert.Empty(t, settlementMessages(service.Event{Type: service.EventGameSettled}))
}

func TestNotifierDeliversSettlements(t *testing.T) {
	n := NewNotifier(4)
	sender := &fakeSender{}
	n.Attach(sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Notify(service.Event{Type: service.EventNumberCalled, Game: &model.Game{ID: "g1"}})
	n.Notify(gameSettled())

	require.Eventually(t, func() bool { return len(sender.messages()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "3", sender.messages()[0].to)
}

func TestNotifierNeverBlocks(t *testing.T) {
	n := NewNotifier(1)
	done := make(chan struct{})
	go func() {
		for range 10 {
			n.Notify(gameSettled())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	assert.Len(t, n.queue, 1)
}
