package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/service"
)

// Sender delivers a Telegram message. *tele.Bot implements it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// DefaultQueueSize bounds the pending notifications.
const DefaultQueueSize = 256

// Notifier sends private messages to winners, the organizer and the admin
// when a game or raffle is settled. It implements service.Notifier; other
// events are ignored.
type Notifier struct {
	mu     sync.RWMutex
	sender Sender
	queue  chan service.Event
}

type outgoing struct {
	to   int64
	text string
}

// NewNotifier creates a Notifier with a queue of the given size.
func NewNotifier(queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Notifier{queue: make(chan service.Event, queueSize)}
}

// Attach sets the sender. Until then queued events are dropped on delivery.
func (n *Notifier) Attach(s Sender) {
	n.mu.Lock()
	n.sender = s
	n.mu.Unlock()
}

// Notify queues settlement events. It never blocks.
func (n *Notifier) Notify(ev service.Event) {
	if ev.Type != service.EventGameSettled && ev.Type != service.EventRaffleSettled {
		return
	}
	select {
	case n.queue <- ev:
	default:
		log.Warn().Str("type", string(ev.Type)).Msg("Notification queue full, dropping event")
	}
}

// Run delivers queued events until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ev)
		}
	}
}

func (n *Notifier) deliver(ev service.Event) {
	n.mu.RLock()
	sender := n.sender
	n.mu.RUnlock()
	if sender == nil {
		return
	}

	for _, msg := range settlementMessages(ev) {
		if _, err := sender.Send(tele.ChatID(msg.to), msg.text); err != nil {
			// Users who never opened a private chat with the bot cannot be
			// messaged.
			log.Debug().Err(err).Int64("user_id", msg.to).Msg("Failed to send notification")
		}
	}
}

// settlementMessages builds one message per winner plus one for the
// organizer and one for the admin.
func settlementMessages(ev service.Event) []outgoing {
	if ev.Payout == nil {
		return nil
	}
	plan := ev.Payout.Plan

	var (
		what        string
		organizerID int64
	)
	switch {
	case ev.Game != nil:
		what = "bingo game " + ev.Game.ID
		organizerID = ev.Game.OrganizerID
	case ev.Raffle != nil:
		what = fmt.Sprintf("raffle \"%s\"", ev.Raffle.Name)
		organizerID = ev.Raffle.OrganizerID
	default:
		return nil
	}

	msgs := make([]outgoing, 0, len(plan.Shares)+2)
	for _, share := range plan.Shares {
		msgs = append(msgs, outgoing{
			to:   share.UserID,
			text: fmt.Sprintf("🏆 You won %d credits in %s!", share.Amount, what),
		})
	}
	msgs = append(msgs, outgoing{
		to: organizerID,
		text: fmt.Sprintf("🏁 Your %s was settled: %d winner(s), %d each, commission %d",
			what, len(plan.Shares), plan.PerWinner, plan.Commission),
	})
	if plan.Commission > 0 && ev.Payout.AdminID != 0 {
		msgs = append(msgs, outgoing{
			to:   ev.Payout.AdminID,
			text: fmt.Sprintf("💼 Commission of %d credited from %s", plan.Commission, what),
		})
	}
	return msgs
}
