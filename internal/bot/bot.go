// Package bot wires the Telegram front end: middleware, command routing
// and settlement notifications.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/config"
	"bingo-platform/internal/handler"
	"bingo-platform/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	accounts *service.AccountService
	notifier *Notifier

	accountHandler  *handler.AccountHandler
	transferHandler *handler.TransferHandler
	adminHandler    *handler.AdminHandler
	rankingHandler  *handler.RankingHandler
	gameHandler     *handler.GameHandler
	raffleHandler   *handler.RaffleHandler
	creditHandler   *handler.CreditHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config    *config.Config
	Accounts  *service.AccountService
	Transfers *service.TransferService
	Bingo     *service.BingoService
	Raffles   *service.RaffleService
	Credits   *service.CreditService
	Chat      *service.ChatService
	Stats     *service.StatsService
	Notifier  *Notifier
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		accounts: deps.Accounts,
		notifier: deps.Notifier,

		accountHandler:  handler.NewAccountHandler(deps.Accounts),
		transferHandler: handler.NewTransferHandler(deps.Accounts, deps.Transfers),
		adminHandler:    handler.NewAdminHandler(deps.Accounts),
		rankingHandler:  handler.NewRankingHandler(deps.Stats),
		gameHandler:     handler.NewGameHandler(deps.Accounts, deps.Bingo),
		raffleHandler:   handler.NewRaffleHandler(deps.Accounts, deps.Raffles),
		creditHandler:   handler.NewCreditHandler(deps.Accounts, deps.Credits, deps.Chat),
	}
	if b.notifier != nil {
		b.notifier.Attach(teleBot)
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/pay", b.transferHandler.HandlePay)

	// Bingo
	b.bot.Handle("/newgame", b.gameHandler.HandleNewGame)
	b.bot.Handle("/games", b.gameHandler.HandleGames)
	b.bot.Handle("/buycard", b.gameHandler.HandleBuyCard)
	b.bot.Handle("/mycards", b.gameHandler.HandleMyCards)
	b.bot.Handle("/startgame", b.gameHandler.HandleStartGame)
	b.bot.Handle("/call", b.gameHandler.HandleCall)
	b.bot.Handle("/delgame", b.gameHandler.HandleDeleteGame)

	// Raffles
	b.bot.Handle("/newraffle", b.raffleHandler.HandleNewRaffle)
	b.bot.Handle("/raffles", b.raffleHandler.HandleRaffles)
	b.bot.Handle("/buy", b.raffleHandler.HandleBuy)
	b.bot.Handle("/reserve", b.raffleHandler.HandleReserve)
	b.bot.Handle("/approve", b.raffleHandler.HandleApprove)
	b.bot.Handle("/reject", b.raffleHandler.HandleReject)
	b.bot.Handle("/draw", b.raffleHandler.HandleDraw)

	// Credit requests and messages
	b.bot.Handle("/request", b.creditHandler.HandleRequest)
	b.bot.Handle("/requests", b.creditHandler.HandleRequests)
	b.bot.Handle("/approve_credit", b.creditHandler.HandleApproveCredit)
	b.bot.Handle("/reject_credit", b.creditHandler.HandleRejectCredit)
	b.bot.Handle("/msg", b.creditHandler.HandleMsg)
	b.bot.Handle("/inbox", b.creditHandler.HandleInbox)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.accounts))
	adminGroup.Handle("/admin_add", b.adminHandler.HandleAdminAdd)
	adminGroup.Handle("/admin_sub", b.adminHandler.HandleAdminSub)
	adminGroup.Handle("/admin_set", b.adminHandler.HandleAdminSet)
	adminGroup.Handle("/admin_role", b.adminHandler.HandleAdminRole)
	adminGroup.Handle("/admin_stats", b.rankingHandler.HandleAdminStats)
}

// Start polls for updates until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops polling.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
