// Package main is the entry point for the bingo platform: the HTTP API,
// the Telegram bot and the settlement reconciler.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bingo-platform/internal/api"
	"bingo-platform/internal/bot"
	"bingo-platform/internal/config"
	"bingo-platform/internal/game"
	"bingo-platform/internal/metrics"
	"bingo-platform/internal/payout"
	"bingo-platform/internal/pkg/db"
	"bingo-platform/internal/pkg/lock"
	"bingo-platform/internal/repository"
	"bingo-platform/internal/scheduler"
	"bingo-platform/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	gameRepo := repository.NewGameRepository(dbPool.Pool)
	raffleRepo := repository.NewRaffleRepository(dbPool.Pool)
	settlementRepo := repository.NewSettlementRepository(dbPool.Pool)
	creditRepo := repository.NewCreditRequestRepository(dbPool.Pool)
	messageRepo := repository.NewMessageRepository(dbPool.Pool)

	// Event fan-out: metrics, websocket subscribers and Telegram messages.
	m := metrics.New(true)
	hub := api.NewHub(cfg.HTTP.AllowedOrigins)
	botNotifier := bot.NewNotifier(bot.DefaultQueueSize)
	notifiers := service.Notifiers{m, hub, botNotifier}

	resolver := payout.NewResolver(settlementRepo, cfg.Bingo.CommissionPercent).WithRecorder(m)
	userLock := lock.NewUserLock()

	accountService := service.NewAccountService(userRepo, txRepo, userLock, cfg.Accounts.InitialBalance, cfg.Admin.IDs)
	transferService := service.NewTransferService(userRepo, userLock)
	bingoService := service.NewBingoService(gameRepo, userRepo, resolver, notifiers, game.DefaultRand, cfg.Bingo.CallInterval)
	raffleService := service.NewRaffleService(raffleRepo, userRepo, resolver, notifiers, game.DefaultRand, cfg.Raffle.MaxTickets)
	creditService := service.NewCreditService(creditRepo, userRepo)
	chatService := service.NewChatService(messageRepo, userRepo)
	statsService := service.NewStatsService(userRepo, txRepo, gameRepo, raffleRepo)

	resumed, err := bingoService.Resume(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resume automatic games")
	}
	log.Info().Int("games", resumed).Msg("Automatic games resumed")

	sched, err := scheduler.New(cfg.Scheduler.ReconcileSpec, time.Minute,
		scheduler.Job{Name: "games", Reconciler: bingoService},
		scheduler.Job{Name: "raffles", Reconciler: raffleService},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	// Settle anything left unpaid by a previous run before serving.
	sched.RunOnce(ctx)
	sched.Start()

	server, err := api.New(&api.Dependencies{
		Config:    cfg,
		Accounts:  accountService,
		Transfers: transferService,
		Bingo:     bingoService,
		Raffles:   raffleService,
		Credits:   creditService,
		Chat:      chatService,
		Stats:     statsService,
		Hub:       hub,
		Metrics:   m,
		Health:    dbPool,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create HTTP server")
	}
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(&bot.Dependencies{
			Config:    cfg,
			Accounts:  accountService,
			Transfers: transferService,
			Bingo:     bingoService,
			Raffles:   raffleService,
			Credits:   creditService,
			Chat:      chatService,
			Stats:     statsService,
			Notifier:  botNotifier,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go botNotifier.Run(ctx)
		go telegramBot.Start()
	} else {
		log.Warn().Msg("bot.token is empty, Telegram bot disabled")
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if telegramBot != nil {
		telegramBot.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	sched.Stop(shutdownCtx)
	bingoService.Shutdown()
	log.Info().Msg("Stopped gracefully")
}

// setupLogger configures the global zerolog logger from the log section.
func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if strings.EqualFold(cfg.Format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
