// Package api serves the HTTP and websocket front end.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"bingo-platform/internal/config"
	"bingo-platform/internal/metrics"
	"bingo-platform/internal/model"
	"bingo-platform/internal/service"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds everything the API needs.
type Dependencies struct {
	Config    *config.Config
	Accounts  *service.AccountService
	Transfers *service.TransferService
	Bingo     *service.BingoService
	Raffles   *service.RaffleService
	Credits   *service.CreditService
	Chat      *service.ChatService
	Stats     *service.StatsService
	Hub       *Hub
	Metrics   *metrics.Metrics // optional
	Health    HealthChecker    // optional
}

// Server is the HTTP API server.
type Server struct {
	deps    *Dependencies
	engine  *gin.Engine
	tokens  *TokenIssuer
	limiter *RateLimiter
	srv     *http.Server
}

// New creates the server and registers every route.
func New(deps *Dependencies) (*Server, error) {
	tokens, err := NewTokenIssuer(deps.Config.Auth.JWTSecret, deps.Config.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Config.HTTP.AllowedOrigins)
	}

	s := &Server{
		deps:    deps,
		engine:  gin.New(),
		tokens:  tokens,
		limiter: NewRateLimiter(deps.Config.HTTP.RateLimit, deps.Config.HTTP.RateBurst),
	}
	s.engine.Use(Recovery(), RequestLogger(), CORS(deps.Config.HTTP.AllowedOrigins))
	if deps.Metrics != nil {
		s.engine.Use(deps.Metrics.Middleware())
	}
	s.routes()

	s.srv = &http.Server{
		Addr:              deps.Config.HTTP.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.health)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	r.GET("/ws/games/:id", s.watchGame)
	r.GET("/ws/raffles/:id", s.watchRaffle)

	api := r.Group("/api")
	api.POST("/auth/token", s.limiter.Middleware(), s.issueToken)

	authed := api.Group("", s.tokens.Middleware(), s.limiter.Middleware())

	authed.GET("/me", s.me)
	authed.PUT("/me/avatar", s.setAvatar)
	authed.GET("/me/transactions", s.myTransactions)
	authed.GET("/users", s.requireRole(model.RoleAdmin, model.RoleOrganizer), s.listUsers)
	authed.PUT("/users/:id/role", s.setRole)
	authed.POST("/transfers", s.transfer)

	authed.POST("/games", s.createGame)
	authed.GET("/games", s.listGames)
	authed.GET("/games/:id", s.getGame)
	authed.POST("/games/:id/cards", s.buyCard)
	authed.POST("/games/:id/start", s.startGame)
	authed.POST("/games/:id/calls", s.callNumber)
	authed.DELETE("/games/:id", s.deleteGame)

	authed.POST("/raffles", s.createRaffle)
	authed.GET("/raffles", s.listRaffles)
	authed.GET("/raffles/:id", s.getRaffle)
	authed.POST("/raffles/:id/purchase", s.purchaseTickets)
	authed.POST("/raffles/:id/reserve", s.reserveTickets)
	authed.POST("/raffles/:id/tickets/:n/approve", s.approveTicket)
	authed.POST("/raffles/:id/tickets/:n/reject", s.rejectTicket)
	authed.POST("/raffles/:id/draw", s.drawRaffle)
	authed.DELETE("/raffles/:id", s.deleteRaffle)

	authed.POST("/credit-requests", s.requestCredit)
	authed.GET("/credit-requests", s.listCreditRequests)
	authed.POST("/credit-requests/:id/approve", s.approveCredit)
	authed.POST("/credit-requests/:id/reject", s.rejectCredit)

	authed.POST("/messages", s.sendMessage)
	authed.GET("/messages", s.unreadCounts)
	authed.GET("/messages/:partner", s.conversation)
	authed.POST("/messages/:partner/read", s.markRead)
	authed.GET("/conversations", s.conversations)

	admin := authed.Group("/admin", s.requireRole(model.RoleAdmin))
	admin.GET("/stats", s.platformStats)
	admin.POST("/users/:id/balance", s.adjustBalance)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes websocket subscribers and
// waits for in-flight requests up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Hub.Close()
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
}
