package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bingo-platform/internal/model"
	"bingo-platform/internal/service"
)

type createRaffleRequest struct {
	Name         string `json:"name"`
	Prize        int64  `json:"prize"`
	TicketPrice  int64  `json:"ticket_price"`
	TotalTickets int    `json:"total_tickets"`
	Mode         string `json:"mode"`
}

func (s *Server) createRaffle(c *gin.Context) {
	var req createRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rf, err := s.deps.Raffles.Create(c.Request.Context(), currentUser(c), service.CreateRaffleInput{
		Name:         req.Name,
		Prize:        req.Prize,
		TicketPrice:  req.TicketPrice,
		TotalTickets: req.TotalTickets,
		Mode:         model.Mode(strings.ToLower(req.Mode)),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rf)
}

func (s *Server) listRaffles(c *gin.Context) {
	var statuses []model.RaffleStatus
	for _, st := range splitList(c.Query("status")) {
		statuses = append(statuses, model.RaffleStatus(st))
	}
	raffles, err := s.deps.Raffles.List(c.Request.Context(), statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raffles": raffles})
}

func (s *Server) getRaffle(c *gin.Context) {
	rf, err := s.deps.Raffles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rf)
}

type ticketsRequest struct {
	Numbers []int  `json:"numbers" binding:"required"`
	Proof   string `json:"proof"`
}

func (s *Server) purchaseTickets(c *gin.Context) {
	var req ticketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rf, err := s.deps.Raffles.Purchase(c.Request.Context(), c.Param("id"), currentUser(c), req.Numbers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rf)
}

func (s *Server) reserveTickets(c *gin.Context) {
	var req ticketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rf, err := s.deps.Raffles.Reserve(c.Request.Context(), c.Param("id"), currentUser(c), req.Numbers, req.Proof)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rf)
}

func (s *Server) approveTicket(c *gin.Context) {
	n, ok := intParam(c, "n")
	if !ok {
		return
	}
	rf, err := s.deps.Raffles.Approve(c.Request.Context(), c.Param("id"), currentUser(c), n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rf)
}

func (s *Server) rejectTicket(c *gin.Context) {
	n, ok := intParam(c, "n")
	if !ok {
		return
	}
	rf, err := s.deps.Raffles.Reject(c.Request.Context(), c.Param("id"), currentUser(c), n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rf)
}

type drawRequest struct {
	Number *int `json:"number"`
}

// drawRaffle takes an optional body; manual raffles need the number.
func (s *Server) drawRaffle(c *gin.Context) {
	var req drawRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	rf, result, err := s.deps.Raffles.Draw(c.Request.Context(), c.Param("id"), currentUser(c), req.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raffle": rf, "payout": result})
}

func (s *Server) deleteRaffle(c *gin.Context) {
	if err := s.deps.Raffles.Delete(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
