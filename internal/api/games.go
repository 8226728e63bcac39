package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bingo-platform/internal/game/pattern"
	"bingo-platform/internal/model"
	"bingo-platform/internal/service"
)

type createGameRequest struct {
	Prize     int64  `json:"prize"`
	CardPrice int64  `json:"card_price"`
	Pattern   string `json:"pattern"`
	Mode      string `json:"mode"`
}

func (s *Server) createGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	kind, err := pattern.Parse(req.Pattern)
	if err != nil {
		respondError(c, err)
		return
	}

	g, err := s.deps.Bingo.Create(c.Request.Context(), currentUser(c), service.CreateGameInput{
		Prize:     req.Prize,
		CardPrice: req.CardPrice,
		Pattern:   kind,
		Mode:      model.Mode(strings.ToLower(req.Mode)),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// listGames accepts ?status=waiting,in_progress.
func (s *Server) listGames(c *gin.Context) {
	var statuses []model.GameStatus
	for _, st := range splitList(c.Query("status")) {
		statuses = append(statuses, model.GameStatus(st))
	}
	games, err := s.deps.Bingo.List(c.Request.Context(), statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (s *Server) getGame(c *gin.Context) {
	g, err := s.deps.Bingo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) buyCard(c *gin.Context) {
	card, g, err := s.deps.Bingo.BuyCard(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"card": card, "game": g})
}

func (s *Server) startGame(c *gin.Context) {
	g, err := s.deps.Bingo.Start(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type callRequest struct {
	Number int `json:"number" binding:"required"`
}

func (s *Server) callNumber(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, g, err := s.deps.Bingo.CallNumber(c.Request.Context(), c.Param("id"), currentUser(c), req.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": res, "game": g})
}

func (s *Server) deleteGame(c *gin.Context) {
	if err := s.deps.Bingo.Delete(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
