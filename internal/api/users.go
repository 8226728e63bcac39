package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bingo-platform/internal/game"
	"bingo-platform/internal/model"
)

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return v, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil && v > 0 {
		return v
	}
	return def
}

func (s *Server) me(c *gin.Context) {
	user, err := s.deps.Accounts.GetUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) myTransactions(c *gin.Context) {
	txs, err := s.deps.Accounts.Transactions(c.Request.Context(), currentUser(c), queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

func (s *Server) setAvatar(c *gin.Context) {
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.deps.Accounts.SetAvatar(c.Request.Context(), currentUser(c), req.Avatar); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.deps.Accounts.ListUsers(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type roleRequest struct {
	Role model.Role `json:"role" binding:"required"`
}

func (s *Server) setRole(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := s.deps.Accounts.SetRole(c.Request.Context(), currentUser(c), id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type transferRequest struct {
	To     int64 `json:"to" binding:"required"`
	Amount int64 `json:"amount" binding:"required"`
}

func (s *Server) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := s.deps.Transfers.Transfer(ctx, currentUser(c), req.To, req.Amount); err != nil {
		respondError(c, err)
		return
	}
	balance, err := s.deps.Accounts.GetBalance(ctx, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *Server) platformStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.deps.Stats.Platform(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	top, err := s.deps.Stats.TopUsers(ctx, queryInt(c, "top", 10))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "top_users": top})
}

type balanceRequest struct {
	Op     string `json:"op" binding:"required"`
	Amount int64  `json:"amount"`
}

func (s *Server) adjustBalance(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req balanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		user *model.User
		err  error
	)
	switch req.Op {
	case "add":
		user, err = s.deps.Accounts.AdminAdd(ctx, id, req.Amount)
	case "sub":
		user, err = s.deps.Accounts.AdminSub(ctx, id, req.Amount)
	case "set":
		user, err = s.deps.Accounts.AdminSet(ctx, id, req.Amount)
	default:
		err = fmt.Errorf("%w: op must be add, sub or set", game.ErrValidation)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
