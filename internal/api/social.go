package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type creditRequest struct {
	To     int64  `json:"to" binding:"required"`
	Amount int64  `json:"amount"`
	Proof  string `json:"proof"`
}

func (s *Server) requestCredit(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cr, err := s.deps.Credits.Request(c.Request.Context(), currentUser(c), req.To, req.Amount, req.Proof)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cr)
}

// listCreditRequests returns the pending requests addressed to the caller
// and the caller's own requests.
func (s *Server) listCreditRequests(c *gin.Context) {
	ctx := c.Request.Context()
	pending, err := s.deps.Credits.ListPending(ctx, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	mine, err := s.deps.Credits.ListByUser(ctx, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "mine": mine})
}

func (s *Server) approveCredit(c *gin.Context) {
	cr, err := s.deps.Credits.Approve(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

func (s *Server) rejectCredit(c *gin.Context) {
	cr, err := s.deps.Credits.Reject(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

type messageRequest struct {
	To   int64  `json:"to" binding:"required"`
	Text string `json:"text"`
}

func (s *Server) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := s.deps.Chat.Send(c.Request.Context(), currentUser(c), req.To, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) conversation(c *gin.Context) {
	partner, ok := int64Param(c, "partner")
	if !ok {
		return
	}
	msgs, err := s.deps.Chat.Conversation(c.Request.Context(), currentUser(c), partner, queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) markRead(c *gin.Context) {
	partner, ok := int64Param(c, "partner")
	if !ok {
		return
	}
	n, err := s.deps.Chat.MarkRead(c.Request.Context(), currentUser(c), partner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (s *Server) unreadCounts(c *gin.Context) {
	counts, err := s.deps.Chat.UnreadCounts(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": counts})
}

func (s *Server) conversations(c *gin.Context) {
	partners, err := s.deps.Chat.Partners(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners})
}
