package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/service"
)

// RankingHandler handles the leaderboard and the admin dashboard.
type RankingHandler struct {
	statsService *service.StatsService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(statsService *service.StatsService) *RankingHandler {
	return &RankingHandler{statsService: statsService}
}

// HandleTop handles /top: the ten richest users, admins excluded.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	users, err := h.statsService.TopUsers(context.Background(), 10)
	if err != nil {
		return replyError(c, err)
	}
	if len(users) == 0 {
		return c.Reply("📊 No players yet")
	}

	var b strings.Builder
	b.WriteString("🏆 Top 10\n" + rule + "\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, user := range users {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s %s: %d\n", rank, displayName(user), user.Balance)
	}
	b.WriteString(rule)
	return c.Reply(b.String())
}

// HandleAdminStats handles /admin_stats.
func (h *RankingHandler) HandleAdminStats(c tele.Context) error {
	stats, err := h.statsService.Platform(context.Background())
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"📊 Platform\n%s\n"+
			"Commission earned: %d\n"+
			"  from games: %d\n"+
			"  from raffles: %d\n"+
			"Active games: %d\n"+
			"Active raffles: %d\n"+
			"Organizers: %d\n"+
			"Players: %d\n%s",
		rule, stats.TotalCommission, stats.GameCommission, stats.RaffleCommission,
		stats.ActiveGames, stats.ActiveRaffles, stats.Organizers, stats.Players, rule,
	))
}
