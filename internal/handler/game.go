package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"bingo-platform/internal/game/card"
	"bingo-platform/internal/game/pattern"
	"bingo-platform/internal/model"
	"bingo-platform/internal/service"
)

// GameHandler handles bingo commands.
type GameHandler struct {
	accountService *service.AccountService
	bingoService   *service.BingoService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(accountService *service.AccountService, bingoService *service.BingoService) *GameHandler {
	return &GameHandler{
		accountService: accountService,
		bingoService:   bingoService,
	}
}

// HandleNewGame handles /newgame <prize> <card_price> <pattern> <auto|manual>.
func (h *GameHandler) HandleNewGame(c tele.Context) error {
	ctx := context.Background()
	user, err := ensureSender(ctx, h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}

	args := c.Args()
	if len(args) != 4 {
		return c.Reply("❌ Usage: /newgame <prize> <card_price> <pattern> <auto|manual>\n" +
			"Patterns: " + patternNames())
	}
	prize, err := parseAmount(args[0])
	if err != nil {
		return replyError(c, err)
	}
	price, err := parseAmount(args[1])
	if err != nil {
		return replyError(c, err)
	}
	kind, err := pattern.Parse(args[2])
	if err != nil {
		return replyError(c, err)
	}
	mode, err := parseMode(args[3])
	if err != nil {
		return replyError(c, err)
	}

	g, err := h.bingoService.Create(ctx, user.ID, service.CreateGameInput{
		Prize:     prize,
		CardPrice: price,
		Pattern:   kind,
		Mode:      mode,
	})
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf(
		"🎱 Bingo game created\n%s\n"+
			"ID: %s\n"+
			"Prize: %d | Card: %d\n"+
			"Pattern: %s | Mode: %s\n%s\n"+
			"Buy a card with /buycard %s",
		rule, g.ID, g.Prize, g.CardPrice, g.Pattern, g.Mode, rule, g.ID,
	))
}

// HandleGames handles /games: waiting and running games.
func (h *GameHandler) HandleGames(c tele.Context) error {
	games, err := h.bingoService.List(context.Background(), model.GameWaiting, model.GameInProgress)
	if err != nil {
		return replyError(c, err)
	}
	if len(games) == 0 {
		return c.Reply("🎱 No open games")
	}

	var b strings.Builder
	b.WriteString("🎱 Open games\n" + rule + "\n")
	for _, g := range games {
		fmt.Fprintf(&b, "%s\n  %s, %s, pot %d, card %d, %d cards, %s\n",
			g.ID, g.Pattern, g.Mode, g.Pot, g.CardPrice, g.CardCount(), g.Status)
	}
	b.WriteString(rule)
	return c.Reply(b.String())
}

// HandleBuyCard handles /buycard <game_id>.
func (h *GameHandler) HandleBuyCard(c tele.Context) error {
	ctx := context.Background()
	user, err := ensureSender(ctx, h.accountService, c)
	if err != nil {
		return replyError(c, err)
	}
	if len(c.Args()) != 1 {
		return c.Reply("❌ Usage: /buycard <game_id>")
	}

	cd, g, err := h.bingoService.BuyCard(ctx, c.Args()[0], user.ID)
	if err != nil {
		return replyError(c, err)
	}
	return c.Reply(fmt.Sprintf("🎟 Card bought for %d credits. Pot: %d\n\n%s", g.CardPrice, g.Pot, formatCard(cd, nil)), tele.ModeMarkdown)
}

// HandleMyCards handles /mycards <game_id>, marking called numbers.
func (h *GameHandler) HandleMyCards(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) != 1 {
		return c.Reply("❌ Usage: /mycards <game_id>")
	}

	g, err := h.bingoService.Get(context.Background(), c.Args()[0])
	if err != nil {
		return replyError(c, err)
	}
	p := g.Player(sender.ID)
	if p == nil || len(p.Cards) == 0 {
		return c.Reply("🎟 You have no cards in this game")
	}

	called := make(map[int]bool, len(g.CalledNumbers))
	for _, n := range g.CalledNumbers {
		called[n] = true
	}
	cards := make([]string, 0, len(p.Cards))
	for i, cd := range p.Cards {
		cards = append(cards, fmt.Sprintf("Card %d\n%s", i+1, formatCard(cd, called)))
	}
	return c.Reply(strings.Join(cards, "\n\n"), tele.ModeMarkdown)
}

// HandleStartGame handles /startgame <game_id>.
func (h *GameHandler) HandleStartGame(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) != 1 {
		return c.Reply("❌ Usage: /startgame <game_id>")
	}

	g, err := h.bingoService.Start(context.Background(), c.Args()[0], sender.ID)
	if err != nil {
		return replyError(c, err)
	}
	if g.Mode == model.ModeAutomatic {
		return c.Reply(fmt.Sprintf("▶️ Game started with %d cards. Numbers are called automatically.", g.CardCount()))
	}
	return c.Reply(fmt.Sprintf("▶️ Game started with %d cards. Call numbers with /call %s <number>", g.CardCount(), g.ID))
}

// HandleCall handles /call <game_id> <number> for manual games.
func (h *GameHandler) HandleCall(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Reply("❌ Usage: /call <game_id> <number>")
	}
	n, err := parseNumber(args[1])
	if err != nil {
		return replyError(c, err)
	}

	res, g, err := h.bingoService.CallNumber(context.Background(), args[0], sender.ID, n)
	if err != nil {
		return replyError(c, err)
	}
	msg := fmt.Sprintf("📣 %s (%d called)", ballName(res.Number), len(g.CalledNumbers))
	switch {
	case len(res.Winners) > 0:
		msg += fmt.Sprintf("\n🏆 BINGO! Winners: %s", formatIDs(res.Winners))
	case res.Exhausted:
		msg += "\n🏁 All numbers called, no winner"
	}
	return c.Reply(msg)
}

// HandleDeleteGame handles /delgame <game_id>.
func (h *GameHandler) HandleDeleteGame(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) != 1 {
		return c.Reply("❌ Usage: /delgame <game_id>")
	}
	if err := h.bingoService.Delete(context.Background(), c.Args()[0], sender.ID); err != nil {
		return replyError(c, err)
	}
	return c.Reply("🗑 Game deleted")
}

// formatCard renders a card as a fixed-width grid. Numbers in called are
// shown in brackets.
func formatCard(cd card.Card, called map[int]bool) string {
	var b strings.Builder
	b.WriteString("```\n  B    I    N    G    O\n")
	for row := range card.Size {
		for col := range card.Size {
			n := cd[row][col]
			switch {
			case n == card.Free:
				b.WriteString(" **  ")
			case called[n]:
				fmt.Fprintf(&b, "[%2d] ", n)
			default:
				fmt.Fprintf(&b, " %2d  ", n)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("```")
	return b.String()
}

// ballName prefixes a number with its column letter, e.g. "N-42".
func ballName(n int) string {
	const letters = "BINGO"
	col := (n - 1) / card.ColumnSpan
	if col < 0 || col >= len(letters) {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%c-%d", letters[col], n)
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}

func patternNames() string {
	kinds := pattern.All()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = strings.ToLower(string(k))
	}
	return strings.Join(names, ", ")
}
