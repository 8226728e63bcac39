package bot

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"bingo-platform/internal/config"
)

func TestAdminConfigProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := rapid.SliceOfN(rapid.Int64Range(1, 1000000000), 1, 10).Draw(t, "adminIDs")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: adminIDs}}

		known := adminIDs[rapid.IntRange(0, len(adminIDs)-1).Draw(t, "index")]
		if !cfg.IsAdmin(known) {
			t.Fatalf("admin %d not recognized in %v", known, adminIDs)
		}

		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")
		if cfg.IsAdmin(userID) != slices.Contains(adminIDs, userID) {
			t.Fatalf("IsAdmin(%d) mismatch for %v", userID, adminIDs)
		}
	})
}

func TestWhitelistProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Group chat IDs are negative.
		chatIDs := rapid.SliceOfN(rapid.Int64Range(-1000000000, -1), 1, 10).Draw(t, "chatIDs")
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: chatIDs}}

		known := chatIDs[rapid.IntRange(0, len(chatIDs)-1).Draw(t, "index")]
		if !cfg.IsChatAllowed(known) {
			t.Fatalf("chat %d not allowed with whitelist %v", known, chatIDs)
		}

		chatID := rapid.Int64Range(-1000000000, -1).Draw(t, "chatID")
		if cfg.IsChatAllowed(chatID) != slices.Contains(chatIDs, chatID) {
			t.Fatalf("IsChatAllowed(%d) mismatch for %v", chatID, chatIDs)
		}
	})
}

func TestEmptyWhitelistAllowsAllChatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := &config.Config{}
		chatID := rapid.Int64().Draw(t, "chatID")
		if !cfg.IsChatAllowed(chatID) {
			t.Fatalf("empty whitelist rejected chat %d", chatID)
		}
	})
}

func TestPrivateUserCacheProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")
		AllowPrivateUser(userID)
		if !IsPrivateUserAllowed(userID) {
			t.Fatalf("user %d not allowed after AllowPrivateUser", userID)
		}
	})
}
