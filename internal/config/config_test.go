package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2500*time.Millisecond, cfg.Bingo.CallInterval)
	assert.Equal(t, int64(5), cfg.Bingo.CommissionPercent)
	assert.Equal(t, int64(1000), cfg.Accounts.InitialBalance)
	assert.Equal(t, 1000, cfg.Raffle.MaxTickets)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "@every 1m", cfg.Scheduler.ReconcileSpec)
	assert.Equal(t, 20, cfg.Database.PoolSize)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	yaml := `
bingo:
  call_interval: 1s
  commission_percent: 10
admin:
  ids: [1, 2]
database:
  host: db.internal
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("DATABASE_HOST", "override")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Bingo.CallInterval)
	assert.Equal(t, int64(10), cfg.Bingo.CommissionPercent)
	assert.Equal(t, "override", cfg.Database.Host)
	assert.True(t, cfg.IsAdmin(2))
	assert.False(t, cfg.IsAdmin(3))
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_ADDR=:9999\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HTTP_ADDR") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestIsChatAllowed(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.IsChatAllowed(42))

	cfg.Whitelist.Chats = []int64{1}
	assert.True(t, cfg.IsChatAllowed(1))
	assert.False(t, cfg.IsChatAllowed(42))
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}
