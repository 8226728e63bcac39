package game

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.Register("g1", cancel))
	assert.True(t, r.Active("g1"))
	assert.Equal(t, 1, r.Count())

	assert.ErrorIs(t, r.Register("g1", func() {}), ErrSessionExists)

	assert.True(t, r.Cancel("g1"))
	assert.Error(t, ctx.Err())
	assert.False(t, r.Active("g1"))
	assert.False(t, r.Cancel("g1"))
}

func TestRegistry_RejectsBadInput(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", func() {}))
	assert.Error(t, r.Register("g1", nil))
	assert.Zero(t, r.Count())
}

func TestRegistry_DoneDoesNotCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Register("g1", cancel))
	r.Done("g1")

	assert.False(t, r.Active("g1"))
	assert.NoError(t, ctx.Err())
}

func TestRegistry_CancelAll(t *testing.T) {
	r := NewRegistry()
	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	require.NoError(t, r.Register("a", cancelA))
	require.NoError(t, r.Register("b", cancelB))

	ids := r.IDs()
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)

	r.CancelAll()
	assert.Error(t, ctxA.Err())
	assert.Error(t, ctxB.Err())
	assert.Zero(t, r.Count())
}
