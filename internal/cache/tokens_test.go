package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "alice", "token-1", time.Minute))

	valid, err := s.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = s.Validate(ctx, "alice", "token-2")
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = s.Validate(ctx, "bob", "token-1")
	require.NoError(t, err)
	assert.False(t, valid)

	// A new save supersedes the previous token.
	require.NoError(t, s.Save(ctx, "alice", "token-2", time.Minute))
	valid, err = s.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	assert.False(t, valid)

	require.NoError(t, s.Revoke(ctx, "alice"))
	valid, err = s.Validate(ctx, "alice", "token-2")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestMemoryTokenStoreExpiry(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "alice", "token-1", -time.Second))

	valid, err := s.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	assert.False(t, valid, "expired tokens must not validate")
}
