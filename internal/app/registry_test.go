package app

import (
	"context"
	"strings"
	"testing"

	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRegistryBind(t *testing.T) {
	r := NewRegistry()

	u := r.Bind("0123456789abcdef", "tok", "", nil)
	require.Equal(t, "User-01234567", u.Username)
	require.Equal(t, domain.UserID("0123456789abcdef"), u.ID)

	u = r.Bind("s2", "tok2", "alice", nil)
	require.Equal(t, "alice", u.Username)

	u = r.Bind("s3", "", strings.Repeat("x", domain.MaxUsernameLen+1), nil)
	require.Equal(t, "User-s3", u.Username)

	require.Equal(t, 3, r.Count())
}

func TestRegistryRename(t *testing.T) {
	r := NewRegistry()
	r.Bind("s1", "", "", nil)

	u, err := r.UpdateUsername("s1", "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", u.Username)

	_, err = r.UpdateUsername("s1", "")
	require.ErrorIs(t, err, domain.ErrUsernameEmpty)
	got, _ := r.User("s1")
	require.Equal(t, "bob", got.Username)

	_, err = r.UpdateUsername("nope", "x")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistryUnbindAndCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	r.Bind("s1", "", "", cancel)

	require.True(t, r.Cancel("s1"))
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	_, ok := r.Unbind("s1")
	require.True(t, ok)
	_, ok = r.Unbind("s1")
	require.False(t, ok)
	require.False(t, r.Cancel("s1"))
}
