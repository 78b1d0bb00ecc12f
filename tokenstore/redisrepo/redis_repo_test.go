package redisrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/tokenstore"
	"github.com/jrsteele09/go-account-shell/tokenstore/redisrepo"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, context.Background()
}

func TestRedisRepo_StoreRoundTrip(t *testing.T) {
	mr, ctx := setupRedis(t)

	client, err := redisrepo.Connect(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := redisrepo.New(client, "shell-1")
	store := tokenstore.New(repo)

	require.NoError(t, store.SaveCredential(ctx, accountmodel.Credential{
		AccessToken: "T1", ExpiresAt: "20300101000000000000", SessionID: "abc123", UserID: "u1",
	}))
	require.Equal(t, "T1", mr.HGet("account-shell:shell-1", tokenstore.KeyToken))

	cred, err := store.LoadCredential(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc123", cred.SessionID)

	t.Run("namespaces are isolated", func(t *testing.T) {
		other, err := tokenstore.New(redisrepo.New(client, "shell-2")).LoadCredential(ctx)
		require.NoError(t, err)
		require.Nil(t, other)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		require.False(t, mr.Exists(repo.Key()))

		_, found, err := repo.Get(ctx, tokenstore.KeyToken)
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestRedisRepo_TTL(t *testing.T) {
	mr, ctx := setupRedis(t)

	client, err := redisrepo.Connect(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := redisrepo.New(client, "shell-3", redisrepo.WithTTL(time.Hour), redisrepo.WithPrefix("tenant-portal:"))
	require.Equal(t, "tenant-portal:shell-3", repo.Key())

	require.NoError(t, repo.Set(ctx, tokenstore.KeyToken, "T1"))
	require.Equal(t, time.Hour, mr.TTL(repo.Key()))

	mr.FastForward(2 * time.Hour)
	_, found, err := repo.Get(ctx, tokenstore.KeyToken)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisRepo_ConnectFailure(t *testing.T) {
	mr, ctx := setupRedis(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redisrepo.Connect(ctx, addr)
	require.Error(t, err)
}
