package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-account-shell/internal/config"
	"github.com/jrsteele09/go-account-shell/tokenstore/redisrepo"
	"github.com/jrsteele09/go-account-shell/tokenstore/repofake"
	"github.com/stretchr/testify/require"
)

func TestStoreFactory_Backends(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client, err := redisrepo.Connect(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name    string
		factory *storeFactory
	}{
		{name: "memory", factory: &storeFactory{backend: config.StoreBackendMemory, memory: make(map[string]*repofake.FakeRepo)}},
		{name: "file", factory: &storeFactory{backend: config.StoreBackendFile, folder: t.TempDir(), passphrase: "secret"}},
		{name: "redis", factory: &storeFactory{backend: config.StoreBackendRedis, redis: client}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := tt.factory.New("shell-1")
			require.NoError(t, err)
			require.NoError(t, first.SaveSessionIdentifiers(ctx, "abc123", "u1"))

			// a re-mounted shell sees the same namespace
			again, err := tt.factory.New("shell-1")
			require.NoError(t, err)
			sessionID, userID, err := again.SessionIdentifiers(ctx)
			require.NoError(t, err)
			require.Equal(t, "abc123", sessionID)
			require.Equal(t, "u1", userID)

			// other shells do not
			other, err := tt.factory.New("shell-2")
			require.NoError(t, err)
			sessionID, _, err = other.SessionIdentifiers(ctx)
			require.NoError(t, err)
			require.Empty(t, sessionID)
		})
	}
}

func TestStoreFactory_ForgetReleasesMemoryStore(t *testing.T) {
	ctx := context.Background()
	factory := &storeFactory{backend: config.StoreBackendMemory, memory: make(map[string]*repofake.FakeRepo)}

	store, err := factory.New("shell-1")
	require.NoError(t, err)
	require.NoError(t, store.SaveSessionIdentifiers(ctx, "abc123", "u1"))
	_, err = factory.New("shell-2")
	require.NoError(t, err)
	require.Len(t, factory.memory, 2)

	factory.Forget("shell-1")
	factory.Forget("unknown")
	require.Len(t, factory.memory, 1)

	again, err := factory.New("shell-1")
	require.NoError(t, err)
	sessionID, _, err := again.SessionIdentifiers(ctx)
	require.NoError(t, err)
	require.Empty(t, sessionID)
}
