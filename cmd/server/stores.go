package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-account-shell/internal/config"
	"github.com/jrsteele09/go-account-shell/tokenstore"
	"github.com/jrsteele09/go-account-shell/tokenstore/filerepo"
	"github.com/jrsteele09/go-account-shell/tokenstore/redisrepo"
	"github.com/jrsteele09/go-account-shell/tokenstore/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// storeFactory hands every shell its own token store namespace on the
// configured backend.
type storeFactory struct {
	backend    config.StoreBackend
	folder     string
	passphrase string
	redis      *redis.Client
	redisOpts  []redisrepo.Option

	mu     sync.Mutex
	memory map[string]*repofake.FakeRepo
}

func newStoreFactory(ctx context.Context, c config.Config) (*storeFactory, error) {
	f := &storeFactory{
		backend:    c.GetTokenStoreBackend(),
		folder:     c.GetDataFolder(),
		passphrase: c.GetStoreEncryptionKey(),
		memory:     make(map[string]*repofake.FakeRepo),
	}

	switch f.backend {
	case config.StoreBackendRedis:
		client, err := redisrepo.Connect(ctx, c.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("[main newStoreFactory] %w", err)
		}
		f.redis = client
		f.redisOpts = []redisrepo.Option{redisrepo.WithTTL(c.GetShellMaxAge())}
	case config.StoreBackendFile:
		if f.passphrase == "" {
			log.Warn().Str("folder", f.folder).Msg("File token store is not encrypted, set STORE_ENCRYPTION_KEY")
		}
	}

	log.Info().Str("backend", string(f.backend)).Msg("Token store configured")
	return f, nil
}

func (f *storeFactory) New(shellID string) (*tokenstore.Store, error) {
	switch f.backend {
	case config.StoreBackendRedis:
		return tokenstore.New(redisrepo.New(f.redis, shellID, f.redisOpts...)), nil
	case config.StoreBackendFile:
		repo, err := filerepo.New(f.folder, shellID, filerepo.WithPassphrase(f.passphrase))
		if err != nil {
			return nil, err
		}
		return tokenstore.New(repo), nil
	default:
		// kept per shell id so a reaped shell that comes back finds its values
		f.mu.Lock()
		defer f.mu.Unlock()
		repo, ok := f.memory[shellID]
		if !ok {
			repo = repofake.NewFakeRepo()
			f.memory[shellID] = repo
		}
		return tokenstore.New(repo), nil
	}
}

// Forget drops a reaped shell's in-memory values. Redis expires its keys on
// its own and the file backend keeps them on disk.
func (f *storeFactory) Forget(shellID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.memory, shellID)
}

func (f *storeFactory) Close() {
	if f.redis == nil {
		return
	}
	if err := f.redis.Close(); err != nil {
		log.Err(err).Msg("Failed to close redis client")
	}
}
