package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-account-shell/tokenstore"
)

var _ tokenstore.Repo = (*FakeRepo)(nil)

// FakeRepo is an in-memory Repo. It backs the "memory" token store and tests.
type FakeRepo struct {
	values map[string]string
	lock   sync.RWMutex

	// FailWith, when set, is returned by every operation
	FailWith error
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		values: make(map[string]string),
	}
}

func (r *FakeRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.FailWith != nil {
		return "", false, r.FailWith
	}
	value, ok := r.values[key]
	return value, ok, nil
}

func (r *FakeRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.values[key] = value
	return nil
}

func (r *FakeRepo) Delete(_ context.Context, keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	for _, key := range keys {
		delete(r.values, key)
	}
	return nil
}

// Len is the number of stored keys.
func (r *FakeRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.values)
}

// Value returns the raw stored value, "" when absent.
func (r *FakeRepo) Value(key string) string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.values[key]
}
