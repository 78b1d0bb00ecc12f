package tokenstore

import "context"

// Repo is the durable key/value storage behind a Store. Implementations
// must report a missing key as found == false with a nil error.
type Repo interface {
	// Get returns the value stored under key
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes the keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
}
