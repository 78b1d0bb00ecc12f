package config

import "strings"

type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendFile   StoreBackend = "file"
	StoreBackendRedis  StoreBackend = "redis"
)

type StoreConfig interface {
	GetTokenStoreBackend() StoreBackend
	GetRedisURL() string
	GetStoreEncryptionKey() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetTokenStoreBackend() StoreBackend {
	switch backend := StoreBackend(strings.ToLower(GetEnv("TOKEN_STORE", string(StoreBackendMemory)))); backend {
	case StoreBackendFile, StoreBackendRedis:
		return backend
	default:
		return StoreBackendMemory
	}
}

func (Store) GetRedisURL() string {
	return GetEnv("REDIS_URL", "localhost:6379")
}

// GetStoreEncryptionKey enables at-rest encryption of the file token store.
func (Store) GetStoreEncryptionKey() string {
	return GetEnv("STORE_ENCRYPTION_KEY", "")
}
