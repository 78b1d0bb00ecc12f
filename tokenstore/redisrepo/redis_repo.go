package redisrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-account-shell/tokenstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "account-shell:"

var _ tokenstore.Repo = (*RedisRepo)(nil)

// RedisRepo keeps one token store namespace in one Redis hash.
type RedisRepo struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

type Option func(*RedisRepo)

// WithTTL expires the whole namespace after ttl without writes.
func WithTTL(ttl time.Duration) Option {
	return func(r *RedisRepo) {
		r.ttl = ttl
	}
}

// WithPrefix replaces the "account-shell:" hash key prefix.
func WithPrefix(prefix string) Option {
	return func(r *RedisRepo) {
		r.key = prefix + strings.TrimPrefix(r.key, defaultPrefix)
	}
}

func New(client *redis.Client, namespace string, options ...Option) *RedisRepo {
	r := &RedisRepo{
		client: client,
		key:    defaultPrefix + namespace,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Key is the Redis hash holding the namespace.
func (r *RedisRepo) Key() string {
	return r.key
}

func (r *RedisRepo) Get(ctx context.Context, field string) (string, bool, error) {
	value, err := r.client.HGet(ctx, r.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[RedisRepo.Get] HGet")
	}
	return value, true, nil
}

func (r *RedisRepo) Set(ctx context.Context, field, value string) error {
	if r.ttl <= 0 {
		if err := r.client.HSet(ctx, r.key, field, value).Err(); err != nil {
			return errors.Wrap(err, "[RedisRepo.Set] HSet")
		}
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, field, value)
		pipe.Expire(ctx, r.key, r.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Set] HSet+Expire")
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.key, fields...).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Delete] HDel")
	}
	return nil
}
