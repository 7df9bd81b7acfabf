// Package dnc checks phone numbers against a shared do-not-call registry.
package dnc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const setKey = "outdial:dnc"

const pingTimeout = 5 * time.Second

// Registry answers whether a phone number may be dialed.
type Registry interface {
	IsListed(ctx context.Context, phoneNumber string) (bool, error)
	Add(ctx context.Context, phoneNumber string) error
	Close() error
}

// RedisRegistry backs the registry with a redis set shared across engine
// instances and the telephony workers.
type RedisRegistry struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisRegistry(ctx context.Context, logger *slog.Logger, redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRegistry{
		client: client,
		logger: logger.With("module", "dnc"),
	}, nil
}

func (r *RedisRegistry) IsListed(ctx context.Context, phoneNumber string) (bool, error) {
	listed, err := r.client.SIsMember(ctx, setKey, phoneNumber).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check do-not-call registry: %w", err)
	}

	return listed, nil
}

func (r *RedisRegistry) Add(ctx context.Context, phoneNumber string) error {
	err := r.client.SAdd(ctx, setKey, phoneNumber).Err()
	if err != nil {
		return fmt.Errorf("failed to add number to do-not-call registry: %w", err)
	}

	return nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// StaticRegistry is an in-memory registry for tests and single-node setups.
type StaticRegistry struct {
	mu      sync.RWMutex
	numbers map[string]struct{}
}

func NewStaticRegistry(phoneNumbers ...string) *StaticRegistry {
	numbers := make(map[string]struct{}, len(phoneNumbers))
	for _, number := range phoneNumbers {
		numbers[number] = struct{}{}
	}

	return &StaticRegistry{numbers: numbers}
}

func (r *StaticRegistry) IsListed(_ context.Context, phoneNumber string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, listed := r.numbers[phoneNumber]

	return listed, nil
}

func (r *StaticRegistry) Add(_ context.Context, phoneNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.numbers[phoneNumber] = struct{}{}

	return nil
}

func (r *StaticRegistry) Close() error {
	return nil
}
