package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrBasketNotFound = errors.New("basket not found")

// BasketStore keeps a patient's serialised basket between review and checkout.
type BasketStore interface {
	Save(ctx context.Context, sessionID string, payload []byte) error
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisBasketStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBasketStore stores baskets as plain keys that expire after ttl.
func NewRedisBasketStore(client *redis.Client, ttl time.Duration) BasketStore {
	return &redisBasketStore{client: client, ttl: ttl}
}

func basketKey(sessionID string) string {
	return "basket:" + sessionID
}

func (s *redisBasketStore) Save(ctx context.Context, sessionID string, payload []byte) error {
	if err := s.client.Set(ctx, basketKey(sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save basket: %w", err)
	}
	return nil
}

func (s *redisBasketStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := s.client.Get(ctx, basketKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBasketNotFound
		}
		return nil, fmt.Errorf("load basket: %w", err)
	}
	return data, nil
}

func (s *redisBasketStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, basketKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete basket: %w", err)
	}
	return nil
}
