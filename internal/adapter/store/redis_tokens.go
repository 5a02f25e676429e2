package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix = "blacklist:"
	refreshPrefix   = "refresh:"
)

// RedisTokenStore keeps revoked access token ids until they would have
// expired anyway, and the id of each user's current refresh token.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error {
	return s.client.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err()
}

func (s *RedisTokenStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisTokenStore) SaveRefreshToken(ctx context.Context, userID, tokenID string, ttl time.Duration) error {
	return s.client.Set(ctx, refreshPrefix+userID, tokenID, ttl).Err()
}

// GetRefreshToken returns "" when the user has no live refresh token.
func (s *RedisTokenStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	id, err := s.client.Get(ctx, refreshPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (s *RedisTokenStore) DeleteRefreshToken(ctx context.Context, userID string) error {
	return s.client.Del(ctx, refreshPrefix+userID).Err()
}
