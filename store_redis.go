package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore is the durable TokenStore backend. All coordination relies
// on Redis per-key atomicity; no locks are taken here. Key expiry is native
// Redis TTL, so revoked and active records clean themselves up.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(addr, password string, db int) *RedisTokenStore {
	return &RedisTokenStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *RedisTokenStore) PutActive(ctx context.Context, token, username string, ttl time.Duration) error {
	return s.client.Set(ctx, activeKeyPrefix+token, username, ttl).Err()
}

func (s *RedisTokenStore) AddToUserSet(ctx context.Context, username, token string, ttl time.Duration) error {
	key := userTokensKeyPrefix + username
	if err := s.client.SAdd(ctx, key, token).Err(); err != nil {
		return err
	}
	// Resets the whole set's TTL on every insert.
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisTokenStore) IsBlacklisted(ctx context.Context, token string) bool {
	n, err := s.client.Exists(ctx, blacklistKeyPrefix+token).Result()
	if err != nil {
		// Fail open: an unreachable backend must not lock every caller out.
		logger.Warnf("Error checking token blacklist status: %v", err)
		return false
	}
	return n > 0
}

func (s *RedisTokenStore) Blacklist(ctx context.Context, token, username string, remainingTTL time.Duration) error {
	if remainingTTL <= 0 {
		return nil
	}
	return s.client.Set(ctx, blacklistKeyPrefix+token, username, remainingTTL).Err()
}

func (s *RedisTokenStore) RemoveActive(ctx context.Context, token string) error {
	return s.client.Del(ctx, activeKeyPrefix+token).Err()
}

func (s *RedisTokenStore) RemoveFromUserSet(ctx context.Context, username, token string) error {
	return s.client.SRem(ctx, userTokensKeyPrefix+username, token).Err()
}

func (s *RedisTokenStore) UserSetMembers(ctx context.Context, username string) ([]string, error) {
	return s.client.SMembers(ctx, userTokensKeyPrefix+username).Result()
}

func (s *RedisTokenStore) DeleteUserSet(ctx context.Context, username string) error {
	return s.client.Del(ctx, userTokensKeyPrefix+username).Err()
}

func (s *RedisTokenStore) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

func (s *RedisTokenStore) Close() error { return s.client.Close() }
