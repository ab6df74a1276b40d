package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisTokenStore is the Redis-backed TokenStore for multi-instance
// deployments.
type RedisTokenStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisTokenStore connects to Redis and verifies the connection.
func NewRedisTokenStore(addr, password string, db int, logger zerolog.Logger) (*RedisTokenStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info().Str("addr", addr).Msg("connected to Redis")
	return &RedisTokenStore{client: client, log: logger}, nil
}

func tokenKey(username string) string {
	return "refresh:" + username
}

func (s *RedisTokenStore) Save(ctx context.Context, username, refreshToken string, ttl time.Duration) error {
	return s.client.Set(ctx, tokenKey(username), refreshToken, ttl).Err()
}

func (s *RedisTokenStore) Validate(ctx context.Context, username, refreshToken string) (bool, error) {
	stored, err := s.client.Get(ctx, tokenKey(username)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == refreshToken, nil
}

func (s *RedisTokenStore) Revoke(ctx context.Context, username string) error {
	return s.client.Del(ctx, tokenKey(username)).Err()
}

// Close shuts down the underlying client.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
