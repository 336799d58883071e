package tokenstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ministerio/escalas/core"
)

const keyPrefix = "revoked-token:"

// RedisStore shares revoked tokens between API instances.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+id, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
