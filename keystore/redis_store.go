package keystore

import (
	"context"
	"errors"

	"github.com/demesne/go-demesne-server/types"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "demesne:key:"

// RedisSecureStore keeps sealed secrets in Redis. Values never leave the process unencrypted.
type RedisSecureStore struct {
	client *redis.Client
	sealer *Sealer
}

func NewRedisSecureStore(client *redis.Client, sealer *Sealer) *RedisSecureStore {
	return &RedisSecureStore{client: client, sealer: sealer}
}

func (r *RedisSecureStore) Get(ctx context.Context, id string) (string, error) {
	sealed, err := r.client.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", types.ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return r.sealer.Open(id, sealed)
}

func (r *RedisSecureStore) Set(ctx context.Context, id string, value string) error {
	sealed, err := r.sealer.Seal(id, value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+id, sealed, 0).Err()
}

func (r *RedisSecureStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, redisKeyPrefix+id).Err()
}
