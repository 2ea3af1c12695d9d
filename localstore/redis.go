package localstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisStore keeps the client state in Redis, namespaced per device id.
// Used when the engine runs server-assisted and device state should survive
// reinstalls. Same blob semantics as FileStore, still no cross-key guarantee.
type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

const redisOpTimeout = 2 * time.Second

func NewRedisStore(client *redis.Client, deviceId string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: "feedstate:" + deviceId + ":",
		// State older than 30 days is dead weight, let it expire.
		ttl: 30 * 24 * time.Hour,
	}
}

func (s *RedisStore) Get(key string, into interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.namespace+key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "redis get %s", key)
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return false, errors.Wrapf(err, "decode key %s", key)
	}
	return true, nil
}

func (s *RedisStore) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode key %s", key)
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return errors.Wrapf(s.client.Set(ctx, s.namespace+key, raw, s.ttl).Err(), "redis set %s", key)
}

func (s *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return errors.Wrapf(s.client.Del(ctx, s.namespace+key).Err(), "redis del %s", key)
}

var _ Store = (*RedisStore)(nil)
