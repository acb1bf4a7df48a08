package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const redisOpTimeout = 2 * time.Second

// RedisRepo stores sessions as JSON strings in Redis with a sliding TTL.
type RedisRepo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRepo wraps client. A zero ttl keeps entries until deleted.
func NewRedisRepo(client *redis.Client, prefix string, ttl time.Duration) *RedisRepo {
	return &RedisRepo{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRepo) Load(key string) (Persisted, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return Persisted{}, fleeterrors.ErrSessionNotFound
	}
	if err != nil {
		return Persisted{}, fmt.Errorf("%w: %w", fleeterrors.ErrSessionStoreFailed, err)
	}

	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, fleeterrors.Wrapf(err, "[session RedisRepo] decoding %s", key)
	}
	return p, nil
}

func (r *RedisRepo) Save(key string, p Persisted) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", fleeterrors.ErrSessionStoreFailed, err)
	}
	return nil
}

func (r *RedisRepo) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %w", fleeterrors.ErrSessionStoreFailed, err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
