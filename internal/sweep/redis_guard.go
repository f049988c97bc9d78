package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisGuardConfig describes the connection parameters of the shared guard.
type RedisGuardConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
	// TTL bounds how long a crashed instance can hold the lease. It must
	// exceed the worst-case iteration duration.
	TTL time.Duration
}

// RedisGuard implements Guard with a SETNX lease so multiple sweeper
// processes sharing one account set never run overlapping iterations.
type RedisGuard struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// releaseScript deletes the lease only when it is still ours; an expired
// lease re-acquired by another instance must not be released from here.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// NewRedisGuard connects to Redis and returns a shared single-flight guard.
func NewRedisGuard(cfg RedisGuardConfig) (*RedisGuard, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis guard address is required")
	}
	key := cfg.Key
	if key == "" {
		key = "treasurysweep:iteration"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis guard: %w", err)
	}
	return &RedisGuard{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}, nil
}

// TryAcquire claims the lease iff no other iteration holds it.
func (g *RedisGuard) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key, g.token, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire iteration lease: %w", err)
	}
	return ok, nil
}

// Release frees the lease when it is still held by this instance.
func (g *RedisGuard) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key}, g.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release iteration lease: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (g *RedisGuard) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}
