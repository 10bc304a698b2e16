package redis_utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"autoinvest/src/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const lockPrefix = "autoinvest:lock:"

// releaseScript deletes the lock only when it still carries our token, so an
// expired lock re-acquired by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a distributed per-key lock shared by every engine instance.
type RedisLocker struct {
	client       redis.UniversalClient
	ttl          time.Duration
	pollInterval time.Duration
	logger       *logrus.Logger
}

// NewRedisLocker initializes a locker connected to the configured Redis.
func NewRedisLocker(cfg *config.Config, logger *logrus.Logger) (*RedisLocker, error) {
	opts := &redis.Options{
		Addr:     cfg.Databases.Redis.Host + ":" + cfg.Databases.Redis.Port,
		Username: cfg.Databases.Redis.Username,
		Password: cfg.Databases.Redis.Password,
		DB:       cfg.Databases.Redis.Database,
	}
	if cfg.Databases.Redis.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLockerWithClient(client, cfg.Engine.LockTTL, logger), nil
}

func NewRedisLockerWithClient(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisLocker{client: client, ttl: ttl, pollInterval: 50 * time.Millisecond, logger: logger}
}

// TryLock takes key if it is free.
func (r *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockPrefix+key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return r.unlocker(key, token), true, nil
}

// Lock polls until key is free or ctx is done.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		unlock, ok, err := r.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *RedisLocker) unlocker(key, token string) func() {
	return func() {
		// release must survive a cancelled request context
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := releaseScript.Run(ctx, r.client, []string{lockPrefix + key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.WithError(err).WithField("lock", key).Error("failed to release lock")
		}
	}
}

// Close closes the Redis client connection.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
