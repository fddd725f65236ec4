package utils

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/bsm/redislock"
)

func GetCacheLifespan(def time.Duration) time.Duration {
	secs, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN_SECONDS"))
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// RememberRedis returns the cached value at key or computes, stores and returns it.
// Cache errors are logged and never fail the caller.
func RememberRedis[T any](ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := config.GetRedisObject(key, &cached)
	if err != nil {
		config.LogError(config.GetLogger(), "Utils", "RememberRedis", "read cache", key, err)
	}
	if found {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}
	if err := config.SetRedisObject(key, value, ttl); err != nil {
		config.LogError(config.GetLogger(), "Utils", "RememberRedis", "write cache", key, err)
	}
	return value, nil
}

func RemoveRedisCache(keys ...string) {
	if err := config.RemoveRedisKey(keys...); err != nil {
		config.LogError(config.GetLogger(), "Utils", "RemoveRedisCache", "delete cache", keys, err)
	}
}

// ObtainScopeLock takes a short redis lock on key, waiting at most wait.
// It is advisory: when redis is absent or the lock cannot be taken the
// returned release is a no-op and ok is false.
func ObtainScopeLock(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (release func(), ok bool) {
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil {
		return noop, false
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	lock, err := locker.Obtain(waitCtx, "Lock:"+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) && !errors.Is(err, context.DeadlineExceeded) {
			config.LogError(config.GetLogger(), "Utils", "ObtainScopeLock", "obtain lock", key, err)
		}
		return noop, false
	}
	return func() {
		_ = lock.Release(context.Background())
	}, true
}
