// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package throttle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis, so that several server
// processes share one view of each caller.  Each counter is a hash
// with "count" and "expires" (Unix nanoseconds) fields, expiring with
// its window.
type RedisStore struct {
	Client redis.UniversalClient

	// Prefix is prepended to every key.
	Prefix string
}

// Get fetches a counter.  A hash whose fields do not parse is an
// error rather than a fresh window.
func (r RedisStore) Get(ctx context.Context, key string) (Counter, error) {
	values, err := r.Client.HGetAll(ctx, r.Prefix+key).Result()
	if err != nil {
		return Counter{}, err
	}
	if len(values) == 0 {
		return Counter{}, nil
	}
	count, err := strconv.Atoi(values["count"])
	if err != nil {
		return Counter{}, fmt.Errorf("throttle counter %q: bad count: %w", key, err)
	}
	expires, err := strconv.ParseInt(values["expires"], 10, 64)
	if err != nil {
		return Counter{}, fmt.Errorf("throttle counter %q: bad expiry: %w", key, err)
	}
	return Counter{Count: count, Expires: time.Unix(0, expires)}, nil
}

// Set stores a counter and its ttl in one transaction.
func (r RedisStore) Set(ctx context.Context, key string, c Counter, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.Prefix+key,
			"count", c.Count,
			"expires", c.Expires.UnixNano())
		pipe.PExpire(ctx, r.Prefix+key, ttl)
		return nil
	})
	return err
}
