// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package throttle rate-limits callers by identity.  A Cache throttle
// keeps a (count, window expiry) pair per caller in a shared Store;
// once the count reaches the ceiling the caller must wait for the
// window to close.
//
// The counter is read and written without a transaction, so two
// requests from the same caller at the same instant can both pass the
// check before either increment lands.  The ceiling is a best-effort
// bound, not a hard limit.
package throttle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Defaults for Cache.
const (
	DefaultAt        = 120
	DefaultTimeframe = 60 * time.Second
)

// A Throttle decides whether a caller must wait.
type Throttle interface {
	// Check returns the number of seconds the caller must wait,
	// or 0 if the request may proceed.
	Check(ctx context.Context, identifier string) (int, error)
}

// Null never throttles anybody.
type Null struct{}

// Check always returns 0.
func (Null) Check(context.Context, string) (int, error) {
	return 0, nil
}

// Counter is one caller's access count in the current window.
type Counter struct {
	Count   int
	Expires time.Time
}

// Store holds counters.  Missing or expired keys read as a zero
// Counter.
type Store interface {
	Get(ctx context.Context, key string) (Counter, error)

	// Set stores a counter; the store may forget it after ttl.
	Set(ctx context.Context, key string, c Counter, ttl time.Duration) error
}

// Cache throttles callers to At requests per Timeframe.
type Cache struct {
	Store     Store
	At        int
	Timeframe time.Duration

	// Clock is the time source; nil means the wall clock.
	Clock clock.Clock
}

func (c *Cache) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

// Check counts a request from identifier.  If the caller has already
// made At requests in an open window, the remaining window time, in
// whole seconds rounded up, is returned and nothing is counted.
func (c *Cache) Check(ctx context.Context, identifier string) (int, error) {
	at, timeframe := c.At, c.Timeframe
	if at <= 0 {
		at = DefaultAt
	}
	if timeframe <= 0 {
		timeframe = DefaultTimeframe
	}
	key := Key(identifier)
	now := c.now()
	counter, err := c.Store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if counter.Expires.IsZero() || !now.Before(counter.Expires) {
		counter = Counter{Expires: now.Add(timeframe)}
	}
	remaining := counter.Expires.Sub(now)
	if counter.Count >= at {
		return int(math.Ceil(remaining.Seconds())), nil
	}
	counter.Count++
	return 0, c.Store.Set(ctx, key, counter, remaining)
}

const (
	maxKeyLength = 230
	keyPrefixLen = 150
)

// Key converts an identifier into a counter key.  Characters other
// than letters, digits, '_', '.' and '-' are dropped, and overlong
// keys are shortened with an MD5 digest.
func Key(identifier string) string {
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '.', r == '-':
			return r
		}
		return -1
	}, identifier)
	if len(key) > maxKeyLength {
		sum := md5.Sum([]byte(key))
		key = key[:keyPrefixLen] + "-" + hex.EncodeToString(sum[:])
	}
	return key + "_accesses"
}
