package ratelimit

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a fixed-window limiter whose counters live in Redis, so every
// process behind a load balancer shares them. Windows are aligned to
// multiples of the window length. Denied attempts still bump the counter;
// once over the limit a window stays over it, so the outcome is the same.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, prefix string, limit int, win time.Duration) *Redis {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if win < time.Millisecond {
		win = DefaultWindow
	}
	return &Redis{client: client, prefix: prefix, limit: limit, window: win}
}

func (l *Redis) Admit(ctx context.Context, identity string, now time.Time) (bool, error) {
	key := l.key(identity, now)

	// INCR and PEXPIRE go out as one MULTI/EXEC so a key never lives without a TTL.
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if incr.Val() > int64(l.limit) {
		return false, nil
	}
	return true, nil
}

func (l *Redis) Reset(ctx context.Context, identity string) error {
	var cursor uint64
	for {
		keys, next, err := l.client.Scan(ctx, cursor, l.identityPrefix(identity)+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("rate limit scan: %w", err)
		}
		if len(keys) > 0 {
			if err := l.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("rate limit reset: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (l *Redis) key(identity string, now time.Time) string {
	idx := now.UnixMilli() / l.window.Milliseconds()
	return l.identityPrefix(identity) + strconv.FormatInt(idx, 10)
}

// identityPrefix hex-encodes identity, so the key segment holds no ':' and no
// glob metacharacters and one identity's SCAN pattern cannot match another's keys.
func (l *Redis) identityPrefix(identity string) string {
	return l.prefix + hex.EncodeToString([]byte(identity)) + ":"
}

// Compile-time check: *Redis implements Limiter.
var _ Limiter = (*Redis)(nil)
