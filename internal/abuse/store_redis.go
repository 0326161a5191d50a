package abuse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTxRetries = 5

// RedisWindowStore keeps rate-limit windows in Redis hashes so every API
// instance shares one counter per client.
type RedisWindowStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisWindowStore creates a WindowStore. ttl bounds how long an idle
// client's hash survives and should be at least the rate-limit window.
func NewRedisWindowStore(client *redis.Client, prefix string, ttl time.Duration) *RedisWindowStore {
	if client == nil {
		panic("abuse: redis client required")
	}
	if prefix == "" {
		prefix = "leads:ratelimit:"
	}
	return &RedisWindowStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisWindowStore) Update(ctx context.Context, key string, fn func(Window, bool) (Window, bool)) error {
	k := s.prefix + key
	return watchWithRetry(ctx, s.client, k, func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, k).Result()
		if err != nil {
			return err
		}
		cur, found := decodeWindow(vals)
		next, write := fn(cur, found)
		if !write {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, "count", next.Count, "reset_at", next.ResetAt.UnixMilli())
			pipe.PExpire(ctx, k, s.ttl)
			return nil
		})
		return err
	})
}

func decodeWindow(vals map[string]string) (Window, bool) {
	if len(vals) == 0 {
		return Window{}, false
	}
	count, err := strconv.Atoi(vals["count"])
	if err != nil {
		return Window{}, false
	}
	resetMs, err := strconv.ParseInt(vals["reset_at"], 10, 64)
	if err != nil {
		return Window{}, false
	}
	return Window{Count: count, ResetAt: time.UnixMilli(resetMs)}, true
}

// RedisSeenStore keeps the last accepted submission time per phone number.
// Keys carry a TTL equal to the duplicate window, so no sweep is needed.
type RedisSeenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSeenStore creates a SeenStore.
func NewRedisSeenStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSeenStore {
	if client == nil {
		panic("abuse: redis client required")
	}
	if prefix == "" {
		prefix = "leads:seen:"
	}
	return &RedisSeenStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSeenStore) Update(ctx context.Context, key string, fn func(time.Time, bool) (time.Time, bool)) error {
	k := s.prefix + key
	return watchWithRetry(ctx, s.client, k, func(tx *redis.Tx) error {
		var (
			last  time.Time
			found bool
		)
		raw, err := tx.Get(ctx, k).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			ms, perr := strconv.ParseInt(raw, 10, 64)
			if perr == nil {
				last, found = time.UnixMilli(ms), true
			}
		}
		next, write := fn(last, found)
		if !write {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next.UnixMilli(), s.ttl)
			return nil
		})
		return err
	})
}

func watchWithRetry(ctx context.Context, client *redis.Client, key string, fn func(*redis.Tx) error) error {
	for i := 0; i < redisTxRetries; i++ {
		err := client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("abuse: redis update %s: %w", key, err)
		}
		return nil
	}
	return ErrStoreContention
}

var (
	_ WindowStore = (*RedisWindowStore)(nil)
	_ SeenStore   = (*RedisSeenStore)(nil)
)
