package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mealforge/mealforge-api/internal/storage"
)

// RedisWindow keeps one sorted set per identity, scored by event time in
// epoch milliseconds. Prune, insert, count and oldest-lookup run in a single
// transactional pipeline so concurrent requests see a consistent set.
type RedisWindow struct {
	redis *storage.RedisClient
}

func NewRedisWindow(redis *storage.RedisClient) *RedisWindow {
	return &RedisWindow{redis: redis}
}

var _ WindowStore = (*RedisWindow)(nil)

func (w *RedisWindow) RecordAndCount(ctx context.Context, identity string, now time.Time, window time.Duration) (WindowSample, error) {
	key := fmt.Sprintf("quota:window:%s", identity)
	nowMs := now.UnixMilli()
	windowStartMs := now.Add(-window).UnixMilli()

	pipe := w.redis.TxPipeline()

	// Events exactly at the window boundary still count, so the prune bound
	// is exclusive.
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("(%d", windowStartMs))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(nowMs),
		Member: fmt.Sprintf("%d-%s", nowMs, uuid.NewString()),
	})
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return WindowSample{}, err
	}

	sample := WindowSample{Count: int(countCmd.Val())}
	if entries := oldestCmd.Val(); len(entries) > 0 {
		sample.Oldest = time.UnixMilli(int64(entries[0].Score)).UTC()
	}

	return sample, nil
}
