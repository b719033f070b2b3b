package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQuota caps model calls per user in fixed one-minute windows.
type RedisQuota struct {
	redis *redis.Client
	limit int
}

func NewRedisQuota(redisClient *redis.Client, perMinute int) *RedisQuota {
	return &RedisQuota{redis: redisClient, limit: perMinute}
}

func (q *RedisQuota) Allow(ctx context.Context, userID uuid.UUID) error {
	if q.limit <= 0 {
		return nil
	}

	key := fmt.Sprintf("llm_quota:%s:%d", userID.String(), time.Now().Unix()/60)

	var incr *redis.IntCmd
	_, err := q.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*time.Minute)
		return nil
	})
	if err != nil {
		// fail open
		log.Printf("Quota check failed for user %s: %v", userID, err)
		return nil
	}
	count := incr.Val()

	if count > int64(q.limit) {
		return &RateLimitError{Message: fmt.Sprintf("Limit of %d model requests per minute reached. Please try again shortly.", q.limit)}
	}
	return nil
}
