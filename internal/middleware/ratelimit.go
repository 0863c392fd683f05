package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/avahealth/scheduling-api/internal/handler"
)

// RedisRateLimiter is a sliding-window limiter over a Redis sorted set,
// shared across instances. One window per client IP.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (rl *RedisRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:ratelimit:%s", rl.prefix, c.ClientIP())
		now := time.Now()
		windowStart := now.Add(-rl.window)

		pipe := rl.client.TxPipeline()
		pipe.ZRemRangeByScore(c.Request.Context(), key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
		count := pipe.ZCard(c.Request.Context(), key)
		pipe.ZAdd(c.Request.Context(), key, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.New().String()[:8]),
		})
		pipe.Expire(c.Request.Context(), key, rl.window)

		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			// fail open: availability over strictness when Redis is down
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if count.Val() >= int64(rl.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("too many requests, please try again later"))
			return
		}

		c.Next()
	}
}
