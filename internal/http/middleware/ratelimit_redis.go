package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"affection_pvp/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// KeyFunc picks the identity a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByIP counts requests per client address.
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByParam counts requests per route parameter, e.g. the session id of the
// websocket route. Requests without the parameter fall back to the address.
func ByParam(name string) KeyFunc {
	return func(c *gin.Context) string {
		if v := c.Param(name); v != "" {
			return name + ":" + v
		}
		return ByIP(c)
	}
}

// InitRedisRateLimiter initializes a shared Redis client used by the middleware.
// If the address is empty or the ping fails, redisClient stays nil and the
// limiters fall back to the in-process window.
func InitRedisRateLimiter(addr, password string, db int) {
	if addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process rate limiter", "addr", addr, "error", err)
		_ = client.Close()
		return
	}
	redisClient = client
	logger.Info("redis rate limiter enabled", "addr", addr)
}

// CloseRedisRateLimiter releases the shared client.
func CloseRedisRateLimiter() {
	if redisClient != nil {
		_ = redisClient.Close()
		redisClient = nil
	}
}

func RedisEnabled() bool {
	return redisClient != nil
}

// RedisRateLimit implements a fixed-window rate limiter using Redis INCR/EXPIRE.
// key format: rl:<window_seconds>:<identifier>
func RedisRateLimit(maxRequests int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}
		redisWindow(c, maxRequests, window, key)
	}
}

func redisWindow(c *gin.Context, maxRequests int, window time.Duration, key KeyFunc) {
	k := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + key(c)
	ctx := c.Request.Context()

	val, err := redisClient.Incr(ctx, k).Result()
	if err != nil {
		// fail-open
		c.Header("X-RateLimit-Error", "redis-error")
		c.Next()
		return
	}
	if val == 1 {
		redisClient.Expire(ctx, k, window)
	}

	if val > int64(maxRequests) {
		RLBlocked.WithLabelValues(c.FullPath(), "redis").Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	RLRequests.WithLabelValues(c.FullPath(), "redis").Inc()
	c.Next()
}
