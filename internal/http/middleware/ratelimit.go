package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type window struct {
	start time.Time
	count int
}

// localLimiter is a fixed window kept in process memory.
type localLimiter struct {
	mu      sync.Mutex
	max     int
	size    time.Duration
	now     func() time.Time
	windows map[string]*window
}

func newLocalLimiter(maxRequests int, size time.Duration) *localLimiter {
	return &localLimiter{
		max:     maxRequests,
		size:    size,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.size {
		// drop expired windows now and then so the map does not grow forever
		if len(l.windows) > 10000 {
			for k, old := range l.windows {
				if now.Sub(old.start) >= l.size {
					delete(l.windows, k)
				}
			}
		}
		l.windows[key] = &window{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.max
}

// RateLimit uses Redis when it is configured and an in-process window otherwise.
func RateLimit(maxRequests int, size time.Duration, key KeyFunc) gin.HandlerFunc {
	local := newLocalLimiter(maxRequests, size)
	return func(c *gin.Context) {
		if redisClient != nil {
			redisWindow(c, maxRequests, size, key)
			return
		}

		if !local.allow(key(c)) {
			RLBlocked.WithLabelValues(c.FullPath(), "local").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(c.FullPath(), "local").Inc()
		c.Next()
	}
}
