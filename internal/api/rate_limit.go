package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL 闲置超过该时长的限流器会被清理
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userLimiters 按 key 维护令牌桶, 定期清理闲置条目
type userLimiters struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newUserLimiters(rps float64, burst int, ttl time.Duration) *userLimiters {
	return &userLimiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		entries: make(map[string]*limiterEntry),
	}
}

func (l *userLimiters) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweep(now)
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweep 调用方持有锁
func (l *userLimiters) sweep(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.ttl {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

func (l *userLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// UserRateLimitMiddleware 按用户限流, 必须挂在身份中间件之后
func UserRateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newUserLimiters(rps, burst, limiterIdleTTL)

	return func(c *gin.Context) {
		key := c.GetString("user_id")
		if key == "" {
			key = c.ClientIP()
		}
		if !limiters.allow(key, time.Now()) {
			abortTooManyRequests(c)
			return
		}
		c.Next()
	}
}

func abortTooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Code:    http.StatusTooManyRequests,
		Message: "too many requests",
	})
}
