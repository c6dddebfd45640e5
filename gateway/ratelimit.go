package main

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller. Authenticated callers are keyed by subject, anonymous ones by IP.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mutex    sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst
func NewRateLimiter(rps float64, burst int, idleTTL time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Sweep drops buckets that have been idle longer than the idle TTL
func (rl *RateLimiter) Sweep(now time.Time) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Middleware rejects callers whose bucket is empty with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userInfo, err := middleware.GetUserInfoFromContext(c); err == nil {
			key = "user:" + userInfo.CognitoID
		}

		if !rl.limiterFor(key, time.Now()).Allow() {
			metrics.ObserveRateLimited()
			c.Header("Retry-After", "1")
			utils.ErrorFromApp(c, apperrors.RateLimited("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}
