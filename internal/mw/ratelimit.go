package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitorLimiters hands out one token bucket per client IP.
type visitorLimiters struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newVisitorLimiters(r rate.Limit, burst int) *visitorLimiters {
	return &visitorLimiters{
		visitors: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

func (v *visitorLimiters) limiter(ip string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	limiter, ok := v.visitors[ip]
	if !ok {
		limiter = rate.NewLimiter(v.r, v.burst)
		v.visitors[ip] = limiter
	}
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, burst int) gin.HandlerFunc {
	limiters := newVisitorLimiters(r, burst)
	return func(c *gin.Context) {
		if !limiters.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
