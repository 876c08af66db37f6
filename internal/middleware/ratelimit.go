package middleware

import (
	"net/http"
	"time"

	"adpilot/internal/config"
	"adpilot/internal/metrics"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleLimiterTTL 空闲多久后回收某个 key 的令牌桶
const idleLimiterTTL = 10 * time.Minute

// RateLimitMiddleware limits requests per key (user id when authenticated, else client IP).
// Rejections are counted under prefix. It no-ops when disabled.
func RateLimitMiddleware(cfg config.RateLimitingConfig, prefix string, m *metrics.Metrics) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	every := rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	limiters := gocache.New(idleLimiterTTL, idleLimiterTTL)

	get := func(key string) *rate.Limiter {
		if v, ok := limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
		l := rate.NewLimiter(every, burst)
		// Add fails when another request created it first
		if err := limiters.Add(key, l, gocache.DefaultExpiration); err != nil {
			if v, ok := limiters.Get(key); ok {
				return v.(*rate.Limiter)
			}
		}
		return l
	}

	return func(c *gin.Context) {
		key := c.GetString(ContextUserID)
		if key == "" {
			key = c.ClientIP()
		}
		if key == "" {
			key = "unknown"
		}
		l := get(key)
		// 访问时续期
		limiters.Set(key, l, gocache.DefaultExpiration)
		if !l.Allow() {
			m.IncRateLimitDrop(prefix)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
