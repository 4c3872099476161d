package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/models"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	window   time.Duration
}

// newRateLimiter allows burst requests per client at once, refilled
// evenly over window.
func newRateLimiter(burst int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(burst)),
		burst:    burst,
		window:   window,
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if time.Since(v.lastSeen) > rl.window {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) isAllowed(key string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// RateLimitMiddleware limits each client IP to RateLimitRequests per
// RateLimitWindow. A non-positive limit disables it.
func RateLimitMiddleware(cfg *config.APIConfig) gin.HandlerFunc {
	if cfg.RateLimitRequests <= 0 || cfg.RateLimitWindow <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limiter := newRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	return func(c *gin.Context) {
		key := c.ClientIP()

		if !limiter.isAllowed(key) {
			utils.LogWarn(c.Request.Context(), "Rate limit exceeded", utils.Fields{"ip": key})
			err := utils.NewRateLimitError()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{Error: err.Message})
			return
		}

		c.Next()
	}
}
