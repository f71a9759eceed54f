package security

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles per client IP using Redis counters. It fails
// open: a Redis error never blocks a legitimate request.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{redis: rdb}
}

var suspiciousAgents = []string{
	"bot", "crawler", "spider", "scraper", "curl", "wget", "python-requests",
}

func isSuspiciousUserAgent(ua string) bool {
	lowered := strings.ToLower(ua)
	for _, marker := range suspiciousAgents {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// AntiAbuse returns a route middleware enforcing limit requests per
// window per client IP.
func (r *RateLimiter) AntiAbuse(limit int64, window time.Duration) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return apis.NewForbiddenError("Automated clients are not allowed", nil)
		}

		ctx := e.Request.Context()
		key := fmt.Sprintf("antiabuse:%s", e.RealIP())

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("security: rate limit counter: %v", err)
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, window)
		}
		if count > limit {
			return apis.NewApiError(http.StatusTooManyRequests, "Too many requests", nil)
		}

		return e.Next()
	}
}
