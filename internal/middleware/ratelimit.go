package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 5 * time.Minute

type actorLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per verified uid, or per client IP for
// requests that carry no identity.
type RateLimiter struct {
	perMinute int
	burst     int
	log       zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*actorLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts the background cleanup of idle buckets; call Stop to end it.
func NewRateLimiter(cfg config.RateLimitConfig, log zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		perMinute: cfg.PerMinute,
		burst:     cfg.Burst,
		log:       log,
		limiters:  make(map[string]*actorLimiter),
		stopCh:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware keys by the token uid, so it runs after Authenticate and before
// ResolveActor; throttled requests never reach the user store.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := IdentityFrom(c); ok {
			key = "uid:" + id.UID
		} else if actor, ok := ActorFrom(c); ok {
			key = "uid:" + actor.UID
		}

		if !rl.limiterFor(key).Allow() {
			rl.log.Warn().Str("key", key).Str("request_id", RequestID(c)).Msg("rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.NewErrorResponse("Too many requests. Please try again later.", ""))
			return
		}
		c.Next()
	}
}

// Len reports the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[key]; ok {
		l.lastAccess = time.Now()
		return l.limiter
	}
	limit := rate.Limit(float64(rl.perMinute) / 60.0)
	l := &actorLimiter{limiter: rate.NewLimiter(limit, rl.burst), lastAccess: time.Now()}
	rl.limiters[key] = l
	return l.limiter
}

// retryAfter is the number of seconds until one token is refilled.
func (rl *RateLimiter) retryAfter() int {
	if rl.perMinute <= 0 {
		return 60
	}
	sec := int(math.Ceil(60.0 / float64(rl.perMinute)))
	if sec < 1 {
		sec = 1
	}
	return sec
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := 2 * limiterCleanupInterval

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, l := range rl.limiters {
		if now.Sub(l.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}
