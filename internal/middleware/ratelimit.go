package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LoginLimiter throttles credential-guessing endpoints per client IP.
// It is independent of the account lockout tracker: this caps request
// volume, the tracker punishes repeated failures.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter

	limit  rate.Limit
	burst  int
	stopCh chan struct{}
}

// NewLoginLimiter creates a limiter allowing r requests per second
// with the given burst per IP, and starts its cleanup loop.
func NewLoginLimiter(r rate.Limit, burst int) *LoginLimiter {
	l := &LoginLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    r,
		burst:    burst,
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop terminates the cleanup loop.
func (l *LoginLimiter) Stop() {
	close(l.stopCh)
}

// Middleware returns the gin handler enforcing the limit.
func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.get(ip).Allow() {
			slog.Warn("login rate limit exceeded", slog.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}

func (l *LoginLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.limiters[ip]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry := &ipLimiter{
		limiter:    rate.NewLimiter(l.limit, l.burst),
		lastAccess: time.Now(),
	}
	l.limiters[ip] = entry
	return entry.limiter
}

func (l *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *LoginLimiter) cleanup() {
	cutoff := time.Now().Add(-limiterIdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}
