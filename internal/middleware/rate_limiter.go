package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/config"
	"golang.org/x/time/rate"
)

const maxAuthBody = 1 << 20

// RateLimiter keeps token buckets per client IP and per IP+email for auth endpoints
type RateLimiter struct {
	ipLimiters      map[string]*rate.Limiter
	authLimiters    map[string]*rate.Limiter
	ipMutex         sync.Mutex
	authMutex       sync.Mutex
	ipLimiterRate   rate.Limit
	authLimiterRate rate.Limit
	ipBurst         int
	authBurst       int
	cleanupTicker   *time.Ticker
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a limiter and starts its periodic reset
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	cleanup := time.Duration(cfg.CleanupMins) * time.Minute
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}

	limiter := &RateLimiter{
		ipLimiters:      make(map[string]*rate.Limiter),
		authLimiters:    make(map[string]*rate.Limiter),
		ipLimiterRate:   rate.Limit(cfg.IPRate),
		authLimiterRate: rate.Limit(cfg.AuthRate),
		ipBurst:         cfg.IPBurst,
		authBurst:       cfg.AuthBurst,
		cleanupTicker:   time.NewTicker(cleanup),
		stop:            make(chan struct{}),
	}

	go limiter.cleanup()
	return limiter
}

// cleanup drops every bucket so idle clients do not accumulate
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.ipMutex.Lock()
			rl.ipLimiters = make(map[string]*rate.Limiter)
			rl.ipMutex.Unlock()

			rl.authMutex.Lock()
			rl.authLimiters = make(map[string]*rate.Limiter)
			rl.authMutex.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stop)
	})
}

func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	rl.ipMutex.Lock()
	defer rl.ipMutex.Unlock()

	limiter, exists := rl.ipLimiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.ipLimiterRate, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
	}
	return limiter
}

func (rl *RateLimiter) getAuthLimiter(key string) *rate.Limiter {
	rl.authMutex.Lock()
	defer rl.authMutex.Unlock()

	limiter, exists := rl.authLimiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.authLimiterRate, rl.authBurst)
		rl.authLimiters[key] = limiter
	}
	return limiter
}

// IPRateLimiterMiddleware limits requests based on IP address
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getIPLimiter(c.ClientIP()).Allow() {
			apperrors.HandleError(c, apperrors.TooManyRequests("Rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// AuthRateLimiterMiddleware also limits attempts per IP and email so one
// account cannot be brute forced from a single address. The body is
// restored for the handler.
func (rl *RateLimiter) AuthRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.getIPLimiter(ip).Allow() {
			apperrors.HandleError(c, apperrors.TooManyRequests("Rate limit exceeded"))
			return
		}

		if c.Request.Method == http.MethodPost && c.Request.Body != nil {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuthBody))
			if err != nil {
				apperrors.HandleError(c, apperrors.BadRequest("auth", "Unable to read request body"))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))

			var requestBody struct {
				Email string `json:"email"`
			}
			if json.Unmarshal(body, &requestBody) == nil && requestBody.Email != "" {
				key := ip + ":" + strings.ToLower(strings.TrimSpace(requestBody.Email))
				if !rl.getAuthLimiter(key).Allow() {
					apperrors.HandleError(c, apperrors.TooManyRequests("Too many authentication attempts, please try again later"))
					return
				}
			}
		}

		c.Next()
	}
}
