package middlewares

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omchandarana/geogate/internal/apperr"
	"github.com/omchandarana/geogate/internal/http/respond"
)

// RateLimiter enforces a fixed window per derived key. State is in-process
// only; a multi-instance deployment needs a shared store instead.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	class   string
	now     func() time.Time
	clients map[string]*clientBucket
	em      *respond.ErrorMapper

	onReject func(class string)
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewRateLimiter(class string, limit int, window time.Duration, em *respond.ErrorMapper) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		class:   class,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
		em:      em,
	}

	go rl.sweepLoop(window)

	return rl
}

// OnReject registers a hook invoked once per rejected request (metrics).
func (rl *RateLimiter) OnReject(fn func(class string)) *RateLimiter {
	rl.onReject = fn
	return rl
}

// Middleware returns a gin.HandlerFunc that enforces the limit for a derived key

func (rl *RateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived

			key = clientIP(c)
		}

		now := rl.now()

		rl.mu.Lock()

		b, ok := rl.clients[key]

		if !ok || now.After(b.windowEnd) {
			rl.clients[key] = &clientBucket{
				count:     1,
				windowEnd: now.Add(rl.window),
			}

			rl.mu.Unlock()
			c.Next()
			return
		}

		if b.count >= rl.limit {
			retryAfter := int(b.windowEnd.Sub(now).Seconds())

			if retryAfter < 0 {
				retryAfter = 0
			}

			rl.mu.Unlock()

			if rl.onReject != nil {
				rl.onReject(rl.class)
			}

			c.Header("Retry-After", itoa(retryAfter))

			// Rejections go through the error pipeline so they get logged
			// with their kind like every other failure.
			rl.em.Abort(c, apperr.New(apperr.KindRateLimited, "Too many requests. Please try again shortly."))

			return
		}

		b.count++
		rl.mu.Unlock()
		c.Next()
	}
}

// sweepLoop drops buckets whose window closed, so idle clients do not leak
// memory across long uptimes.
func (rl *RateLimiter) sweepLoop(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	for {
		time.Sleep(interval)
		rl.removeExpired(rl.now())
	}
}

func (rl *RateLimiter) removeExpired(now time.Time) {
	rl.mu.Lock()
	for key, b := range rl.clients {
		if now.After(b.windowEnd) {
			delete(rl.clients, key)
		}
	}
	rl.mu.Unlock()
}

// helper functions

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available

func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != 0 {
		return "user:" + itoa64(id)
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	// Normalize host:port forms

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}

// tiny int->string helper.
func itoa(n int) string {
	return itoa64(int64(n))
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	var b [32]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return strings.TrimSpace(string(b[i:]))
}
