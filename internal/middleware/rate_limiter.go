package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/avahealth/scheduling-api/internal/handler"
)

// LocalRateLimiter is the in-process fallback used when Redis is not
// configured. Per-IP token buckets with periodic cleanup of idle entries.
type LocalRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*localClient
	r       rate.Limit
	burst   int
}

type localClient struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLocalRateLimiter(rps float64, burst int) *LocalRateLimiter {
	rl := &LocalRateLimiter{
		clients: make(map[string]*localClient),
		r:       rate.Limit(rps),
		burst:   burst,
	}
	go func() {
		for {
			time.Sleep(time.Minute)
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if time.Since(c.seen) > 3*time.Minute {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}()
	return rl
}

func (rl *LocalRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[ip]; ok {
		c.seen = time.Now()
		return c.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.clients[ip] = &localClient{lim: l, seen: time.Now()}
	return l
}

func (rl *LocalRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("too many requests, please try again later"))
			return
		}
		c.Next()
	}
}
