package middleware

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"km-backend/pkg/utils"

	"golang.org/x/time/rate"
)

// clientLimiter keeps the limiter of one client IP
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP. It protects the public
// provider callback endpoints from retry storms.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

// NewRateLimiter allows perMinute requests per IP with the given burst
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

// Cleanup drops limiters of clients idle longer than the TTL until ctx is done
func (l *RateLimiter) Cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle(time.Now())
		}
	}
}

func (l *RateLimiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, client := range l.clients {
		if now.Sub(client.lastSeen) > l.idleTTL {
			delete(l.clients, ip)
		}
	}
}

func (l *RateLimiter) allow(ip string) bool {
	l.mu.Lock()
	client, found := l.clients[ip]
	if !found {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = client
	}
	client.lastSeen = time.Now()
	limiter := client.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := GetClientIP(r)
		if !l.allow(clientIP) {
			log.Printf("[RateLimit] %s exceeded the limit on %s", clientIP, sanitizePath(r.URL.Path))
			w.Header().Set("Retry-After", "60")
			utils.RespondError(w, http.StatusTooManyRequests, "RATE_LIMITED")
			return
		}

		next.ServeHTTP(w, r)
	})
}
