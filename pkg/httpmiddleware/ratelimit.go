package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	lru "github.com/hashicorp/golang-lru"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max requests allowed per Window.
	Max    int
	Window time.Duration
	// Clients bounds the number of tracked keys. The least recently seen
	// client is forgotten when the bound is reached. Defaults to 10000.
	Clients int
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// window holds counts for the current and the previous fixed window. The
// effective count weights the previous window by its overlap with the
// sliding window ending now.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// RateLimiter tracks request windows per client key.
type RateLimiter struct {
	max     int
	size    time.Duration
	keyFunc func(*http.Request) string
	now     func() time.Time

	mu      sync.Mutex
	clients *lru.Cache
}

// NewRateLimiter creates a RateLimiter from cfg.
func NewRateLimiter(cfg RateLimitConfig) (*RateLimiter, error) {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return nil, errors.Errorf("invalid rate limit %d per %s", cfg.Max, cfg.Window)
	}
	if cfg.Clients <= 0 {
		cfg.Clients = 10000
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	clients, err := lru.New(cfg.Clients)
	if err != nil {
		return nil, errors.Wrap(err, "create client cache")
	}
	return &RateLimiter{
		max:     cfg.Max,
		size:    cfg.Window,
		keyFunc: cfg.KeyFunc,
		now:     time.Now,
		clients: clients,
	}, nil
}

// Allow records a request for key and reports whether it is within the
// limit, how many requests remain and when the current window resets.
func (rl *RateLimiter) Allow(key string) (remaining int, reset time.Time, ok bool) {
	now := rl.now()
	start := now.Truncate(rl.size)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := &window{start: start}
	if v, found := rl.clients.Get(key); found {
		w = v.(*window)
	}
	switch gap := start.Sub(w.start); {
	case gap >= 2*rl.size:
		w.prev, w.curr = 0, 0
	case gap >= rl.size:
		w.prev, w.curr = w.curr, 0
	}
	w.start = start
	rl.clients.Add(key, w)

	overlap := 1 - float64(now.Sub(start))/float64(rl.size)
	effective := w.prev*overlap + w.curr
	reset = start.Add(rl.size)
	if effective >= float64(rl.max) {
		return 0, reset, false
	}
	w.curr++
	return max(0, int(float64(rl.max)-effective-1)), reset, true
}

// Middleware rejects requests over the limit with 429. Every response
// carries the X-RateLimit-* headers.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := rl.Allow(rl.keyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(0, reset.Sub(rl.now()))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit is a shorthand for NewRateLimiter(cfg).Middleware().
func RateLimit(cfg RateLimitConfig) (Middleware, error) {
	rl, err := NewRateLimiter(cfg)
	if err != nil {
		return nil, err
	}
	return rl.Middleware(), nil
}

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
