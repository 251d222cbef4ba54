// Package ratelimit bounds how many requests one client may send per
// fixed window.
package ratelimit

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	// Limit is the number of requests a client may send per window.
	Limit  int
	Window time.Duration
	// IdleTimeout drops clients that have not been seen for this long.
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Limit:           60,
		Window:          time.Minute,
		IdleTimeout:     10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Decision is the outcome of admitting one request.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left in the client's window.
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	last  time.Time
	used  int
}

// Limiter tracks one window per client key, usually the client IP.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	clients  map[string]*window
	rejected atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts the background cleanup; call Stop to end it. Zero
// config fields take their defaults.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Take counts one request for client and reports whether it fits the
// current window.
func (rl *Limiter) Take(client string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[client]
	if !ok || now.Sub(w.start) >= rl.cfg.Window {
		w = &window{start: now}
		rl.clients[client] = w
	}
	w.last = now
	w.used++

	d := Decision{
		Allowed:    w.used <= rl.cfg.Limit,
		Remaining:  max(rl.cfg.Limit-w.used, 0),
		RetryAfter: w.start.Add(rl.cfg.Window).Sub(now),
	}
	if !d.Allowed {
		rl.rejected.Add(1)
	}
	return d
}

// Allow is Take for callers that only need the verdict.
func (rl *Limiter) Allow(client string) bool {
	return rl.Take(client).Allowed
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.dropIdle()
		case <-rl.stop:
			return
		}
	}
}

func (rl *Limiter) dropIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cfg.IdleTimeout)
	dropped := 0
	for key, w := range rl.clients {
		if w.last.Before(cutoff) {
			delete(rl.clients, key)
			dropped++
		}
	}
	return dropped
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	// TotalHits counts rejected requests.
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.rejected.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware limits requests whose method is in methods; an empty list
// limits every request. Limited responses carry X-RateLimit-Remaining, and
// rejections a Retry-After in whole seconds before onLimit runs.
func (rl *Limiter) Middleware(clientKey func(*http.Request) string, onLimit http.HandlerFunc, methods ...string) func(http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(methods) > 0 && !slices.Contains(methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			d := rl.Take(clientKey(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
