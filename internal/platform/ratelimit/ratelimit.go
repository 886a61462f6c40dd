package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/platform/httpx"
)

const defaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed holds one token bucket per key. Idle buckets are evicted lazily.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	swept   time.Time
}

// Option customises a Keyed limiter.
type Option func(*Keyed)

// WithClock overrides the clock used for refills and eviction.
func WithClock(now func() time.Time) Option {
	return func(k *Keyed) {
		if now != nil {
			k.now = now
		}
	}
}

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(ttl time.Duration) Option {
	return func(k *Keyed) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// PerMinute builds a limiter allowing perMinute events per key with the given burst.
func PerMinute(perMinute, burst int, opts ...Option) *Keyed {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	k := &Keyed{
		entries: make(map[string]*entry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		ttl:     defaultIdleTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Allow reports whether an event for key may happen now. When it may not,
// retryAfter is the wait until the next token.
func (k *Keyed) Allow(key string) (ok bool, retryAfter time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.sweep(now)
	e, found := k.entries[key]
	if !found {
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (k *Keyed) sweep(now time.Time) {
	if now.Sub(k.swept) < k.ttl {
		return
	}
	k.swept = now
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > k.ttl {
			delete(k.entries, key)
		}
	}
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Middleware rejects requests over the per-client limit with 429.
// Clients are keyed by remote address, so chi's RealIP must run first
// when the service sits behind a proxy.
func (k *Keyed) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := k.Allow(ClientKey(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second)/time.Second)+1))
			httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many attempts, try again later", http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey returns the client address without its port.
func ClientKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
