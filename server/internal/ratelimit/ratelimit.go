package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const window = time.Minute

// Prefixes considered trusted proxies. X-Forwarded-For is only honoured
// when the direct peer is one of these, so external clients cannot spoof
// their identity.
var trustedProxies = []string{"172.", "10.", "192.168.", "127.0.0.1"}

// Limiter tracks request timestamps per identity over a sliding one
// minute window.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	buckets map[string][]time.Time
	exclude map[string]struct{}
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Limiter allowing limit requests per identity per minute.
// Paths in exclude bypass the limiter entirely.
func New(limit int, exclude ...string) *Limiter {
	ex := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		ex[p] = struct{}{}
	}
	return &Limiter{
		limit:   limit,
		buckets: make(map[string][]time.Time),
		exclude: ex,
		now:     time.Now,
	}
}

// Allow records a request for identity and reports whether it is within
// the limit. When the limit is exceeded it also returns how long the
// caller should wait before the oldest counted request leaves the window.
func (l *Limiter) Allow(identity string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	bucket := l.buckets[identity][:0]
	for _, t := range l.buckets[identity] {
		if t.After(cutoff) {
			bucket = append(bucket, t)
		}
	}

	if len(bucket) >= l.limit {
		l.buckets[identity] = bucket
		retry := bucket[0].Add(window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return false, retry
	}

	l.buckets[identity] = append(bucket, now)
	return true, 0
}

// Middleware wraps next with rate limiting. A limit of zero or less
// disables the limiter.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := l.exclude[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		identity := "ip:" + clientIP(r)
		ok, retry := l.Allow(identity)
		if !ok {
			slog.Warn("rate limit exceeded", "identity", identity, "path", r.URL.Path)
			secs := int(retry.Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded, try again later"}) //nolint:errcheck
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the real client address. X-Forwarded-For is only
// consulted when the direct peer is a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if isTrustedProxy(host) {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	return host
}

func isTrustedProxy(ip string) bool {
	for _, p := range trustedProxies {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	return false
}
