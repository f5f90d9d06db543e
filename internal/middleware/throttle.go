package middleware

import (
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// ipWindows counts requests per client address in fixed windows.
type ipWindows struct {
	limit int
	per   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// take records one request for ip and returns how long to wait when the
// window is exhausted.
func (w *ipWindows) take(ip string) (time.Duration, bool) {
	t := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.Sub(w.lastSweep) > w.per {
		for k, b := range w.buckets {
			if t.After(b.until) {
				delete(w.buckets, k)
			}
		}
		w.lastSweep = t
	}
	b, ok := w.buckets[ip]
	if !ok || t.After(b.until) {
		b = &bucket{until: t.Add(w.per)}
		w.buckets[ip] = b
	}
	if b.count >= w.limit {
		return b.until.Sub(t), false
	}
	b.count++
	return 0, true
}

// Throttle caps requests per client address. It guards the unauthenticated
// surfaces; per-user quotas live in the dispatcher. Mount it after
// chi's RealIP so proxied clients are keyed by their own address.
func Throttle(limit int, per time.Duration) func(http.Handler) http.Handler {
	return throttle(limit, per, time.Now)
}

func throttle(limit int, per time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	windows := &ipWindows{limit: limit, per: per, now: now, buckets: make(map[string]*bucket), lastSweep: now()}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wait, ok := windows.take(clientIP(r)); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(max(int(math.Ceil(wait.Seconds())), 1)))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's remote host without the port.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return host
}
