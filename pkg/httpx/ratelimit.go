package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/idsync/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimit allows Requests per Window for one key, refilled evenly, with
// the whole window available as a burst. A zero RateLimit lets everything
// through.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

func (l RateLimit) Enabled() bool { return l.Requests > 0 && l.Window > 0 }

func (l RateLimit) String() string {
	return strconv.Itoa(l.Requests) + "/" + l.Window.String()
}

// KeyFunc returns the part of a request a limit is counted against, or ""
// when the request carries none.
type KeyFunc func(*http.Request) string

// ClientIP keys by the first X-Forwarded-For hop, falling back to the
// connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Subject keys by the session subject set by AuthnMiddleware.
func Subject(r *http.Request) string {
	sub, _ := SubjectFromContext(r.Context())
	return sub
}

// JSONField keys by a string field of the JSON body, normalized with fold
// so that spellings of one account share a bucket. The body is left
// readable for the handler.
func JSONField(name string, fold func(string) string) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[name], &v) != nil || v == "" {
			return ""
		}
		if fold != nil {
			v = fold(v)
		}
		return v
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter counts requests per key. Buckets idle for a full window are
// dropped, since they would be full again anyway.
type Limiter struct {
	limit RateLimit
	keys  []KeyFunc
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewLimiter builds a limiter whose key joins the non-empty results of keys.
func NewLimiter(limit RateLimit, keys ...KeyFunc) *Limiter {
	return &Limiter{
		limit:   limit,
		keys:    keys,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) key(r *http.Request) string {
	parts := make([]string, 0, len(l.keys))
	for _, k := range l.keys {
		if v := k(r); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "|")
}

// allow takes a token for key and, when none is left, reports how long
// until one is.
func (l *Limiter) allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.limit.Window {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.limit.Window {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		every := rate.Every(l.limit.Window / time.Duration(l.limit.Requests))
		b = &bucket{lim: rate.NewLimiter(every, l.limit.Requests)}
		l.buckets[key] = b
	}
	b.seen = now

	if b.lim.AllowN(now, 1) {
		return true, 0
	}
	missing := 1 - b.lim.TokensAt(now)
	wait := time.Duration(missing / float64(b.lim.Limit()) * float64(time.Second))
	return false, wait
}

// Wrap rejects requests over the limit with 429 and a Retry-After in whole
// seconds.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	if !l.limit.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ok, wait := l.allow(key)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		secs := max(int((wait+time.Second-1)/time.Second), 1)
		slogx.FromContext(r.Context()).Warn("rate limited",
			"path", r.URL.Path, "limit", l.limit.String(), "retry_after", secs)

		w.Header().Set("Retry-After", strconv.Itoa(secs))
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
	})
}

// RateLimitBy is NewLimiter as a Middleware.
func RateLimitBy(limit RateLimit, keys ...KeyFunc) Middleware {
	return NewLimiter(limit, keys...).Wrap
}
