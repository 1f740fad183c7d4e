package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	rateWindow = time.Minute

	// maxTrackedClients triggers a sweep of idle entries.
	maxTrackedClients = 10_000
)

// limiter is a per-client sliding-window counter.
type limiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	now     func() time.Time
}

func newLimiter(now func() time.Time) *limiter {
	return &limiter{clients: make(map[string][]time.Time), now: now}
}

// verdict is the outcome of one admission check, with the live header
// values.
type verdict struct {
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// check admits or rejects one request for id under the given limit.
// A zero limit rejects everything; negative limits never reach here.
func (l *limiter) check(id string, limit int) verdict {
	if limit == 0 {
		return verdict{
			reset:      l.now().Add(rateWindow),
			retryAfter: rateWindow,
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-rateWindow)

	stamps := l.clients[id]
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	v := verdict{limit: limit}
	if len(kept) >= limit {
		l.clients[id] = kept
		v.reset = kept[0].Add(rateWindow)
		v.retryAfter = v.reset.Sub(now)
		return v
	}

	kept = append(kept, now)
	l.clients[id] = kept
	if len(l.clients) > maxTrackedClients {
		l.sweep(cutoff)
	}

	v.allowed = true
	v.remaining = limit - len(kept)
	v.reset = kept[0].Add(rateWindow)
	return v
}

// sweep drops clients with no activity inside the window. Caller holds
// the lock.
func (l *limiter) sweep(cutoff time.Time) {
	for id, stamps := range l.clients {
		idle := true
		for _, t := range stamps {
			if t.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(l.clients, id)
		}
	}
}

// tracked returns the number of client entries. Test hook.
func (l *limiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// rateLimit applies the global per-client limit, with per-endpoint
// overrides keyed by request path. A negative limit disables limiting;
// zero rejects every request.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.cfg.RequestsPerMinute
		id := s.clientID(r)
		if override, ok := s.cfg.EndpointLimits[r.URL.Path]; ok {
			limit = override
			id = id + "|" + r.URL.Path
		}
		if limit < 0 {
			next.ServeHTTP(w, r)
			return
		}

		v := s.limiter.check(id, limit)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(v.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))
		if !v.allowed {
			retryAfter := int(v.retryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, rateLimitBody{
				Error:      "rate_limited",
				Detail:     fmt.Sprintf("rate limit of %d requests per minute exceeded", v.limit),
				RetryAfter: retryAfter,
				Limit:      v.limit,
				Remaining:  0,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientID is the rate-limit identity: client IP, plus the user when
// one can be determined from the credentials.
func (s *Server) clientID(r *http.Request) string {
	id := clientIP(r)
	if user := s.auth.peekUser(r); user != "" {
		id += ":" + user
	}
	return id
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
