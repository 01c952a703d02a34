package http

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTriggersPerMinute = 6
	staleClientAfter         = 10 * time.Minute
)

// limiter allows a fixed number of requests per client per minute.
type limiter struct {
	mu        sync.Mutex
	clients   map[string]*clientWindow
	perMinute int
	lastPrune time.Time
	now       func() time.Time
}

type clientWindow struct {
	start    time.Time
	requests int
}

func newLimiter(perMinute int) *limiter {
	if perMinute <= 0 {
		perMinute = defaultTriggersPerMinute
	}
	return &limiter{clients: make(map[string]*clientWindow), perMinute: perMinute, now: time.Now}
}

func (l *limiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > staleClientAfter {
		for k, c := range l.clients {
			if now.Sub(c.start) > staleClientAfter {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}

	c, ok := l.clients[client]
	if !ok || now.Sub(c.start) > time.Minute {
		l.clients[client] = &clientWindow{start: now, requests: 1}
		return true
	}
	c.requests++
	return c.requests <= l.perMinute
}

// rateLimited rejects over-limit requests with 429.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limit.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// apiHeaders marks every response as uncacheable JSON that must not be
// sniffed or framed.
func apiHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
