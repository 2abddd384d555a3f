// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// sweepInterval is how often idle clients are forgotten.
const sweepInterval = 5 * time.Minute

// hits is one client's request times inside the current window, oldest
// first.
type hits struct {
	mu    sync.Mutex
	times []time.Time
}

// prune drops times at or before cutoff.
func (h *hits) prune(cutoff time.Time) {
	i := 0
	for i < len(h.times) && !h.times[i].After(cutoff) {
		i++
	}
	h.times = h.times[i:]
}

// RateLimiter caps requests per client IP over a sliding window. The
// router puts it in front of the public comment endpoint.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*hits
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter allows limit requests per window and per IP. Call Stop
// to end its background sweep.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*hits),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// take records a request for key. When the client is over the limit it
// returns false and how long until its oldest request leaves the window.
func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	h, ok := rl.clients[key]
	if !ok {
		h = &hits{}
		rl.clients[key] = h
	}
	rl.mu.Unlock()

	now := rl.now()
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prune(now.Add(-rl.window))
	if len(h.times) >= rl.limit {
		return false, h.times[0].Add(rl.window).Sub(now)
	}
	h.times = append(h.times, now)
	return true, 0
}

// sweep forgets clients with nothing left in the window.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, h := range rl.clients {
		h.mu.Lock()
		h.prune(cutoff)
		idle := len(h.times) == 0
		h.mu.Unlock()
		if idle {
			delete(rl.clients, key)
		}
	}
}

// Middleware answers 429 with a Retry-After in whole seconds once the
// client's budget is spent.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.take(ClientIP(r))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP is the address a request came from. The leftmost
// X-Forwarded-For entry wins, then X-Real-IP, then RemoteAddr without
// its port. Comments store this value.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
