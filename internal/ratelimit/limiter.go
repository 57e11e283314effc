// Package ratelimit implements the fixed-window per-identifier throttle shared by
// every inbound handler.
package ratelimit

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	gcInterval = 60 * time.Second
	gcMaxIdle  = 5 * time.Minute
)

// Options configures a single check. Zero values fall back to the limiter defaults.
type Options struct {
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// Decision is the structured outcome of a check. It is never an error; the caller
// decides whether to short-circuit with HTTP 429.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type window struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// Limiter tracks fixed windows per (prefix, identifier) pair. State is process-local
// and resets on restart; callers must not depend on its persistence. Construct one
// per process and inject it, so tests can run isolated instances.
type Limiter struct {
	mu            sync.Mutex
	windows       map[string]*window
	defaultLimit  int
	defaultWindow time.Duration
	lastGC        time.Time
	now           func() time.Time
}

// Config holds limiter defaults applied when an Options field is zero.
type Config struct {
	DefaultLimit  int
	DefaultWindow time.Duration
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 30
	}
	win := cfg.DefaultWindow
	if win <= 0 {
		win = time.Minute
	}
	return &Limiter{
		windows:       make(map[string]*window),
		defaultLimit:  limit,
		defaultWindow: win,
		now:           time.Now,
	}
}

// Check records one request for the identifier and returns the throttle decision.
func (l *Limiter) Check(identifier string, opt Options) Decision {
	limit := opt.Limit
	if limit <= 0 {
		limit = l.defaultLimit
	}
	winDur := opt.Window
	if winDur <= 0 {
		winDur = l.defaultWindow
	}
	key := opt.KeyPrefix + ":" + identifier

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeGC(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= winDur {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	w.lastSeen = now

	reset := w.start.Add(winDur)
	if w.count > limit {
		retry := time.Duration(math.Ceil(reset.Sub(now).Seconds())) * time.Second
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, Limit: limit, Remaining: 0, Reset: reset, RetryAfter: retry}
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit - w.count, Reset: reset}
}

// maybeGC purges idle windows, at most once per gcInterval. Caller holds the lock.
func (l *Limiter) maybeGC(now time.Time) {
	if now.Sub(l.lastGC) < gcInterval {
		return
	}
	l.lastGC = now
	for key, w := range l.windows {
		if now.Sub(w.lastSeen) >= gcMaxIdle {
			delete(l.windows, key)
		}
	}
}

// IdentifierFromRequest resolves the throttle identity: explicit user email
// (header, JSON body field, or query param) first, then the forwarded client
// IP, then the literal "unknown".
func IdentifierFromRequest(r *http.Request) string {
	if email := strings.TrimSpace(r.Header.Get("X-User-Email")); email != "" {
		return strings.ToLower(email)
	}
	if email := userEmailFromBody(r); email != "" {
		return strings.ToLower(email)
	}
	if email := strings.TrimSpace(r.URL.Query().Get("userEmail")); email != "" {
		return strings.ToLower(email)
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// bodyPeekBytes caps how much of a request body the identifier lookup reads.
const bodyPeekBytes = 1 << 16

// userEmailFromBody peeks a JSON request body for a userEmail field. The body
// is always restored so the handler still sees the full payload.
func userEmailFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return ""
	}
	peeked, err := io.ReadAll(io.LimitReader(r.Body, bodyPeekBytes))
	rest := r.Body
	r.Body = readCloser{io.MultiReader(bytes.NewReader(peeked), rest), rest}
	if err != nil {
		return ""
	}
	var payload struct {
		UserEmail string `json:"userEmail"`
	}
	if json.Unmarshal(peeked, &payload) != nil {
		return ""
	}
	return strings.TrimSpace(payload.UserEmail)
}

type readCloser struct {
	io.Reader
	io.Closer
}
