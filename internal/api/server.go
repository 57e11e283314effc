package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/config"
	"github.com/tenkpostcards/leadscout/internal/contacts"
	"github.com/tenkpostcards/leadscout/internal/events"
	"github.com/tenkpostcards/leadscout/internal/geo"
	"github.com/tenkpostcards/leadscout/internal/junkfilter"
	"github.com/tenkpostcards/leadscout/internal/metrics"
	"github.com/tenkpostcards/leadscout/internal/places"
	"github.com/tenkpostcards/leadscout/internal/ratelimit"
	"github.com/tenkpostcards/leadscout/internal/resolver"
)

const maxBodyBytes = 1 << 20

// Deps carries everything the handlers need. Optional fields may be nil; the
// corresponding routes then answer with not_configured-style results.
type Deps struct {
	Searchers map[string]places.Searcher
	Radius    RadiusSearcher
	Resolver  *resolver.Resolver
	Extractor *contacts.Extractor
	Verifier  contacts.Verifier
	Zip       *geo.ZipClient
	Limiter   *ratelimit.Limiter
	Publisher events.Publisher
	Filter    *junkfilter.Filter
	Client    *http.Client
	Logger    *zap.Logger
}

// RadiusSearcher is the coordinate-radius search a provider may optionally
// support.
type RadiusSearcher interface {
	SearchRadius(ctx context.Context, lat, lng float64, radiusMeters int, category string, limit int) (places.Result, error)
}

// Server wires HTTP handlers to the discovery and enrichment pipeline.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Filter == nil {
		deps.Filter = junkfilter.New(junkfilter.Options{
			MinNameTokens: cfg.Filter.MinNameTokens,
			MaxPathDepth:  cfg.Filter.MaxPathDepth,
		})
	}
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 10 * time.Second}
	}
	s := &Server{deps: deps, cfg: cfg, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Use(bodyLimitMiddleware)

		r.Post("/search/{provider}", s.search)
		r.Post("/resolve/website", s.resolveWebsite)
		r.Post("/resolve/social", s.resolveSocial)
		r.Post("/enrich", s.enrich)
		r.Post("/enrich/batch", s.enrichBatch)
		r.Post("/validate/email", s.validateEmail)
		r.Post("/validate/website", s.validateWebsite)
		r.Post("/zip/neighbors", s.zipNeighbors)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Handlers hold no connections of their own; the process is ready as
	// soon as it serves.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware throttles per caller identity with the fixed-window
// limiter and exposes the standard X-RateLimit headers.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		id := ratelimit.IdentifierFromRequest(r)
		decision := s.deps.Limiter.Check(id, ratelimit.Options{
			Limit:     s.cfg.RateLimit.DefaultLimit,
			Window:    time.Duration(s.cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix: "api",
		})
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.Reset.Unix()))
		if !decision.Allowed {
			metrics.ObserveRateLimitRejection()
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

// RequestIDFrom returns the request ID stamped by the middleware, or "" when
// the context never passed through it.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
