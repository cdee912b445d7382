package handlers

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"fleet-tracking/internal/logging"
	"fleet-tracking/internal/models"
	"fleet-tracking/internal/repository"
)

// TokenResolver maps a bearer token to the worker that owns it.
type TokenResolver interface {
	WorkerByToken(ctx context.Context, token string) (models.Worker, error)
}

type workerKey struct{}

// workerFrom returns the worker authenticated by requireWorker.
func workerFrom(ctx context.Context) (models.Worker, bool) {
	w, ok := ctx.Value(workerKey{}).(models.Worker)
	return w, ok
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireWorker resolves the bearer token to a worker and stores it in the
// request context. Missing or unknown tokens are rejected with 401.
func requireWorker(tokens TokenResolver, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
				return
			}

			worker, err := tokens.WorkerByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					writeFailure(w, http.StatusUnauthorized, codeUnauthorized, "unknown bearer token")
					return
				}
				logger.Error("token lookup failed", "error", err)
				writeFailure(w, http.StatusInternalServerError, codeInternal, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), workerKey{}, worker)))
		})
	}
}

// workerLimiter rate limits authenticated requests per worker.
type workerLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *xsync.Map[string, *rate.Limiter]
}

func newWorkerLimiter(limit rate.Limit, burst int) *workerLimiter {
	return &workerLimiter{
		limit:    limit,
		burst:    burst,
		limiters: xsync.NewMap[string, *rate.Limiter](),
	}
}

func (l *workerLimiter) allow(workerID string) bool {
	lim, ok := l.limiters.Load(workerID)
	if !ok {
		lim, _ = l.limiters.LoadOrStore(workerID, rate.NewLimiter(l.limit, l.burst))
	}
	return lim.Allow()
}

func (l *workerLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerFrom(r.Context())
		if ok && !l.allow(worker.ID) {
			w.Header().Set("Retry-After", "1")
			writeFailure(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack passes through to the underlying writer for websocket upgrades.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// logRequests logs one line per request and turns panics into 500s.
func logRequests(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					logger.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
					writeFailure(rec, http.StatusInternalServerError, codeInternal, "internal server error")
				}
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rec.status,
					"duration", time.Since(start),
				)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
