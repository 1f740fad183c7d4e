package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxUser
)

// userInfo is attached to the request context by the auth middleware.
type userInfo struct {
	ID     string
	Method string // "jwt" or "api_key"
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxRequestID).(string); ok {
		return id
	}
	return ""
}

func userFrom(ctx context.Context) (userInfo, bool) {
	u, ok := ctx.Value(ctxUser).(userInfo)
	return u, ok
}

func contextWithUser(ctx context.Context, u userInfo) context.Context {
	return context.WithValue(ctx, ctxUser, u)
}

// statusRecorder captures the response status and stamps the timing
// header at first write, while it can still take effect.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
	start  time.Time
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.wrote {
		return
	}
	rec.wrote = true
	rec.status = status
	rec.Header().Set("X-Response-Time-Ms",
		fmt.Sprintf("%d", time.Since(rec.start).Milliseconds()))
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	return rec.ResponseWriter.Write(b)
}

// logging assigns a request id, logs start/completion, recovers
// panics as 500s, and flags slow requests.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), ctxRequestID, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK, start: s.now()}

		s.logger.Info("request started",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"client", clientIP(r),
			"user_agent", r.UserAgent(),
		)

		defer func() {
			duration := s.now().Sub(rec.start)
			if p := recover(); p != nil {
				s.logger.Error("request failed",
					"request_id", id, "method", r.Method, "path", r.URL.Path, "panic", p)
				if !rec.wrote {
					writeError(rec, r, http.StatusInternalServerError, "internal_error", "internal server error")
				}
				s.observe(r, rec.status, duration)
				return
			}

			s.logger.Info("request completed",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			)
			if s.cfg.SlowThreshold > 0 && duration > s.cfg.SlowThreshold {
				s.logger.Warn("slow request",
					"request_id", id,
					"path", r.URL.Path,
					"duration_ms", duration.Milliseconds(),
					"threshold_ms", s.cfg.SlowThreshold.Milliseconds(),
				)
			}
			s.observe(r, rec.status, duration)
		}()

		next.ServeHTTP(rec, r)
	})
}

// chain composes middleware outer-first.
func chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
