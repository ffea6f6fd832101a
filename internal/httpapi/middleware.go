package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasklink/notionbridge/internal/core/errs"
)

type contextKey string

const requestIDKey contextKey = "request_id"

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID tags every request with an identifier for tracing. An inbound
// X-Request-ID is kept; otherwise a fresh UUID is minted. The ID is echoed in
// the response headers and attached to the request context for log lines.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// normalizeTrailingSlash strips trailing slashes so /tasks/ and /tasks hit
// the same route.
func normalizeTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = strings.TrimRight(p, "/")
			next.ServeHTTP(w, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanics converts handler panics into the internal error envelope.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic while serving request",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"request_id", requestIDFrom(r.Context()),
				)
				writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
					Code:    errs.CodeInternal,
					Message: "An unexpected error occurred",
				}})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and stamps allowed origins on responses.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// observe logs every request and records it on the HTTP metrics, using a
// bounded route label instead of the raw path.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		if s.metrics != nil {
			s.metrics.ObserveHTTPRequest(r.Method, routeLabel(r.URL.Path), sw.Status(), elapsed)
		}
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Status(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// routeLabel collapses path parameters so metric label cardinality stays
// bounded.
func routeLabel(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "tasks":
		if len(parts) > 1 {
			return "/tasks/{id}"
		}
		return "/tasks"
	case "workspaces":
		if len(parts) > 1 {
			if parts[1] == "query" {
				return "/workspaces/query"
			}
			return "/workspaces/{id}"
		}
		return "/workspaces"
	case "users":
		if len(parts) > 2 {
			if parts[2] == "resolve" {
				return "/users/mappings/resolve"
			}
			return "/users/mappings/{id}"
		}
		return "/users/mappings"
	case "tokens":
		if len(parts) > 1 {
			return "/tokens/{id}"
		}
		return "/tokens"
	case "health", "metrics":
		return "/" + parts[0]
	default:
		return "other"
	}
}
