package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/core/task"
	"github.com/tasklink/notionbridge/internal/core/token"
	"github.com/tasklink/notionbridge/internal/core/usermap"
	"github.com/tasklink/notionbridge/internal/core/workspace"
	"github.com/tasklink/notionbridge/internal/infra/notion"
	"github.com/tasklink/notionbridge/internal/metrics"
)

const serviceVersion = "0.1.0"

// Pinger reports datastore connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config carries the listener address and CORS policy.
type Config struct {
	Addr        string
	CORSOrigins []string
}

// Dependencies bundles everything the HTTP surface serves.
type Dependencies struct {
	Tasks      task.Service
	Workspaces workspace.Service
	Users      usermap.Service
	Tokens     token.Service
	Datastore  Pinger
	Notion     notion.API
	Metrics    *metrics.Metrics
}

// Server is the REST surface over the task, workspace, user mapping and
// token services.
type Server struct {
	server *http.Server

	tasks      task.Service
	workspaces workspace.Service
	users      usermap.Service
	tokens     token.Service

	health      *healthChecker
	metrics     *metrics.Metrics
	corsOrigins []string
}

// NewServer builds the route table and middleware chain.
func NewServer(cfg Config, deps Dependencies) *Server {
	s := &Server{
		tasks:       deps.Tasks,
		workspaces:  deps.Workspaces,
		users:       deps.Users,
		tokens:      deps.Tokens,
		health:      newHealthChecker(deps.Datastore, deps.Notion, 30*time.Second),
		metrics:     deps.Metrics,
		corsOrigins: cfg.CORSOrigins,
	}
	if len(s.corsOrigins) == 0 {
		s.corsOrigins = []string{"*"}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("PATCH /tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("POST /workspaces", s.handleCreateWorkspace)
	mux.HandleFunc("GET /workspaces", s.handleListWorkspaces)
	mux.HandleFunc("GET /workspaces/query", s.handleGetWorkspaceByPlatform)
	mux.HandleFunc("GET /workspaces/{id}", s.handleGetWorkspace)
	mux.HandleFunc("PATCH /workspaces/{id}", s.handleUpdateWorkspace)
	mux.HandleFunc("DELETE /workspaces/{id}", s.handleDeleteWorkspace)

	mux.HandleFunc("POST /users/mappings", s.handleCreateUserMapping)
	mux.HandleFunc("GET /users/mappings", s.handleListUserMappings)
	mux.HandleFunc("GET /users/mappings/resolve", s.handleResolveUserMapping)
	mux.HandleFunc("GET /users/mappings/{id}", s.handleGetUserMapping)
	mux.HandleFunc("DELETE /users/mappings/{id}", s.handleDeleteUserMapping)

	mux.HandleFunc("POST /tokens", s.handleCreateToken)
	mux.HandleFunc("GET /tokens", s.handleListTokens)
	mux.HandleFunc("GET /tokens/{id}", s.handleGetToken)
	mux.HandleFunc("PATCH /tokens/{id}", s.handleUpdateToken)
	mux.HandleFunc("DELETE /tokens/{id}", s.handleDeleteToken)

	mux.HandleFunc("GET /health", s.handleHealth)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("/", s.handleNotFound)

	var handler http.Handler = mux
	handler = recoverPanics(handler)
	handler = s.observe(handler)
	handler = s.cors(handler)
	handler = requestID(handler)
	handler = normalizeTrailingSlash(handler)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the middleware-wrapped route table. Tests serve it through
// httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "notionbridge",
		"version": serviceVersion,
		"status":  "ok",
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{
		Code:    errs.CodeNotFound,
		Message: "Resource not found",
	}})
}
