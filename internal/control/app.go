// Package control assembles the service from its parts and manages their
// lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tasklink/notionbridge/internal/core/task"
	"github.com/tasklink/notionbridge/internal/core/token"
	"github.com/tasklink/notionbridge/internal/core/usermap"
	"github.com/tasklink/notionbridge/internal/core/workspace"
	"github.com/tasklink/notionbridge/internal/httpapi"
	"github.com/tasklink/notionbridge/internal/infra/notion"
	"github.com/tasklink/notionbridge/internal/infra/retry"
	"github.com/tasklink/notionbridge/internal/infra/storage"
	"github.com/tasklink/notionbridge/internal/infra/storage/memory"
	"github.com/tasklink/notionbridge/internal/infra/storage/mongodb"
	"github.com/tasklink/notionbridge/internal/metrics"
)

// Config carries the assembled settings the app needs.
type Config struct {
	Addr        string
	CORSOrigins []string

	NotionAPIKey  string
	NotionVersion string
	NotionTimeout time.Duration

	MongoURI      string
	MongoDatabase string

	Retry retry.Policy
}

// App owns the wired service components and their lifecycle.
type App struct {
	server *httpapi.Server
	db     *mongodb.DB // nil when running on in-memory storage
}

// New wires storage, the Notion client stack and the services into an HTTP
// server. The MongoDB connection is established here so a bad URI fails
// fast.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.NotionAPIKey == "" {
		return nil, errors.New("notion api key is required (set NOTION_API_KEY or notion.api_key)")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	met := metrics.New()

	var (
		workspaceRepo storage.WorkspaceRepository
		userRepo      storage.UserMappingRepository
		tokenRepo     storage.TokenRepository
		datastore     httpapi.Pinger
		db            *mongodb.DB
	)
	if cfg.MongoURI != "" {
		mdb, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		if err := mdb.EnsureIndexes(ctx); err != nil {
			_ = mdb.Close(ctx)
			return nil, fmt.Errorf("failed to ensure mongodb indexes: %w", err)
		}
		workspaceRepo = mongodb.NewWorkspaceRepo(mdb)
		userRepo = mongodb.NewUserMappingRepo(mdb)
		tokenRepo = mongodb.NewTokenRepo(mdb)
		datastore = mdb
		db = mdb
		slog.Info("connected to mongodb", "database", cfg.MongoDatabase)
	} else {
		store := memory.NewMemoryStorage()
		workspaceRepo = memory.NewWorkspaceRepo(store)
		userRepo = memory.NewUserMappingRepo(store)
		tokenRepo = memory.NewTokenRepo(store)
		datastore = store
		slog.Warn("no mongodb uri configured, using in-memory storage")
	}

	opts := notion.Options{
		Token:      cfg.NotionAPIKey,
		APIVersion: cfg.NotionVersion,
		Timeout:    cfg.NotionTimeout,
		Observe:    met.ObserveNotionRequest,
	}
	defaultClient := notion.NewClient(opts)
	clients := notion.NewClientFactory(opts, tokenRepo)
	exec := retry.NewExecutor(cfg.Retry, met)
	resolver := notion.NewResolver(defaultClient, exec)

	userSvc := usermap.NewService(userRepo)
	tokenSvc := token.NewService(tokenRepo)
	workspaceSvc := workspace.NewService(workspaceRepo, defaultClient, exec)
	taskSvc := task.NewService(clients, resolver, exec, userSvc)

	server := httpapi.NewServer(
		httpapi.Config{Addr: cfg.Addr, CORSOrigins: cfg.CORSOrigins},
		httpapi.Dependencies{
			Tasks:      taskSvc,
			Workspaces: workspaceSvc,
			Users:      userSvc,
			Tokens:     tokenSvc,
			Datastore:  datastore,
			Notion:     defaultClient,
			Metrics:    met,
		},
	)

	return &App{server: server, db: db}, nil
}

// Start launches the HTTP listener in the background.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests and closes the MongoDB connection.
func (a *App) Stop(ctx context.Context) error {
	if err := a.server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop http server: %w", err)
	}
	if a.db != nil {
		if err := a.db.Close(ctx); err != nil {
			return fmt.Errorf("failed to close mongodb: %w", err)
		}
	}
	return nil
}
