package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/tasklink/notionbridge/internal/control"
	"github.com/tasklink/notionbridge/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "notionbridge",
	Short: "Notion task bridge service",
	Long:  `Notionbridge exposes a REST API for managing tasks, workspace bindings, user mappings and stored credentials on top of the Notion API.`,
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		initLogger(slog.LevelInfo)
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	initLogger(slogLevel)

	controlCfg := control.Config{
		Addr:          cfg.Server.Addr(),
		CORSOrigins:   cfg.CORS.Origins,
		NotionAPIKey:  cfg.Notion.APIKey,
		NotionVersion: cfg.Notion.Version,
		NotionTimeout: cfg.Notion.Timeout(),
		MongoURI:      cfg.MongoDB.URI,
		MongoDatabase: cfg.MongoDB.Database,
		Retry:         cfg.Retry.Policy(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.New(ctx, controlCfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start service", "error", err)
		os.Exit(1)
	}

	slog.Info("Service started", "addr", cfg.Server.Addr(), "config", cfgPath)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}

func initLogger(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})))
}
