package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tasklink/notionbridge/internal/core/config"
	"github.com/tasklink/notionbridge/internal/infra/storage/mongodb"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage connectivity and collection counts",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()
	initLogger(slog.LevelInfo)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.MongoDB.URI == "" {
		fmt.Println("storage: memory (no MongoDB URI configured, nothing persisted)")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := mongodb.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		slog.Error("Failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close(ctx)
	}()

	counts, err := db.CollectionCounts(ctx)
	if err != nil {
		slog.Error("Failed to count collections", "error", err)
		os.Exit(1)
	}

	fmt.Printf("storage: mongodb (%s)\n\n", cfg.MongoDB.Database)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "COLLECTION\tDOCUMENTS")
	for _, name := range []string{"workspaces", "user_mappings", "tokens"} {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
	}
	_ = w.Flush()
}
