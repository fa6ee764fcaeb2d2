package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/spf13/cobra"

	"github.com/reunite/hub/internal/config"
	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/observability"
	"github.com/reunite/hub/pkg/database"
)

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "Operator tool for the missing-person sighting hub",
	Long: `hubctl manages a sighting hub deployment: it applies database migrations,
provisions API users, and re-enqueues sighting processing and case backfill jobs.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
}

// env holds what every database-backed command needs.
type env struct {
	cfg *config.Config
	db  *pgxpool.Pool
}

// connect loads configuration and opens the database. vectors registers pgvector
// types, which requires the schema to be migrated.
func connect(ctx context.Context, vectors bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	slog.SetDefault(observability.NewLogger(os.Stderr, cfg.LogLevel))

	var opts []database.PoolOption
	if vectors {
		opts = append(opts, database.WithVectorTypes())
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &env{cfg: cfg, db: db}, nil
}

func (e *env) close() {
	e.db.Close()
}

// inserter returns a job inserter over an insert-only River client; jobs run in the API process.
func (e *env) inserter() (*jobs.RiverJobInserter, error) {
	client, err := river.NewClient(riverpgxv5.New(e.db), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return jobs.NewRiverJobInserter(client, e.cfg.SightingJobMaxAttempts), nil
}
