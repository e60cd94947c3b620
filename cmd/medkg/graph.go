package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medkg/medkg/internal/config"
	"github.com/medkg/medkg/internal/graph"
	"github.com/medkg/medkg/internal/platform/db"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// graphSummaryFile names the artifact whose summary an assemble run writes
// (graph.summary.json in the bridges directory).
const graphSummaryFile = "graph.json"

func assembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Load the bridges into the graph and verify the counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			dir := stringFlag(cmd, "bridges", cfg.BridgesDir())
			strict, _ := cmd.Flags().GetBool("strict")

			ctx, cancel := signalContext(cmd)
			defer cancel()

			sum := pipeline.NewSummary("assemble")
			err = assemble(ctx, cfg, logger, dir, strict || cfg.VerifyStrict, sum)
			return finish(cmd.OutOrStdout(), sum, err)
		},
	}
	cmd.Flags().String("bridges", "", "Bridge directory (default DATA_DIR/bridges)")
	cmd.Flags().Bool("strict", false, "Fail when a label or relationship is short of the plan")
	return cmd
}

func assemble(ctx context.Context, cfg *config.Config, logger zerolog.Logger, dir string, strict bool, sum *pipeline.Summary) error {
	b, err := graph.LoadBridges(dir)
	if err != nil {
		return err
	}
	store, err := graph.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	if _, err := graph.NewAssembler(store, logger).Run(ctx, b, strict, sum); err != nil {
		return err
	}
	sum.Finish(nil)
	return pipeline.WriteSummary(filepath.Join(dir, graphSummaryFile), sum)
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare graph counts against the bridges without loading",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			dir := stringFlag(cmd, "bridges", cfg.BridgesDir())
			strict, _ := cmd.Flags().GetBool("strict")

			ctx, cancel := signalContext(cmd)
			defer cancel()

			sum := pipeline.NewSummary("verify")
			err = verify(ctx, cfg, logger, dir, strict || cfg.VerifyStrict, sum)
			return finish(cmd.OutOrStdout(), sum, err)
		},
	}
	cmd.Flags().String("bridges", "", "Bridge directory (default DATA_DIR/bridges)")
	cmd.Flags().Bool("strict", false, "Fail when a label or relationship is short of the plan")
	return cmd
}

func verify(ctx context.Context, cfg *config.Config, logger zerolog.Logger, dir string, strict bool, sum *pipeline.Summary) error {
	b, err := graph.LoadBridges(dir)
	if err != nil {
		return err
	}
	for _, f := range b.Files {
		sum.Input(f)
	}
	p, err := graph.BuildPlan(b, sum)
	if err != nil {
		return err
	}
	store, err := graph.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	r, err := graph.NewAssembler(store, logger).Verify(ctx, p, strict, sum)
	if err != nil {
		return err
	}
	logger.Info().
		Interface("nodes", r.Nodes).
		Interface("edges", r.Edges).
		Int("problems", len(r.Problems)).
		Msg("graph verified")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres graph schema",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("%w: DATABASE_URL is required", pipeline.ErrConfig)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, graph.Migrations())
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", graph.PGSchema, "Target schema for migrations")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("%w: DATABASE_URL is required", pipeline.ErrConfig)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, graph.Migrations()).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", graph.PGSchema, "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve graph health and counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			return runServer(cfg, logger)
		},
	}
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	store, err := graph.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())
	logger.Info().Str("backend", cfg.GraphBackend).Msg("connected to graph store")

	e := graph.NewStatusServer(store, cfg.GraphBackend, cfg.BridgesDir(), logger)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.StatusAddr).Msg("starting status server")
		if err := e.Start(cfg.StatusAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	}

	logger.Info().Msg("shutting down status server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	logger.Info().Msg("status server stopped")
	return nil
}
