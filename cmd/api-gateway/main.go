package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/upb/engine-gateway/app"
	"github.com/upb/engine-gateway/config"
	"github.com/upb/engine-gateway/internal/observability"
	"github.com/upb/engine-gateway/models"
	"github.com/upb/engine-gateway/routes"
	"github.com/upb/engine-gateway/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-gateway",
		Short: "HTTP gateway in front of the native calculation engine",
		Long: `api-gateway exposes the calculation engine over HTTP and records every
engine call in an audit store.

Configuration is read from the environment and an optional .env file.

Quick start:
  api-gateway serve                      # Start the HTTP server
  api-gateway migrate                    # Create the audit table
  api-gateway calculations list -o json  # Show recent engine calls`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCalculationsCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runServe(ctx, cfg, logger)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the calculation audit table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, closeStore, err := app.OpenAuditStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open audit store: %w", err)
			}
			defer func() { _ = closeStore() }()

			if err := store.InitSchema(ctx); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Audit store %q is ready.\n", cfg.AuditStore.Driver)
			return nil
		},
	}
}

func newCalculationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calculations",
		Short: "Inspect the calculation audit store",
	}
	cmd.AddCommand(newCalculationsListCmd())
	return cmd
}

func newCalculationsListCmd() *cobra.Command {
	var (
		limit  int
		offset int
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded calculations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output format %q (want table or json)", output)
			}
			skip, size, err := services.NormalizePage(offset, limit)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, closeStore, err := app.OpenAuditStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open audit store: %w", err)
			}
			defer func() { _ = closeStore() }()

			calcs, err := store.List(ctx, size, skip)
			if err != nil {
				return fmt.Errorf("failed to list calculations: %w", err)
			}

			if output == "json" {
				return writeCalculationsJSON(cmd.OutOrStdout(), calcs)
			}
			return writeCalculationsTable(cmd.OutOrStdout(), calcs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of newest records to skip")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")

	return cmd
}

func writeCalculationsJSON(w io.Writer, calcs []*models.Calculation) error {
	if calcs == nil {
		calcs = []*models.Calculation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(calcs)
}

func writeCalculationsTable(w io.Writer, calcs []*models.Calculation) error {
	if len(calcs) == 0 {
		_, err := fmt.Fprintln(w, "No calculations found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tOPERATION\tSUCCESS\tRESULT\tMESSAGE\tCREATED")
	fmt.Fprintln(tw, "--\t---------\t-------\t------\t-------\t-------")

	for _, c := range calcs {
		result := "-"
		if c.Result != nil {
			result = *c.Result
		}
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%s\t%s\n",
			c.ID,
			c.OperationType,
			c.Success,
			result,
			c.Message,
			c.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	return tw.Flush()
}

// bootstrap loads configuration and builds the logger
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.With(
		zap.String("service", cfg.ProjectName),
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
	), nil
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// runServe serves until ctx is cancelled, then drains in-flight requests
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	srv := newServer(cfg, routes.SetupRoutes(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api-gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	serveErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, deps.Close(closeCtx))
}
