/*
main.go - Application entry point

PURPOSE:
  The invoicer command. Runs the HTTP server and a few maintenance
  commands against the same SQLite database.

COMMANDS:
  serve                 Start the HTTP API (default when no command is given)
  seed                  Load demo employees
  pdf <invoice-id>      Render an invoice to a PDF file
  migrate               Apply migrations and print the schema version

STARTUP SEQUENCE (serve):
  1. Load configuration (.env, then environment, then flags)
  2. Configure the global zerolog logger
  3. Open the SQLite store (migrations run on open)
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

FLAGS:
  --port    HTTP server port (overrides PORT)
  --db      SQLite database path (overrides DATABASE_PATH)
            Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

EXAMPLES:
  invoicer serve --db=./data/invoices.db
  invoicer seed
  invoicer pdf 12 -o INV-20251120-001.pdf

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/warp/payroll-invoicing/api"
	"github.com/warp/payroll-invoicing/config"
	"github.com/warp/payroll-invoicing/logger"
	"github.com/warp/payroll-invoicing/payroll"
	"github.com/warp/payroll-invoicing/render"
	"github.com/warp/payroll-invoicing/store/sqlite"
)

var version = "1.0.0"

var (
	cfg        *config.Config
	portFlag   string
	dbPathFlag string
	outputFlag string
)

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Payroll invoicing server",
	Long: `invoicer manages employees placed with client consultancies and
generates monthly payroll invoices with pro-rated salaries, PF and
service fees, rendered as PDF.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if portFlag != "" {
			c.Port = portFlag
		}
		if dbPathFlag != "" {
			c.DatabasePath = dbPathFlag
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := logger.Setup(c.GetLoggerConfig()); err != nil {
			return err
		}
		cfg = c
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo employees (idempotent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		created, err := api.LoadDemoEmployees(cmd.Context(), store, payroll.SystemClock{})
		if err != nil {
			return err
		}
		log.Info().Int("created", len(created)).Msg("demo employees loaded")
		return nil
	},
}

var pdfCmd = &cobra.Command{
	Use:   "pdf <invoice-id>",
	Short: "Render an invoice to a PDF file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid invoice id %q", args[0])
		}
		ctx := cmd.Context()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		inv, err := store.GetInvoice(ctx, payroll.InvoiceID(id))
		if err != nil {
			return err
		}
		if inv == nil {
			return &payroll.NotFoundError{Kind: "invoice", ID: id}
		}
		employees, err := store.EmployeesByIDs(ctx, inv.EmployeeIDs)
		if err != nil {
			return err
		}
		settings, err := payroll.GetOrInitSettings(ctx, store, cfg.CompanyDefaults())
		if err != nil {
			return err
		}

		pdf, err := newRenderer().Render(ctx, render.Document{
			Settings:  *settings,
			Breakdown: payroll.NewBreakdown(*inv, employees),
		})
		if err != nil {
			return err
		}

		out := outputFlag
		if out == "" {
			out = inv.Number + ".pdf"
		}
		if err := os.WriteFile(out, pdf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		log.Info().Str("invoice_number", inv.Number).Str("file", out).Int("bytes", len(pdf)).Msg("invoice rendered")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("schema version %d\n", store.SchemaVersion())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "SQLite database path (default from DATABASE_PATH)")
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "HTTP server port (default from PORT)")
	pdfCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output file (default <invoice-number>.pdf)")

	rootCmd.AddCommand(serveCmd, seedCmd, pdfCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func newRenderer() *render.PDF {
	return render.NewPDF(render.Contact{Email: cfg.CompanyEmail, Phone: cfg.CompanyPhone})
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	serverLog := logger.WithComponent("api")
	handler := api.NewHandler(store, newRenderer(), api.Options{
		Defaults:       cfg.CompanyDefaults(),
		UploadDir:      cfg.UploadDir,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         &serverLog,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DatabasePath).
			Uint("schema_version", store.SchemaVersion()).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
