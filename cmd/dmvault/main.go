package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"dmvault/internal/artifact"
	"dmvault/internal/catalog"
	"dmvault/internal/config"
	"dmvault/internal/events"
	"dmvault/internal/httpapi"
	"dmvault/pkg/db"
	"dmvault/pkg/ftp"
	"dmvault/pkg/telemetry"
)

const serviceName = "dmvault"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dmvault",
		Short:         "Artifact vault for device backups and software payloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve the vault API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			pool, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer pool.Close()

			return db.Migrate(ctx, pool)
		},
	}
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownTelemetry != nil {
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
			}
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	orm, err := db.OpenORM(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open orm: %w", err)
	}
	defer func() {
		if err := db.CloseORM(orm); err != nil {
			logger.Printf("WARN close orm: %v", err)
		}
	}()

	backupStore, err := ftp.NewStore(cfg.FTP)
	if err != nil {
		return fmt.Errorf("init ftp store: %w", err)
	}
	softwareStore := backupStore
	if cfg.SoftwareBasePath != "" {
		softwareStore = backupStore.WithBasePath(cfg.SoftwareBasePath)
	}

	deviceCatalog := catalog.Default()
	if cfg.CatalogFile != "" {
		deviceCatalog, err = catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("load catalog %s: %w", cfg.CatalogFile, err)
		}
	}

	var bus *events.Bus
	var publisher artifact.Publisher
	if cfg.NATSURL != "" {
		bus, err = events.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer bus.Close()
		publisher = bus
	}

	repo, err := artifact.NewRepo(pool, orm)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	svc, err := artifact.NewService(artifact.ServiceConfig{
		Repo:     repo,
		Backups:  artifact.FTPRemoteStore(backupStore),
		Software: artifact.FTPRemoteStore(softwareStore),
		Catalog:  deviceCatalog,
		Logger:   logger,
		Events:   publisher,
	})
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	api, err := httpapi.New(svc, logger)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}
	routes, err := api.Routes()
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), pool); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", routes)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}
