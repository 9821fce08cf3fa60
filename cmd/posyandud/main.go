// Command posyandud is the posyandu record-keeping daemon: a local-first
// HTTP service that keeps working through backend outages and syncs queued
// work when connectivity returns.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/config"
	"github.com/vickyymosafan/posyandu-core/internal/connectivity"
	"github.com/vickyymosafan/posyandu-core/internal/db"
	"github.com/vickyymosafan/posyandu-core/internal/httpapi"
	"github.com/vickyymosafan/posyandu-core/internal/logging"
	"github.com/vickyymosafan/posyandu-core/internal/remote"
	"github.com/vickyymosafan/posyandu-core/internal/service"
	"github.com/vickyymosafan/posyandu-core/internal/syncer"
	"github.com/vickyymosafan/posyandu-core/internal/syncer/scheduler"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Version is set at build time.
var Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:          "posyandud",
		Short:        "Offline-first posyandu record keeping service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), syncCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service with background sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		return err
	}

	store := db.NewStore(database.DB, logger)
	client := remote.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	monitor := connectivity.NewMonitor(client, cfg.ProbeInterval, logger)
	manager := syncer.NewManager(store, client, monitor, logger)
	sched := scheduler.New(manager, monitor, cfg.SyncInterval, logger)
	registration := service.NewRegistrationService(store, client, monitor, cfg.CodePrefix, logger)
	examination := service.NewExaminationService(store, client, monitor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ForceOffline {
		logger.Warn("forced-offline mode, probe loop disabled")
	} else {
		monitor.Start(ctx)
		defer monitor.Stop()
	}
	sched.Start(ctx)
	defer sched.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	httpapi.New(registration, examination, manager, monitor, store.Queue.Count, logger).Register(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			logger.Info("http server stopped", zap.Error(err))
		}
	}()
	logger.Info("posyandud serving",
		zap.String("port", cfg.Port),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.String("version", Version))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			database, err := db.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer database.Close()

			migrator := db.NewMigrator(database.DB)
			if err := migrator.Up(); err != nil {
				return err
			}
			version, err := migrator.CurrentVersion()
			if err != nil {
				return err
			}
			logger.Info("migrations applied", zap.Int("version", version))
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one drain-and-refresh cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			database, err := db.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.NewMigrator(database.DB).Up(); err != nil {
				return err
			}

			store := db.NewStore(database.DB, logger)
			client := remote.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
			monitor := connectivity.NewMonitor(client, cfg.ProbeInterval, logger)

			// One explicit probe instead of the background loop.
			probeCtx, cancel := context.WithTimeout(cmd.Context(), cfg.APITimeout)
			defer cancel()
			monitor.SetOnline(client.Health(probeCtx) == nil)

			manager := syncer.NewManager(store, client, monitor, logger)
			result := manager.SyncAll(cmd.Context())
			if result.Skipped {
				return apperrors.New(apperrors.ErrSyncOffline, "backend unreachable, sync skipped")
			}
			fmt.Printf("drained %d, failed %d, dropped %d, refreshed %d in %s\n",
				result.Drained, result.Failed, result.Dropped, result.Refreshed, result.Duration)
			if len(result.Errors) > 0 {
				return fmt.Errorf("sync finished with %d errors: %s", len(result.Errors), result.Errors[0])
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("posyandud v%s\n", Version)
		},
	}
}
