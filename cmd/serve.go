package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"raceday-api/config"
	"raceday-api/database"
	"raceday-api/jobs"
	"raceday-api/metrics"
	"raceday-api/middleware"
	"raceday-api/repositories"
	"raceday-api/routes"
	"raceday-api/secrets"
	"raceday-api/services"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, !skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not run schema migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			AttachStacktrace: true,
		}); err != nil {
			slog.Warn("sentry disabled", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	provider, err := secretsProvider(ctx, cfg)
	if err != nil {
		return err
	}
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)
	go flushOnHangup(ctx, hangup, provider)

	db, err := openDatabase(ctx, cfg, provider)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if migrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	store, err := routeStore(ctx, cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	eventRepo := repositories.NewEventRepository(db)
	regRepo := repositories.NewRegistrationRepository(db, cfg.StartNumberScope)

	var notifier services.RegistrationNotifier
	if cfg.EmailEnabled() {
		notifier = services.NewEmailService(cfg)
	}
	registrations := services.NewRegistrationService(regRepo, eventRepo, notifier, m)
	defer registrations.Wait()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute, 10*time.Minute)

	if cfg.RouteSweepEvery > 0 {
		sweep := jobs.NewRouteSweepJob(eventRepo, store, m, cfg.RouteSweepMinAge)
		if err := sweep.Start(cfg.RouteSweepEvery); err != nil {
			return err
		}
		defer func() {
			if err := sweep.Stop(); err != nil {
				slog.Warn("route sweep shutdown", "error", err)
			}
		}()
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := routes.NewRouter(routes.Dependencies{
		DB:            db,
		Config:        cfg,
		Auth:          services.NewAuthService(provider, cfg.JWTSecret),
		Events:        services.NewEventService(eventRepo, store, m),
		Registrations: registrations,
		Metrics:       m,
		RateLimiter:   limiter,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("raceday api listening", "port", cfg.Port, "driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// flushOnHangup drops cached secrets on every signal received, so rotated SSM
// parameters are picked up without a restart.
func flushOnHangup(ctx context.Context, signals <-chan os.Signal, cache *secrets.CachedProvider) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			cache.Flush()
			slog.Info("secrets cache flushed")
		}
	}
}
