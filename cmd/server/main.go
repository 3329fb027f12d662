package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"clinic-scheduler/internal/app"
	"clinic-scheduler/internal/config"
	"clinic-scheduler/internal/events"
	"clinic-scheduler/internal/scheduling"
	"clinic-scheduler/internal/server"
	"clinic-scheduler/internal/storage/postgres"
	"clinic-scheduler/internal/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Single-provider appointment scheduler",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := server.NewLogger(cfg.Env, cfg.LogLevel)
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "clinic-scheduler",
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	provider, err := app.BootstrapProvider(ctx, backend.Store, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap provider: %w", err)
	}
	logger.Info().
		Str("provider_id", provider.ID.String()).
		Dur("slot", provider.SlotDuration).
		Msg("provider ready")

	a := &app.App{
		Service:    scheduling.NewService(backend.Store),
		Retrier:    scheduling.NewRetrier(cfg.AdmissionMaxRetries),
		ProviderID: provider.ID,
		Logger:     logger,
		Checks:     []app.ReadyCheck{backend.ReadyCheck()},
		PoolStats:  backend.PoolStats(),
	}
	if gc := app.NewGoogleCalendarConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL); gc != nil {
		a.Calendar = gc
		a.CalendarEvents = gc.GoogleEvents
	}

	publisher := events.NewPublisher(backend.Outbox, logger, events.Config{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollInterval,
		BatchSize: cfg.OutboxBatchSize,
	})
	if publisher != nil {
		a.Checks = append(a.Checks, app.ReadyCheck{Name: "kafka", Check: events.ReadyCheck(cfg.KafkaBrokers)})
		go publisher.Run(ctx)
	}

	opts := app.RouterOptions{
		Auth: app.ProviderAuth(app.AuthConfig{
			StaticTokens:      cfg.Tokens(),
			JWTSecret:         cfg.JWTHMACSecret,
			BasicUsername:     cfg.BasicAuthUsername,
			BasicPassword:     cfg.BasicAuthPassword,
			BasicPasswordHash: cfg.BasicAuthPasswordHash,
		}),
	}
	if cfg.RedisURL != "" {
		rdb, err := app.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter := app.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "scheduler:public")
		opts.RateLimit = limiter.Middleware(logger, true)
		a.Checks = append(a.Checks, app.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	return server.Run(ctx, a.Router(opts), cfg.Port, logger)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state, at := "pending", "-"
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						at = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-30s %-10s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

func openMigrator(ctx context.Context) (*postgres.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store != config.StorePostgres {
		return nil, nil, fmt.Errorf("migrations need STORE=%s", config.StorePostgres)
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewMigrator(pool), pool.Close, nil
}
