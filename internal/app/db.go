package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"clinic-scheduler/internal/config"
	"clinic-scheduler/internal/events"
	"clinic-scheduler/internal/scheduling"
	"clinic-scheduler/internal/storage/memory"
	"clinic-scheduler/internal/storage/postgres"
)

// Backend is the storage selected by STORE.
type Backend struct {
	Store  scheduling.Store
	Outbox events.Outbox
	Pool   *pgxpool.Pool // nil for the memory store

	ping  func(context.Context) error
	stats func() any
}

// OpenBackend connects to Postgres and applies pending migrations, or builds
// an in-process store.
func OpenBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		var opts []memory.Option
		if len(events.SplitBrokers(cfg.KafkaBrokers)) == 0 {
			// Nothing would drain the outbox.
			opts = append(opts, memory.WithoutOutbox())
		}
		st := memory.New(opts...)
		return &Backend{Store: st, Outbox: st, ping: st.Ping}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	n, err := postgres.NewMigrator(pool).Up(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if n > 0 {
		logger.Info().Int("count", n).Msg("applied migrations")
	}

	st := postgres.NewStore(pool)
	return &Backend{
		Store:  st,
		Outbox: st,
		Pool:   pool,
		ping:   st.Ping,
		stats:  func() any { return st.Stats() },
	}, nil
}

func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}

func (b *Backend) ReadyCheck() ReadyCheck {
	return ReadyCheck{Name: "store", Check: b.ping}
}

func (b *Backend) PoolStats() func() any {
	return b.stats
}

// BootstrapProvider returns the single provider, creating it from config on
// first start.
func BootstrapProvider(ctx context.Context, store scheduling.Store, cfg *config.Config) (scheduling.Provider, error) {
	return store.EnsureProvider(ctx, scheduling.Provider{
		Name:         cfg.ProviderName,
		Timezone:     cfg.ProviderTimezone,
		SlotDuration: cfg.SlotDuration(),
	})
}
