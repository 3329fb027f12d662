// Package postgres implements scheduling.Store on PostgreSQL.
//
// Correctness of check-then-insert rests on two things. Write units run at
// SERIALIZABLE isolation, so a unit whose reads were invalidated by a
// concurrent commit fails with 40001 and is retried. Exclusion constraints
// reject overlapping active windows and overlapping scheduled appointments
// (23P01). The FOR UPDATE lock on the provider row only queues writers; the
// unit's snapshot is taken before the lock wait, so the lock alone does not
// make the overlap check safe and the isolation level must stay SERIALIZABLE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-scheduler/internal/scheduling"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func txOptions(mode scheduling.TxMode) pgx.TxOptions {
	if mode == scheduling.ReadOnly {
		return pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	}
	return pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
}

func (s *Store) InTx(ctx context.Context, mode scheduling.TxMode, fn func(ctx context.Context, tx scheduling.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, txOptions(mode))
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if err := fn(ctx, &tx{tx: pgTx, readOnly: mode == scheduling.ReadOnly}); err != nil {
		return mapError(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) EnsureProvider(ctx context.Context, defaults scheduling.Provider) (scheduling.Provider, error) {
	id := defaults.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	minutes := int(defaults.SlotDuration / time.Minute)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO providers (id, name, timezone, slot_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (singleton) DO NOTHING
	`, id, defaults.Name, defaults.Timezone, minutes)
	if err != nil {
		return scheduling.Provider{}, fmt.Errorf("insert provider: %w", err)
	}

	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerCols+` FROM providers LIMIT 1`))
	if err != nil {
		return scheduling.Provider{}, fmt.Errorf("load provider: %w", err)
	}
	return p, nil
}

// mapError turns driver errors into scheduling error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", scheduling.ErrSerialization, pgErr.Message)
	}
	if IsConflict(err) {
		return scheduling.NewConflictError("interval overlaps committed state")
	}
	return err
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
