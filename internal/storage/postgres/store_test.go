package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-scheduler/internal/scheduling"
)

// openTestStore connects to TEST_DATABASE_URL, migrates and empties the
// schema. Tests are skipped when the variable is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url, 8, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = NewMigrator(pool).Up(ctx)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE appointment_events, appointments, availability_windows, providers`)
	require.NoError(t, err)
	return NewStore(pool)
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "40001"}), scheduling.ErrSerialization)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "40P01"}), scheduling.ErrSerialization)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23P01"}), scheduling.ErrConflict)

	other := &pgconn.PgError{Code: "23505"}
	assert.Equal(t, other, mapError(other))
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23P01"}))
}

func TestTxOptions(t *testing.T) {
	ro := txOptions(scheduling.ReadOnly)
	assert.Equal(t, "repeatable read", string(ro.IsoLevel))
	assert.Equal(t, "read only", string(ro.AccessMode))

	// The provider row lock does not make overlap checks safe on its own.
	rw := txOptions(scheduling.ReadWrite)
	assert.Equal(t, "serializable", string(rw.IsoLevel))
	assert.Equal(t, "read write", string(rw.AccessMode))
}

func TestLoadMigrations_OrdersByVersion(t *testing.T) {
	files := fstest.MapFS{
		"migrations/002_more.sql": {Data: []byte("SELECT 2;")},
		"migrations/001_init.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":    {Data: []byte("ignored")},
	}
	migs, err := LoadMigrations(files)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, 2, migs[1].Version)
	assert.Equal(t, "SELECT 2;", migs[1].SQL)
}

func TestLoadMigrations_Embedded(t *testing.T) {
	migs, err := LoadMigrations(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, 1, migs[0].Version)
}

func TestStore_EndToEnd(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p, err := st.EnsureProvider(ctx, scheduling.Provider{Name: "Dr. PG", Timezone: "UTC", SlotDuration: 30 * time.Minute})
	require.NoError(t, err)
	again, err := st.EnsureProvider(ctx, scheduling.Provider{Name: "ignored", Timezone: "UTC", SlotDuration: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, 30*time.Minute, again.SlotDuration)

	now := time.Now().UTC().Truncate(time.Hour)
	svc := scheduling.NewService(st, scheduling.WithClock(func() time.Time { return now }))
	start := now.Add(24 * time.Hour)

	w, err := svc.CreateWindow(ctx, p.ID, scheduling.WindowInput{StartAt: start, EndAt: start.Add(2 * time.Hour), Active: true})
	require.NoError(t, err)

	_, err = svc.CreateWindow(ctx, p.ID, scheduling.WindowInput{StartAt: start.Add(time.Hour), EndAt: start.Add(3 * time.Hour), Active: true})
	assert.ErrorIs(t, err, scheduling.ErrConflict)

	seq, err := svc.FreeSlots(ctx, p.ID, start.Add(-time.Hour), start.Add(4*time.Hour))
	require.NoError(t, err)
	n := 0
	for range seq {
		n++
	}
	assert.Equal(t, 4, n)

	appt, err := svc.Book(ctx, p.ID, scheduling.BookingRequest{StartAt: start, EndAt: start.Add(30 * time.Minute), RequesterName: "Ann"})
	require.NoError(t, err)

	_, err = svc.Book(ctx, p.ID, scheduling.BookingRequest{StartAt: start, EndAt: start.Add(30 * time.Minute), RequesterName: "Bob"})
	assert.ErrorIs(t, err, scheduling.ErrConflict)

	_, err = svc.UpdateWindow(ctx, p.ID, w.ID, scheduling.WindowInput{StartAt: start.Add(30 * time.Minute), EndAt: start.Add(time.Hour), Active: true})
	assert.ErrorIs(t, err, scheduling.ErrConflict)

	got, err := svc.SetStatus(ctx, p.ID, appt.ID, scheduling.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCompleted, got.Status)

	list, err := svc.ListAppointments(ctx, p.ID, scheduling.StatusFilter{Status: scheduling.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].StartAt.Equal(start))

	published := 0
	count, err := st.PublishPending(ctx, 10, func(_ context.Context, batch []scheduling.Event) error {
		published += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, published)

	require.NoError(t, svc.DeleteWindow(ctx, p.ID, w.ID))
	err = svc.DeleteWindow(ctx, p.ID, w.ID)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	_, err = svc.SetStatus(ctx, p.ID, uuid.New(), scheduling.StatusCanceled)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
}

func TestStore_ConcurrentAdmission(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p, err := st.EnsureProvider(ctx, scheduling.Provider{Name: "Dr. PG", Timezone: "UTC", SlotDuration: 30 * time.Minute})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Hour)
	svc := scheduling.NewService(st, scheduling.WithClock(func() time.Time { return now }))
	retrier := scheduling.NewRetrier(5)
	start := now.Add(24 * time.Hour)
	_, err = svc.CreateWindow(ctx, p.ID, scheduling.WindowInput{StartAt: start, EndAt: start.Add(2 * time.Hour), Active: true})
	require.NoError(t, err)

	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		bad []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := scheduling.RetryValue(ctx, retrier, func() (scheduling.Appointment, error) {
				return svc.Book(ctx, p.ID, scheduling.BookingRequest{StartAt: start, EndAt: start.Add(30 * time.Minute), RequesterName: "racer"})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, scheduling.ErrConflict), errors.Is(err, scheduling.ErrSerialization):
			default:
				bad = append(bad, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Empty(t, bad)
}
