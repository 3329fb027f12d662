package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-scheduler/internal/scheduling"
)

func newProvider(t *testing.T, s *Store) scheduling.Provider {
	t.Helper()
	p, err := s.EnsureProvider(context.Background(), scheduling.Provider{
		Name:         "Dr. Memory",
		Timezone:     "UTC",
		SlotDuration: 30 * time.Minute,
	})
	require.NoError(t, err)
	return p
}

func TestEnsureProvider_IsIdempotent(t *testing.T) {
	s := New()
	p := newProvider(t, s)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	again, err := s.EnsureProvider(context.Background(), scheduling.Provider{Name: "Other", SlotDuration: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := New()
	p := newProvider(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	w := scheduling.AvailabilityWindow{
		ID:         uuid.New(),
		ProviderID: p.ID,
		StartAt:    time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2030, 1, 2, 12, 0, 0, 0, time.UTC),
		Active:     true,
	}
	err := s.InTx(ctx, scheduling.ReadWrite, func(ctx context.Context, tx scheduling.Tx) error {
		require.NoError(t, tx.InsertWindow(ctx, w))
		require.NoError(t, tx.RecordEvent(ctx, scheduling.Event{ID: uuid.New(), Type: "x"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.InTx(ctx, scheduling.ReadOnly, func(ctx context.Context, tx scheduling.Tx) error {
		windows, err := tx.ListWindows(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, windows)
		return nil
	})
	require.NoError(t, err)

	n, err := s.PublishPending(ctx, 10, func(context.Context, []scheduling.Event) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInTx_ReadOnlyRejectsWrites(t *testing.T) {
	s := New()
	p := newProvider(t, s)

	err := s.InTx(context.Background(), scheduling.ReadOnly, func(ctx context.Context, tx scheduling.Tx) error {
		return tx.InsertWindow(ctx, scheduling.AvailabilityWindow{ID: uuid.New(), ProviderID: p.ID})
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestInTx_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.InTx(ctx, scheduling.ReadWrite, func(context.Context, scheduling.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishPending_MarksOnlyOnSuccess(t *testing.T) {
	s := New()
	newProvider(t, s)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, scheduling.ReadWrite, func(ctx context.Context, tx scheduling.Tx) error {
		for range 3 {
			if err := tx.RecordEvent(ctx, scheduling.Event{ID: uuid.New(), Type: scheduling.EventAppointmentBooked}); err != nil {
				return err
			}
		}
		return nil
	}))

	_, err := s.PublishPending(ctx, 10, func(context.Context, []scheduling.Event) error {
		return errors.New("broker down")
	})
	require.Error(t, err)

	n, err := s.PublishPending(ctx, 2, func(_ context.Context, batch []scheduling.Event) error {
		assert.Len(t, batch, 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.PublishPending(ctx, 2, func(context.Context, []scheduling.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func pendingEvents(s *Store) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.outbox)
}

func recordEvents(t *testing.T, s *Store, n int) {
	t.Helper()
	require.NoError(t, s.InTx(context.Background(), scheduling.ReadWrite, func(ctx context.Context, tx scheduling.Tx) error {
		for range n {
			if err := tx.RecordEvent(ctx, scheduling.Event{ID: uuid.New(), Type: scheduling.EventAppointmentBooked}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestPublishPending_DropsPublishedEvents(t *testing.T) {
	s := New()
	recordEvents(t, s, 3)
	require.Equal(t, 3, pendingEvents(s))

	n, err := s.PublishPending(context.Background(), 10, func(context.Context, []scheduling.Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, pendingEvents(s))
}

func TestWithoutOutbox_DiscardsEvents(t *testing.T) {
	s := New(WithoutOutbox())
	recordEvents(t, s, 5)
	assert.Zero(t, pendingEvents(s))

	n, err := s.PublishPending(context.Background(), 10, func(context.Context, []scheduling.Event) error {
		t.Fatal("send must not be called")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublishPending_SendDoesNotBlockScheduling(t *testing.T) {
	s := New()
	p := newProvider(t, s)
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	svc := scheduling.NewService(s, scheduling.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	_, err := svc.CreateWindow(ctx, p.ID, scheduling.WindowInput{StartAt: start, EndAt: start.Add(2 * time.Hour), Active: true})
	require.NoError(t, err)
	_, err = svc.Book(ctx, p.ID, scheduling.BookingRequest{StartAt: start, EndAt: start.Add(30 * time.Minute), RequesterName: "first"})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	published := make(chan int, 1)
	go func() {
		n, err := s.PublishPending(ctx, 10, func(context.Context, []scheduling.Event) error {
			close(entered)
			<-release
			return nil
		})
		assert.NoError(t, err)
		published <- n
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := svc.Book(ctx, p.ID, scheduling.BookingRequest{
			StartAt: start.Add(time.Hour), EndAt: start.Add(90 * time.Minute), RequesterName: "second",
		})
		if err == nil {
			_, err = svc.FreeSlots(ctx, p.ID, start, start.Add(2*time.Hour))
		}
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("scheduling blocked while an outbox send was in flight")
	}

	// The in-flight event is not handed out twice.
	n, err := s.PublishPending(ctx, 10, func(_ context.Context, batch []scheduling.Event) error {
		assert.Len(t, batch, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	close(release)
	assert.Equal(t, 1, <-published)
	assert.Zero(t, pendingEvents(s))
}

func TestConcurrentBookingsAdmitExactlyOne(t *testing.T) {
	s := New()
	p := newProvider(t, s)
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	svc := scheduling.NewService(s, scheduling.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	start := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	_, err := svc.CreateWindow(ctx, p.ID, scheduling.WindowInput{StartAt: start, EndAt: start.Add(2 * time.Hour), Active: true})
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every request overlaps 10:00-10:30 by at least 15 minutes.
			offset := time.Duration(i%2) * 15 * time.Minute
			_, err := svc.Book(ctx, p.ID, scheduling.BookingRequest{
				StartAt:       start.Add(offset),
				EndAt:         start.Add(offset + 30*time.Minute),
				RequesterName: "racer",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, scheduling.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
}
