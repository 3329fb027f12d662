// Package memory is an in-process scheduling.Store. Write units run one at a
// time on a private copy of the state that replaces the shared state only on
// commit, which gives the same all-or-nothing contract as the Postgres store.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-scheduler/internal/scheduling"
)

var errReadOnly = errors.New("write attempted in read-only transaction")

type state struct {
	providers    map[uuid.UUID]scheduling.Provider
	windows      map[uuid.UUID]scheduling.AvailabilityWindow
	appointments map[uuid.UUID]scheduling.Appointment
	outbox       []scheduling.Event // pending only; published events are dropped
}

func (s *state) clone() *state {
	return &state{
		providers:    maps.Clone(s.providers),
		windows:      maps.Clone(s.windows),
		appointments: maps.Clone(s.appointments),
		outbox:       slices.Clone(s.outbox),
	}
}

type Store struct {
	mu            sync.RWMutex
	st            *state
	discardEvents bool
	sending       map[uuid.UUID]struct{} // events handed to an in-flight send
}

type Option func(*Store)

// WithoutOutbox makes RecordEvent a no-op. Use it when no relay drains the
// outbox.
func WithoutOutbox() Option {
	return func(s *Store) { s.discardEvents = true }
}

func New(opts ...Option) *Store {
	s := &Store{
		st: &state{
			providers:    map[uuid.UUID]scheduling.Provider{},
			windows:      map[uuid.UUID]scheduling.AvailabilityWindow{},
			appointments: map[uuid.UUID]scheduling.Appointment{},
		},
		sending: map[uuid.UUID]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) InTx(ctx context.Context, mode scheduling.TxMode, fn func(ctx context.Context, tx scheduling.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == scheduling.ReadOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return fn(ctx, &tx{st: s.st, readOnly: true, discardEvents: s.discardEvents})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, discardEvents: s.discardEvents}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) EnsureProvider(ctx context.Context, defaults scheduling.Provider) (scheduling.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.providers {
		return p, nil
	}
	p := defaults
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = scheduling.Canonical(time.Now())
	}
	s.st.providers[p.ID] = p
	return p, nil
}

// Ping always succeeds; it lets the memory store stand in for readiness checks.
func (s *Store) Ping(context.Context) error { return nil }

// PublishPending hands up to limit pending events to send and drops them from
// the outbox once send succeeds. send runs without the store lock held.
func (s *Store) PublishPending(ctx context.Context, limit int, send func(context.Context, []scheduling.Event) error) (int, error) {
	batch := s.claimPending(limit)
	if len(batch) == 0 {
		return 0, nil
	}

	err := send(ctx, batch)

	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make(map[uuid.UUID]struct{}, len(batch))
	for _, e := range batch {
		delete(s.sending, e.ID)
		sent[e.ID] = struct{}{}
	}
	if err != nil {
		return 0, err
	}
	// Write units may have swapped in a new state while send ran, so match by
	// event ID rather than position.
	s.st.outbox = slices.DeleteFunc(s.st.outbox, func(e scheduling.Event) bool {
		_, ok := sent[e.ID]
		return ok
	})
	return len(batch), nil
}

func (s *Store) claimPending(limit int) []scheduling.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var batch []scheduling.Event
	for _, e := range s.st.outbox {
		if len(batch) >= limit {
			break
		}
		if _, busy := s.sending[e.ID]; busy {
			continue
		}
		s.sending[e.ID] = struct{}{}
		batch = append(batch, e)
	}
	return batch
}
