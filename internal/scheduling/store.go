package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TxMode selects the isolation contract of a unit of work.
type TxMode int

const (
	// ReadWrite units are serializable: two units that would each observe
	// "no conflict" for overlapping intervals can never both commit. One of
	// them fails with ErrSerialization or ErrConflict instead.
	ReadWrite TxMode = iota
	// ReadOnly units see one consistent snapshot and never mutate.
	ReadOnly
)

// Store is the transactional repository behind the scheduling core.
type Store interface {
	// InTx runs fn as one atomic unit. A nil return commits; any error rolls
	// back every write made through tx.
	InTx(ctx context.Context, mode TxMode, fn func(ctx context.Context, tx Tx) error) error
	// EnsureProvider returns the existing provider or creates one from defaults.
	EnsureProvider(ctx context.Context, defaults Provider) (Provider, error)
}

// Tx is the set of reads and writes available inside a unit of work. Every
// call is scoped to an explicit provider id.
type Tx interface {
	// LockProvider loads the provider and, for ReadWrite units, queues
	// concurrent writers for that provider. It reduces contention; the
	// ReadWrite isolation contract is what keeps overlap checks correct.
	LockProvider(ctx context.Context, providerID uuid.UUID) (Provider, error)

	ListWindows(ctx context.Context, providerID uuid.UUID) ([]AvailabilityWindow, error)
	GetWindow(ctx context.Context, providerID, id uuid.UUID) (AvailabilityWindow, error)
	// ActiveWindowsOverlapping returns active windows intersecting iv ordered by start.
	ActiveWindowsOverlapping(ctx context.Context, providerID uuid.UUID, iv Interval) ([]AvailabilityWindow, error)
	InsertWindow(ctx context.Context, w AvailabilityWindow) error
	UpdateWindow(ctx context.Context, w AvailabilityWindow) error
	DeleteWindow(ctx context.Context, providerID, id uuid.UUID) error

	ListAppointments(ctx context.Context, providerID uuid.UUID, filter StatusFilter) ([]Appointment, error)
	GetAppointment(ctx context.Context, providerID, id uuid.UUID) (Appointment, error)
	// AppointmentsOverlapping returns appointments in one of statuses that
	// intersect iv, ordered by start.
	AppointmentsOverlapping(ctx context.Context, providerID uuid.UUID, iv Interval, statuses ...Status) ([]Appointment, error)
	InsertAppointment(ctx context.Context, a Appointment) error
	SetAppointmentStatus(ctx context.Context, providerID, id uuid.UUID, status Status, updatedAt time.Time) error

	// RecordEvent appends a domain event to the outbox of this unit of work.
	RecordEvent(ctx context.Context, e Event) error
}
