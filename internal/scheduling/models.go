package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Provider owns availability and appointments. Timezone is a display hint
// only; every comparison runs on canonical UTC instants.
type Provider struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Timezone     string        `json:"timezone"`
	SlotDuration time.Duration `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}

type AvailabilityWindow struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Active     bool      `json:"is_active"`
}

func (w AvailabilityWindow) Interval() Interval {
	return Interval{Start: w.StartAt, End: w.EndAt}
}

type Appointment struct {
	ID            uuid.UUID `json:"id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	RequesterName string    `json:"requester_name"`
	Note          *string   `json:"note,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.StartAt, End: a.EndAt}
}

// Slot is one free grid cell.
type Slot struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// WindowInput carries the caller-editable fields of an availability window.
type WindowInput struct {
	StartAt time.Time
	EndAt   time.Time
	Active  bool
}

// BookingRequest is a public request for an appointment.
type BookingRequest struct {
	StartAt       time.Time
	EndAt         time.Time
	RequesterName string
	Note          *string
}
