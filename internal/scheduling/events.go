package scheduling

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentBooked        = "appointment.booked.v1"
	EventAppointmentStatusChanged = "appointment.status_changed.v1"
)

// Event is a domain event stored in the outbox alongside the state change
// that produced it.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

type appointmentPayload struct {
	AppointmentID  uuid.UUID `json:"appointment_id"`
	ProviderID     uuid.UUID `json:"provider_id"`
	StartAt        string    `json:"start_at"`
	EndAt          string    `json:"end_at"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
}

func newAppointmentEvent(eventType string, a Appointment, previous Status, at time.Time) (Event, error) {
	payload, err := json.Marshal(appointmentPayload{
		AppointmentID:  a.ID,
		ProviderID:     a.ProviderID,
		StartAt:        a.StartAt.Format(time.RFC3339),
		EndAt:          a.EndAt.Format(time.RFC3339),
		Status:         a.Status,
		PreviousStatus: previous,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: a.ID,
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
