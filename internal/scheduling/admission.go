package scheduling

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Book admits a new appointment. Containment, conflict check and insert run
// in one ReadWrite unit, so concurrent requests for overlapping intervals
// cannot both succeed.
func (s *Service) Book(ctx context.Context, providerID uuid.UUID, req BookingRequest) (Appointment, error) {
	iv := NewInterval(req.StartAt, req.EndAt)
	if !iv.Valid() {
		return Appointment{}, NewValidationError("end_at must be after start_at")
	}
	name := strings.TrimSpace(req.RequesterName)
	if name == "" {
		return Appointment{}, NewValidationError("requester_name is required")
	}

	var appt Appointment
	err := s.store.InTx(ctx, ReadWrite, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockProvider(ctx, providerID); err != nil {
			return err
		}

		windows, err := tx.ActiveWindowsOverlapping(ctx, providerID, iv)
		if err != nil {
			return err
		}
		contained := false
		for _, w := range windows {
			if w.Interval().Contains(iv) {
				contained = true
				break
			}
		}
		if !contained {
			return NewValidationError("slot outside of availability")
		}

		conflicts, err := tx.AppointmentsOverlapping(ctx, providerID, iv, StatusScheduled)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return NewConflictError("slot already booked")
		}

		now := s.Now()
		appt = Appointment{
			ID:            uuid.New(),
			ProviderID:    providerID,
			StartAt:       iv.Start,
			EndAt:         iv.End,
			RequesterName: name,
			Note:          req.Note,
			Status:        StatusScheduled,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		evt, err := newAppointmentEvent(EventAppointmentBooked, appt, "", now)
		if err != nil {
			return err
		}
		return tx.RecordEvent(ctx, evt)
	})
	if err != nil {
		return Appointment{}, err
	}
	return appt, nil
}
