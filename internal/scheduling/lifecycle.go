package scheduling

import (
	"context"

	"github.com/google/uuid"
)

func (s *Service) ListAppointments(ctx context.Context, providerID uuid.UUID, filter StatusFilter) ([]Appointment, error) {
	var out []Appointment
	err := s.store.InTx(ctx, ReadOnly, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ListAppointments(ctx, providerID, filter)
		return err
	})
	return out, err
}

// SetStatus moves an appointment to status. Setting the current status again
// is a no-op. Returning to scheduled re-checks that no other scheduled
// appointment took the band in the meantime.
func (s *Service) SetStatus(ctx context.Context, providerID, id uuid.UUID, status Status) (Appointment, error) {
	if !status.Valid() {
		return Appointment{}, NewValidationError("invalid status %q", string(status))
	}

	var appt Appointment
	err := s.store.InTx(ctx, ReadWrite, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockProvider(ctx, providerID); err != nil {
			return err
		}
		current, err := tx.GetAppointment(ctx, providerID, id)
		if err != nil {
			return err
		}
		if current.Status == status {
			appt = current
			return nil
		}
		if !current.Status.CanTransitionTo(status) {
			return NewValidationError("cannot move appointment from %s to %s", current.Status, status)
		}

		if status.Blocking() {
			others, err := tx.AppointmentsOverlapping(ctx, providerID, current.Interval(), StatusScheduled)
			if err != nil {
				return err
			}
			for _, o := range others {
				if o.ID != current.ID {
					return NewConflictError("slot already booked")
				}
			}
		}

		now := s.Now()
		if err := tx.SetAppointmentStatus(ctx, providerID, id, status, now); err != nil {
			return err
		}
		previous := current.Status
		appt = current
		appt.Status = status
		appt.UpdatedAt = now

		evt, err := newAppointmentEvent(EventAppointmentStatusChanged, appt, previous, now)
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
