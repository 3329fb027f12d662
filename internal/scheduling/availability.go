package scheduling

import (
	"context"

	"github.com/google/uuid"
)

func (s *Service) validateWindow(in WindowInput) (Interval, error) {
	iv := NewInterval(in.StartAt, in.EndAt)
	if !iv.Valid() {
		return Interval{}, NewValidationError("end_at must be after start_at")
	}
	if !iv.Start.After(s.Now()) {
		return Interval{}, NewValidationError("availability must start in the future")
	}
	return iv, nil
}

// ListWindows returns every window of the provider ordered by start. Expired
// windows are included.
func (s *Service) ListWindows(ctx context.Context, providerID uuid.UUID) ([]AvailabilityWindow, error) {
	var out []AvailabilityWindow
	err := s.store.InTx(ctx, ReadOnly, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ListWindows(ctx, providerID)
		return err
	})
	return out, err
}

func (s *Service) CreateWindow(ctx context.Context, providerID uuid.UUID, in WindowInput) (AvailabilityWindow, error) {
	iv, err := s.validateWindow(in)
	if err != nil {
		return AvailabilityWindow{}, err
	}

	w := AvailabilityWindow{
		ID:         uuid.New(),
		ProviderID: providerID,
		StartAt:    iv.Start,
		EndAt:      iv.End,
		Active:     in.Active,
	}
	err = s.store.InTx(ctx, ReadWrite, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockProvider(ctx, providerID); err != nil {
			return err
		}
		overlapping, err := tx.ActiveWindowsOverlapping(ctx, providerID, iv)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return NewConflictError("availability overlaps with an existing window")
		}
		return tx.InsertWindow(ctx, w)
	})
	if err != nil {
		return AvailabilityWindow{}, err
	}
	return w, nil
}

// UpdateWindow replaces start, end and the active flag of a window. Shrinking
// or moving a window is refused while a non-canceled appointment that sits in
// the old range would fall outside the new one.
func (s *Service) UpdateWindow(ctx context.Context, providerID, id uuid.UUID, in WindowInput) (AvailabilityWindow, error) {
	iv, err := s.validateWindow(in)
	if err != nil {
		return AvailabilityWindow{}, err
	}

	var updated AvailabilityWindow
	err = s.store.InTx(ctx, ReadWrite, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockProvider(ctx, providerID); err != nil {
			return err
		}
		current, err := tx.GetWindow(ctx, providerID, id)
		if err != nil {
			return err
		}

		overlapping, err := tx.ActiveWindowsOverlapping(ctx, providerID, iv)
		if err != nil {
			return err
		}
		for _, o := range overlapping {
			if o.ID != id {
				return NewConflictError("availability overlaps with an existing window")
			}
		}

		pinned, err := tx.AppointmentsOverlapping(ctx, providerID, current.Interval(), nonCanceled...)
		if err != nil {
			return err
		}
		for _, a := range pinned {
			if !iv.Contains(a.Interval()) {
				return NewConflictError("existing appointments fall outside the updated availability")
			}
		}

		updated = current
		updated.StartAt = iv.Start
		updated.EndAt = iv.End
		updated.Active = in.Active
		return tx.UpdateWindow(ctx, updated)
	})
	if err != nil {
		return AvailabilityWindow{}, err
	}
	return updated, nil
}

// DeleteWindow removes a window without looking at appointments inside it.
func (s *Service) DeleteWindow(ctx context.Context, providerID, id uuid.UUID) error {
	return s.store.InTx(ctx, ReadWrite, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockProvider(ctx, providerID); err != nil {
			return err
		}
		return tx.DeleteWindow(ctx, providerID, id)
	})
}
