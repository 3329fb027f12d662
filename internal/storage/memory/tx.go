package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"clinic-scheduler/internal/scheduling"
)

type tx struct {
	st            *state
	readOnly      bool
	discardEvents bool
}

func byWindowStart(a, b scheduling.AvailabilityWindow) int {
	return a.StartAt.Compare(b.StartAt)
}

func byAppointmentStart(a, b scheduling.Appointment) int {
	return a.StartAt.Compare(b.StartAt)
}

func (t *tx) LockProvider(_ context.Context, providerID uuid.UUID) (scheduling.Provider, error) {
	p, ok := t.st.providers[providerID]
	if !ok {
		return scheduling.Provider{}, &scheduling.NotFoundError{Entity: "provider", ID: providerID.String()}
	}
	return p, nil
}

func (t *tx) ListWindows(_ context.Context, providerID uuid.UUID) ([]scheduling.AvailabilityWindow, error) {
	var out []scheduling.AvailabilityWindow
	for _, w := range t.st.windows {
		if w.ProviderID == providerID {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, byWindowStart)
	return out, nil
}

func (t *tx) GetWindow(_ context.Context, providerID, id uuid.UUID) (scheduling.AvailabilityWindow, error) {
	w, ok := t.st.windows[id]
	if !ok || w.ProviderID != providerID {
		return scheduling.AvailabilityWindow{}, &scheduling.NotFoundError{Entity: "availability", ID: id.String()}
	}
	return w, nil
}

func (t *tx) ActiveWindowsOverlapping(_ context.Context, providerID uuid.UUID, iv scheduling.Interval) ([]scheduling.AvailabilityWindow, error) {
	var out []scheduling.AvailabilityWindow
	for _, w := range t.st.windows {
		if w.ProviderID == providerID && w.Active && w.Interval().Overlaps(iv) {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, byWindowStart)
	return out, nil
}

func (t *tx) InsertWindow(_ context.Context, w scheduling.AvailabilityWindow) error {
	if t.readOnly {
		return errReadOnly
	}
	t.st.windows[w.ID] = w
	return nil
}

func (t *tx) UpdateWindow(ctx context.Context, w scheduling.AvailabilityWindow) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.GetWindow(ctx, w.ProviderID, w.ID); err != nil {
		return err
	}
	t.st.windows[w.ID] = w
	return nil
}

func (t *tx) DeleteWindow(ctx context.Context, providerID, id uuid.UUID) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.GetWindow(ctx, providerID, id); err != nil {
		return err
	}
	delete(t.st.windows, id)
	return nil
}

func (t *tx) ListAppointments(_ context.Context, providerID uuid.UUID, filter scheduling.StatusFilter) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	for _, a := range t.st.appointments {
		if a.ProviderID == providerID && filter.Match(a.Status) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, byAppointmentStart)
	return out, nil
}

func (t *tx) GetAppointment(_ context.Context, providerID, id uuid.UUID) (scheduling.Appointment, error) {
	a, ok := t.st.appointments[id]
	if !ok || a.ProviderID != providerID {
		return scheduling.Appointment{}, &scheduling.NotFoundError{Entity: "appointment", ID: id.String()}
	}
	return a, nil
}

func (t *tx) AppointmentsOverlapping(_ context.Context, providerID uuid.UUID, iv scheduling.Interval, statuses ...scheduling.Status) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	for _, a := range t.st.appointments {
		if a.ProviderID != providerID || !slices.Contains(statuses, a.Status) {
			continue
		}
		if a.Interval().Overlaps(iv) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, byAppointmentStart)
	return out, nil
}

func (t *tx) InsertAppointment(_ context.Context, a scheduling.Appointment) error {
	if t.readOnly {
		return errReadOnly
	}
	t.st.appointments[a.ID] = a
	return nil
}

func (t *tx) SetAppointmentStatus(ctx context.Context, providerID, id uuid.UUID, status scheduling.Status, updatedAt time.Time) error {
	if t.readOnly {
		return errReadOnly
	}
	a, err := t.GetAppointment(ctx, providerID, id)
	if err != nil {
		return err
	}
	a.Status = status
	a.UpdatedAt = updatedAt
	t.st.appointments[id] = a
	return nil
}

func (t *tx) RecordEvent(_ context.Context, e scheduling.Event) error {
	if t.readOnly {
		return errReadOnly
	}
	if t.discardEvents {
		return nil
	}
	t.st.outbox = append(t.st.outbox, e)
	return nil
}
