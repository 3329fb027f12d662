package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clinic-scheduler/internal/scheduling"
)

var errReadOnly = errors.New("write attempted in read-only transaction")

type tx struct {
	tx       pgx.Tx
	readOnly bool
}

const providerCols = `id, name, timezone, slot_minutes, created_at`

const windowCols = `id, provider_id, start_at, end_at, is_active`

const appointmentCols = `id, provider_id, start_at, end_at, requester_name, note, status, created_at, updated_at`

func scanProvider(row pgx.Row) (scheduling.Provider, error) {
	var (
		p       scheduling.Provider
		minutes int
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Timezone, &minutes, &p.CreatedAt); err != nil {
		return scheduling.Provider{}, err
	}
	p.SlotDuration = time.Duration(minutes) * time.Minute
	p.CreatedAt = scheduling.Canonical(p.CreatedAt)
	return p, nil
}

func scanWindow(row pgx.Row) (scheduling.AvailabilityWindow, error) {
	var w scheduling.AvailabilityWindow
	if err := row.Scan(&w.ID, &w.ProviderID, &w.StartAt, &w.EndAt, &w.Active); err != nil {
		return scheduling.AvailabilityWindow{}, err
	}
	w.StartAt = scheduling.Canonical(w.StartAt)
	w.EndAt = scheduling.Canonical(w.EndAt)
	return w, nil
}

func scanAppointment(row pgx.Row) (scheduling.Appointment, error) {
	var (
		a      scheduling.Appointment
		status string
	)
	if err := row.Scan(&a.ID, &a.ProviderID, &a.StartAt, &a.EndAt, &a.RequesterName, &a.Note,
		&status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return scheduling.Appointment{}, err
	}
	a.Status = scheduling.Status(status)
	a.StartAt = scheduling.Canonical(a.StartAt)
	a.EndAt = scheduling.Canonical(a.EndAt)
	a.CreatedAt = scheduling.Canonical(a.CreatedAt)
	a.UpdatedAt = scheduling.Canonical(a.UpdatedAt)
	return a, nil
}

func collectWindows(rows pgx.Rows) ([]scheduling.AvailabilityWindow, error) {
	defer rows.Close()
	var out []scheduling.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func collectAppointments(rows pgx.Rows) ([]scheduling.Appointment, error) {
	defer rows.Close()
	var out []scheduling.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *tx) LockProvider(ctx context.Context, providerID uuid.UUID) (scheduling.Provider, error) {
	q := `SELECT ` + providerCols + ` FROM providers WHERE id = $1`
	if !t.readOnly {
		q += ` FOR UPDATE`
	}
	p, err := scanProvider(t.tx.QueryRow(ctx, q, providerID))
	if IsNotFound(err) {
		return scheduling.Provider{}, &scheduling.NotFoundError{Entity: "provider", ID: providerID.String()}
	}
	return p, err
}

func (t *tx) ListWindows(ctx context.Context, providerID uuid.UUID) ([]scheduling.AvailabilityWindow, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+windowCols+`
		FROM availability_windows
		WHERE provider_id = $1
		ORDER BY start_at ASC
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return collectWindows(rows)
}

func (t *tx) GetWindow(ctx context.Context, providerID, id uuid.UUID) (scheduling.AvailabilityWindow, error) {
	w, err := scanWindow(t.tx.QueryRow(ctx, `
		SELECT `+windowCols+`
		FROM availability_windows
		WHERE id = $1 AND provider_id = $2
	`, id, providerID))
	if IsNotFound(err) {
		return scheduling.AvailabilityWindow{}, &scheduling.NotFoundError{Entity: "availability", ID: id.String()}
	}
	return w, err
}

func (t *tx) ActiveWindowsOverlapping(ctx context.Context, providerID uuid.UUID, iv scheduling.Interval) ([]scheduling.AvailabilityWindow, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+windowCols+`
		FROM availability_windows
		WHERE provider_id = $1
			AND is_active
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC
	`, providerID, iv.Start, iv.End)
	if err != nil {
		return nil, fmt.Errorf("query overlapping availability: %w", err)
	}
	return collectWindows(rows)
}

func (t *tx) InsertWindow(ctx context.Context, w scheduling.AvailabilityWindow) error {
	if t.readOnly {
		return errReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO availability_windows (id, provider_id, start_at, end_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, w.ID, w.ProviderID, w.StartAt, w.EndAt, w.Active)
	return err
}

func (t *tx) UpdateWindow(ctx context.Context, w scheduling.AvailabilityWindow) error {
	if t.readOnly {
		return errReadOnly
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE availability_windows
		SET start_at = $3, end_at = $4, is_active = $5
		WHERE id = $1 AND provider_id = $2
	`, w.ID, w.ProviderID, w.StartAt, w.EndAt, w.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &scheduling.NotFoundError{Entity: "availability", ID: w.ID.String()}
	}
	return nil
}

func (t *tx) DeleteWindow(ctx context.Context, providerID, id uuid.UUID) error {
	if t.readOnly {
		return errReadOnly
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1 AND provider_id = $2`, id, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &scheduling.NotFoundError{Entity: "availability", ID: id.String()}
	}
	return nil
}

func (t *tx) ListAppointments(ctx context.Context, providerID uuid.UUID, filter scheduling.StatusFilter) ([]scheduling.Appointment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.All() {
		rows, err = t.tx.Query(ctx, `
			SELECT `+appointmentCols+`
			FROM appointments
			WHERE provider_id = $1
			ORDER BY start_at ASC
		`, providerID)
	} else {
		rows, err = t.tx.Query(ctx, `
			SELECT `+appointmentCols+`
			FROM appointments
			WHERE provider_id = $1 AND status = $2
			ORDER BY start_at ASC
		`, providerID, string(filter.Status))
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (t *tx) GetAppointment(ctx context.Context, providerID, id uuid.UUID) (scheduling.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1 AND provider_id = $2
	`, id, providerID))
	if IsNotFound(err) {
		return scheduling.Appointment{}, &scheduling.NotFoundError{Entity: "appointment", ID: id.String()}
	}
	return a, err
}

func (t *tx) AppointmentsOverlapping(ctx context.Context, providerID uuid.UUID, iv scheduling.Interval, statuses ...scheduling.Status) ([]scheduling.Appointment, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE provider_id = $1
			AND status = ANY($2)
			AND start_at < $4
			AND end_at > $3
		ORDER BY start_at ASC
	`, providerID, names, iv.Start, iv.End)
	if err != nil {
		return nil, fmt.Errorf("query overlapping appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (t *tx) InsertAppointment(ctx context.Context, a scheduling.Appointment) error {
	if t.readOnly {
		return errReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, provider_id, start_at, end_at, requester_name, note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.ProviderID, a.StartAt, a.EndAt, a.RequesterName, a.Note, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return err
}

func (t *tx) SetAppointmentStatus(ctx context.Context, providerID, id uuid.UUID, status scheduling.Status, updatedAt time.Time) error {
	if t.readOnly {
		return errReadOnly
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = $4
		WHERE id = $1 AND provider_id = $2
	`, id, providerID, string(status), updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &scheduling.NotFoundError{Entity: "appointment", ID: id.String()}
	}
	return nil
}

func (t *tx) RecordEvent(ctx context.Context, e scheduling.Event) error {
	if t.readOnly {
		return errReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointment_events (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Type, e.AggregateID, []byte(e.Payload), e.CreatedAt)
	return err
}
