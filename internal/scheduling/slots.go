package scheduling

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// EnumerateSlots walks each window, clipped to query, in steps of step and
// yields every [cursor, cursor+step) that fits before the clipped end, starts
// strictly after now and does not intersect a busy interval.
//
// Windows are visited in the given order. Slots are not de-duplicated across
// windows; active windows never overlap, so duplicates cannot arise from a
// consistent store.
func EnumerateSlots(windows []AvailabilityWindow, busy []Interval, query Interval, step time.Duration, now time.Time) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if step <= 0 || !query.Valid() {
			return
		}
		for _, w := range windows {
			clipped := w.Interval().Clip(query)
			for cursor := clipped.Start; !cursor.Add(step).After(clipped.End); cursor = cursor.Add(step) {
				candidate := Interval{Start: cursor, End: cursor.Add(step)}
				if !candidate.Start.After(now) {
					continue
				}
				if OverlapsAny(candidate, busy) {
					continue
				}
				if !yield(Slot{StartAt: candidate.Start, EndAt: candidate.End}) {
					return
				}
			}
		}
	}
}

// FreeSlots reads active availability and scheduled appointments for the
// query window from one snapshot and returns the free grid slots. The
// sequence can be ranged over any number of times; "now" is taken at the
// start of each walk.
func (s *Service) FreeSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) (iter.Seq[Slot], error) {
	query := NewInterval(from, to)
	if !query.Valid() {
		return nil, NewValidationError("'to' must be after 'from'")
	}

	var (
		provider Provider
		windows  []AvailabilityWindow
		busy     []Interval
	)
	err := s.store.InTx(ctx, ReadOnly, func(ctx context.Context, tx Tx) error {
		var err error
		if provider, err = tx.LockProvider(ctx, providerID); err != nil {
			return err
		}
		if windows, err = tx.ActiveWindowsOverlapping(ctx, providerID, query); err != nil {
			return err
		}
		booked, err := tx.AppointmentsOverlapping(ctx, providerID, query, StatusScheduled)
		if err != nil {
			return err
		}
		busy = make([]Interval, 0, len(booked))
		for _, a := range booked {
			busy = append(busy, a.Interval())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func(yield func(Slot) bool) {
		for slot := range EnumerateSlots(windows, busy, query, provider.SlotDuration, s.Now()) {
			if !yield(slot) {
				return
			}
		}
	}, nil
}
