package scheduling

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start_at"`
	End   time.Time `json:"end_at"`
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: Canonical(start), End: Canonical(end)}
}

// Valid reports whether End is strictly after Start.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Overlaps uses the half-open test, so touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Clip narrows i to the part that lies inside bounds. The result may be empty.
func (i Interval) Clip(bounds Interval) Interval {
	out := i
	if bounds.Start.After(out.Start) {
		out.Start = bounds.Start
	}
	if bounds.End.Before(out.End) {
		out.End = bounds.End
	}
	return out
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// OverlapsAny reports whether iv intersects any interval in busy.
func OverlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}
