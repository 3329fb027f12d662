package scheduling

import "strings"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
	StatusCanceled  Status = "canceled"
)

// AllStatuses lists every recognised status in lifecycle order.
var AllStatuses = []Status{StatusScheduled, StatusCompleted, StatusNoShow, StatusCanceled}

// transitions is the lifecycle table. It is deliberately complete: any status
// may be set from any other, including a return to scheduled.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusScheduled, StatusCompleted, StatusNoShow, StatusCanceled},
	StatusCompleted: {StatusScheduled, StatusCompleted, StatusNoShow, StatusCanceled},
	StatusNoShow:    {StatusScheduled, StatusCompleted, StatusNoShow, StatusCanceled},
	StatusCanceled:  {StatusScheduled, StatusCompleted, StatusNoShow, StatusCanceled},
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", NewValidationError("invalid status %q", raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Blocking reports whether an appointment in this status holds its time band.
func (s Status) Blocking() bool {
	return s == StatusScheduled
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StatusFilter selects appointments by status. The zero value matches all.
type StatusFilter struct {
	Status Status
}

// ParseStatusFilter accepts "all", the empty string, or a status value.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "all" {
		return StatusFilter{}, nil
	}
	s, err := ParseStatus(raw)
	if err != nil {
		return StatusFilter{}, NewValidationError("invalid status filter %q", raw)
	}
	return StatusFilter{Status: s}, nil
}

func (f StatusFilter) All() bool { return f.Status == "" }

func (f StatusFilter) Match(s Status) bool {
	return f.All() || f.Status == s
}

// nonCanceled lists the statuses that still pin an appointment to its window
// when availability is edited.
var nonCanceled = []Status{StatusScheduled, StatusCompleted, StatusNoShow}
