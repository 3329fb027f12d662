package app

import (
	"time"

	"clinic-scheduler/internal/scheduling"
)

type windowRequest struct {
	StartAt  string `json:"start_at" binding:"required"`
	EndAt    string `json:"end_at" binding:"required"`
	IsActive *bool  `json:"is_active"`
}

type bookingRequest struct {
	StartAt       string  `json:"start_at" binding:"required"`
	EndAt         string  `json:"end_at" binding:"required"`
	RequesterName string  `json:"requester_name"`
	Note          *string `json:"note"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CalendarEvent is a busy block read from the provider's Google Calendar.
type CalendarEvent struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Status  string    `json:"status"`
}

func (e CalendarEvent) Interval() scheduling.Interval {
	return scheduling.NewInterval(e.StartAt, e.EndAt)
}

type windowConflicts struct {
	Window scheduling.AvailabilityWindow `json:"window"`
	Events []CalendarEvent               `json:"events"`
}

func (r windowRequest) input() (scheduling.WindowInput, error) {
	start, err := parseTimeField("start_at", r.StartAt)
	if err != nil {
		return scheduling.WindowInput{}, err
	}
	end, err := parseTimeField("end_at", r.EndAt)
	if err != nil {
		return scheduling.WindowInput{}, err
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return scheduling.WindowInput{StartAt: start, EndAt: end, Active: active}, nil
}

func (r bookingRequest) request() (scheduling.BookingRequest, error) {
	start, err := parseTimeField("start_at", r.StartAt)
	if err != nil {
		return scheduling.BookingRequest{}, err
	}
	end, err := parseTimeField("end_at", r.EndAt)
	if err != nil {
		return scheduling.BookingRequest{}, err
	}
	return scheduling.BookingRequest{
		StartAt:       start,
		EndAt:         end,
		RequesterName: r.RequesterName,
		Note:          r.Note,
	}, nil
}

func parseTimeField(name, raw string) (time.Time, error) {
	t, err := scheduling.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, scheduling.NewValidationError("%s: %v", name, err)
	}
	return t, nil
}
