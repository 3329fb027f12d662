package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-scheduler/internal/scheduling"
)

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// App holds everything the HTTP handlers need. The service operates on a
// single provider, resolved at startup.
type App struct {
	Service    *scheduling.Service
	Retrier    *scheduling.Retrier
	ProviderID uuid.UUID
	Logger     zerolog.Logger

	Calendar       *GoogleCalendarConfig
	CalendarEvents EventSource

	Checks    []ReadyCheck
	PoolStats func() any
}
