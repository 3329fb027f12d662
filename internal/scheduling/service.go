package scheduling

import (
	"time"
)

// Service implements availability management, slot enumeration, admission
// and the appointment lifecycle on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

type Option func(*Service)

// WithClock replaces the system clock. The returned instants are normalized
// before use.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current canonical instant.
func (s *Service) Now() time.Time {
	return Canonical(s.now())
}
