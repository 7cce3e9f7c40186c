package spies

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

// NotifierSpy records reservation-ready notices and can be told to fail.
type NotifierSpy struct {
	mu      sync.Mutex
	notices []shell.ReservationReady
	err     error
}

// NewNotifierSpy creates a NotifierSpy that answers every call with err (nil for success).
func NewNotifierSpy(err error) *NotifierSpy {
	return &NotifierSpy{err: err}
}

// NotifyReservationReady records the notice.
func (s *NotifierSpy) NotifyReservationReady(_ context.Context, notice shell.ReservationReady) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notices = append(s.notices, notice)

	return s.err
}

// Notices returns a copy of all recorded notices.
func (s *NotifierSpy) Notices() []shell.ReservationReady {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]shell.ReservationReady(nil), s.notices...)
}
