package shell

import (
	"time"

	"github.com/google/uuid"
)

// ReservationReady tells a member that a copy is waiting for them at the desk.
// Handlers collect these inside a transaction and hand them to a notifier after commit.
type ReservationReady struct {
	ReservationID uuid.UUID
	MemberID      uuid.UUID
	MemberEmail   string
	MemberName    string
	BookID        uuid.UUID
	BookTitle     string
	CopyID        uuid.UUID
	PickupBy      time.Time
}
