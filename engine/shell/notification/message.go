package notification

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

// EventTypeReservationReady is the message type and the default routing key.
const EventTypeReservationReady = "reservation.ready"

// Message is the wire format of a reservation-ready notice.
type Message struct {
	EventType     string    `json:"event_type"`
	ReservationID uuid.UUID `json:"reservation_id"`
	MemberID      uuid.UUID `json:"member_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	BookID        uuid.UUID `json:"book_id"`
	BookTitle     string    `json:"book_title"`
	CopyID        uuid.UUID `json:"copy_id"`
	PickupBy      time.Time `json:"pickup_by"`
	Subject       string    `json:"subject"`
	Text          string    `json:"text"`
	SentAt        time.Time `json:"sent_at"`
}

// Compose turns a notice into the message members receive.
func Compose(notice shell.ReservationReady, now time.Time) Message {
	return Message{
		EventType:     EventTypeReservationReady,
		ReservationID: notice.ReservationID,
		MemberID:      notice.MemberID,
		Email:         notice.MemberEmail,
		Name:          notice.MemberName,
		BookID:        notice.BookID,
		BookTitle:     notice.BookTitle,
		CopyID:        notice.CopyID,
		PickupBy:      notice.PickupBy.UTC(),
		Subject:       "Book Reservation Ready",
		Text: fmt.Sprintf(
			"Hello %s, your reservation for '%s' is ready for pickup. Please collect it by %s (%s).",
			notice.MemberName,
			notice.BookTitle,
			notice.PickupBy.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
			humanize.RelTime(now, notice.PickupBy, "from now", "ago"),
		),
		SentAt: now.UTC(),
	}
}
