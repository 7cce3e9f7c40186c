package reservationqueue

import (
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// DecidePlacement says whether a member may join a book's queue.
//
// Business Rules:
//
//	GIVEN: the copies of a book and the member's open reservation for it, if any
//	WHEN: the member places a reservation
//	THEN: a PENDING reservation is appended to the queue
//	ERROR: "book is available" if any copy is AVAILABLE
//	ERROR: "member already has an open reservation" if the member is already queued or has a copy waiting
func DecidePlacement(copies []circulation.BookCopy, existing *circulation.Reservation) error {
	for _, bookCopy := range copies {
		if bookCopy.Status == circulation.CopyAvailable {
			return circulation.ErrBookIsAvailable
		}
	}

	if existing != nil && existing.Status.IsOpen() {
		return circulation.ErrDuplicateReservation
	}

	return nil
}

// RankOf returns the 1-based rank of memberID in a FIFO-ordered PENDING list, or 0 if absent.
func RankOf(pending []circulation.Reservation, memberID uuid.UUID) int {
	for i, reservation := range pending {
		if reservation.MemberID == memberID {
			return i + 1
		}
	}

	return 0
}
