package loanledger

import (
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// Terms are the borrowing limits that apply to one member.
type Terms struct {
	MaxBooks int
	LoanDays int
}

// TermsFor returns the membership type's limits, or the policy defaults for members without one.
func TermsFor(membershipType *circulation.MembershipType, policy Policy) Terms {
	policy = policy.normalized()

	if membershipType == nil {
		return Terms{MaxBooks: policy.MaxBooks, LoanDays: policy.LoanDays}
	}

	return Terms{MaxBooks: membershipType.MaxBooks, LoanDays: membershipType.LoanDays}
}

// DecideEligibility says whether a member may borrow at all.
//
// Business Rules:
//
//	GIVEN: a member, the member's number of ACTIVE loans and the member's terms
//	WHEN: the member borrows a copy
//	ERROR: "member has outstanding fines" if the balance is positive
//	ERROR: "member has reached the borrowing limit" if ACTIVE loans reach MaxBooks
func DecideEligibility(member circulation.Member, activeLoans int, terms Terms) error {
	if member.Balance.IsPositive() {
		return circulation.ErrOutstandingFines
	}

	if activeLoans >= terms.MaxBooks {
		return circulation.ErrBorrowLimitReached
	}

	return nil
}

// PickCopy chooses a copy of a book for a borrow by book.
// The copy held for the member's READY reservation wins, then the first AVAILABLE copy.
func PickCopy(copies []circulation.BookCopy, ready *circulation.Reservation) (circulation.BookCopy, error) {
	if ready != nil {
		for _, bookCopy := range copies {
			if ready.HoldsCopy(bookCopy.ID) && bookCopy.Status == circulation.CopyReserved {
				return bookCopy, nil
			}
		}
	}

	for _, bookCopy := range copies {
		if bookCopy.Status == circulation.CopyAvailable {
			return bookCopy, nil
		}
	}

	return circulation.BookCopy{}, circulation.ErrNoAvailableCopies
}

// Claim is what borrowing a copy does to the reservation queue.
type Claim struct {
	// Fulfill is the member's reservation the loan completes, if any.
	Fulfill *circulation.Reservation

	// ReleaseHeldCopy means Fulfill held a different copy, which must be handed on.
	ReleaseHeldCopy bool
}

// DecideClaim says whether the member may take the copy, given the queue of its book.
//
// Business Rules:
//
//	GIVEN: a copy, the borrowing member, the member's READY reservation for the book
//	       and the head of the book's PENDING queue, if any
//	WHEN: the member borrows the copy
//	THEN: a RESERVED copy held for the member fulfills that reservation
//	THEN: an AVAILABLE copy taken by a READY member fulfills the reservation and frees the held copy
//	THEN: an AVAILABLE copy taken by the head of the queue fulfills the head's reservation
//	ERROR: "book copy is reserved for another member" if a RESERVED copy is held for someone else
//	ERROR: "there is a reservation queue for this book" if someone else heads the queue
//	ERROR: "book copy is not available" if the copy is LOANED
func DecideClaim(
	bookCopy circulation.BookCopy,
	memberID uuid.UUID,
	ready *circulation.Reservation,
	head *circulation.Reservation,
) (Claim, error) {
	switch bookCopy.Status {
	case circulation.CopyReserved:
		if ready != nil && ready.MemberID == memberID && ready.HoldsCopy(bookCopy.ID) {
			return Claim{Fulfill: ready}, nil
		}

		return Claim{}, circulation.ErrCopyReservedForOther

	case circulation.CopyAvailable:
		if ready != nil && ready.MemberID == memberID {
			return Claim{Fulfill: ready, ReleaseHeldCopy: ready.HeldCopyID != nil}, nil
		}

		if head == nil {
			return Claim{}, nil
		}

		if head.MemberID != memberID {
			return Claim{}, circulation.ErrReservationQueueExists
		}

		return Claim{Fulfill: head}, nil

	default:
		return Claim{}, circulation.ErrCopyNotAvailable
	}
}
