package loanledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/copyregistry"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/reservationqueue"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

// Selector names the copy to borrow. The first non-empty field wins:
// CopyID, then Barcode, then BookID (the ledger picks a copy of the book).
type Selector struct {
	CopyID  *uuid.UUID
	Barcode string
	BookID  *uuid.UUID
}

// Ledger is a transaction-scoped orchestrator over copies, reservations, loans and fines.
type Ledger struct {
	tx     circulation.Tx
	policy Policy
	copies copyregistry.Registry
	queue  reservationqueue.Queue
	fines  fineledger.Ledger
}

// New binds a Ledger to a unit of work.
func New(tx circulation.Tx, policy Policy) Ledger {
	policy = policy.normalized()

	return Ledger{
		tx:     tx,
		policy: policy,
		copies: copyregistry.New(tx),
		queue:  reservationqueue.New(tx, policy.PickupWindow),
		fines:  fineledger.New(tx, policy.finePolicy()),
	}
}

// Borrow lends the selected copy to the member and returns the new loan together with the
// notices of any copy the borrow released to another member.
func (l Ledger) Borrow(
	ctx context.Context,
	memberID uuid.UUID,
	selector Selector,
	now time.Time,
) (circulation.Loan, []shell.ReservationReady, error) {
	now = circulation.ToTimestamp(now)

	member, err := l.tx.LockMember(ctx, memberID)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	terms, err := l.termsOf(ctx, member)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	activeLoans, err := l.tx.CountActiveLoans(ctx, memberID)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	if err = DecideEligibility(member, activeLoans, terms); err != nil {
		return circulation.Loan{}, nil, err
	}

	bookCopy, err := l.resolveCopy(ctx, memberID, selector)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	ready, err := l.readyReservation(ctx, bookCopy.BookID, memberID)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	head, hasHead, err := l.queue.FirstPending(ctx, bookCopy.BookID)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	var headRef *circulation.Reservation
	if hasHead {
		headRef = &head
	}

	claim, err := DecideClaim(bookCopy, memberID, ready, headRef)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	var notices []shell.ReservationReady

	if claim.Fulfill != nil {
		if _, err = l.queue.Fulfill(ctx, *claim.Fulfill); err != nil {
			return circulation.Loan{}, nil, err
		}

		if claim.ReleaseHeldCopy {
			if notices, err = l.releaseHeldCopy(ctx, *claim.Fulfill.HeldCopyID, now); err != nil {
				return circulation.Loan{}, nil, err
			}
		}
	}

	if err = l.copies.CompareAndSetStatus(ctx, bookCopy.ID, bookCopy.Status, circulation.CopyLoaned); err != nil {
		return circulation.Loan{}, nil, err
	}

	loan := circulation.Loan{
		ID:       uuid.New(),
		CopyID:   bookCopy.ID,
		BookID:   bookCopy.BookID,
		MemberID: memberID,
		Status:   circulation.LoanActive,
		LoanDate: now,
		DueDate:  now.Add(time.Duration(terms.LoanDays) * 24 * time.Hour),
	}

	if err = l.tx.InsertLoan(ctx, loan); err != nil {
		return circulation.Loan{}, nil, err
	}

	return loan, notices, nil
}

// Return closes an ACTIVE loan, hands the copy to the head of the queue or makes it
// AVAILABLE, and charges the loan's final fine.
func (l Ledger) Return(ctx context.Context, loanID uuid.UUID, now time.Time) (circulation.Loan, []shell.ReservationReady, error) {
	now = circulation.ToTimestamp(now)

	loan, err := l.tx.FindLoan(ctx, loanID)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	if loan.Status == circulation.LoanReturned {
		return circulation.Loan{}, nil, circulation.ErrLoanAlreadyReturned
	}

	bookCopy, err := l.copies.Find(ctx, loan.CopyID)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	notices, err := l.handOff(ctx, bookCopy, now)
	if err != nil {
		return circulation.Loan{}, nil, err
	}

	if err = l.tx.CloseLoan(ctx, loan.ID, now); err != nil {
		return circulation.Loan{}, nil, err
	}

	loan.Status = circulation.LoanReturned
	loan.ReturnDate = &now

	if _, _, err = l.fines.Recompute(ctx, loan, now); err != nil {
		return circulation.Loan{}, nil, err
	}

	return loan, notices, nil
}

// PlaceReservation appends the member to the book's queue.
func (l Ledger) PlaceReservation(ctx context.Context, bookID, memberID uuid.UUID, now time.Time) (circulation.Reservation, error) {
	return l.queue.Place(ctx, bookID, memberID, now)
}

// CancelReservation deletes an open reservation. A copy it held is handed on.
func (l Ledger) CancelReservation(
	ctx context.Context,
	reservationID uuid.UUID,
	now time.Time,
) (circulation.Reservation, []shell.ReservationReady, error) {
	cancelled, err := l.queue.Cancel(ctx, reservationID)
	if err != nil {
		return circulation.Reservation{}, nil, err
	}

	if cancelled.Status != circulation.ReservationReadyForPickup || cancelled.HeldCopyID == nil {
		return cancelled, nil, nil
	}

	notices, err := l.releaseHeldCopy(ctx, *cancelled.HeldCopyID, circulation.ToTimestamp(now))
	if err != nil {
		return circulation.Reservation{}, nil, err
	}

	return cancelled, notices, nil
}

// QueuePosition returns the member's 1-based rank among the book's PENDING reservations, or 0.
func (l Ledger) QueuePosition(ctx context.Context, bookID, memberID uuid.UUID) (int, error) {
	return l.queue.QueuePosition(ctx, bookID, memberID)
}

// ExpireReadyReservation expires one READY_FOR_PICKUP reservation whose pickup window closed
// before now and hands its copy on. It reports false, and changes nothing, when the reservation
// was collected, cancelled or is not due anymore.
func (l Ledger) ExpireReadyReservation(
	ctx context.Context,
	reservationID uuid.UUID,
	now time.Time,
) (circulation.Reservation, []shell.ReservationReady, bool, error) {
	now = circulation.ToTimestamp(now)

	reservation, err := l.queue.Find(ctx, reservationID)
	if err != nil {
		return circulation.Reservation{}, nil, false, err
	}

	if reservation.Status != circulation.ReservationReadyForPickup ||
		reservation.ExpiresAt == nil ||
		!reservation.ExpiresAt.Before(now) {
		return reservation, nil, false, nil
	}

	expired, err := l.queue.Expire(ctx, reservation)
	if err != nil {
		return circulation.Reservation{}, nil, false, err
	}

	if reservation.HeldCopyID == nil {
		return expired, nil, true, nil
	}

	notices, err := l.releaseHeldCopy(ctx, *reservation.HeldCopyID, now)
	if err != nil {
		return circulation.Reservation{}, nil, false, err
	}

	return expired, notices, true, nil
}

func (l Ledger) termsOf(ctx context.Context, member circulation.Member) (Terms, error) {
	if member.MembershipTypeID == nil {
		return TermsFor(nil, l.policy), nil
	}

	membershipType, err := l.tx.FindMembershipType(ctx, *member.MembershipTypeID)
	if err != nil {
		return Terms{}, err
	}

	return TermsFor(&membershipType, l.policy), nil
}

func (l Ledger) resolveCopy(ctx context.Context, memberID uuid.UUID, selector Selector) (circulation.BookCopy, error) {
	switch {
	case selector.CopyID != nil:
		return l.copies.Find(ctx, *selector.CopyID)

	case copyregistry.NormalizeBarcode(selector.Barcode) != "":
		return l.copies.FindByBarcode(ctx, selector.Barcode)

	case selector.BookID != nil:
		if _, err := l.tx.FindBook(ctx, *selector.BookID); err != nil {
			return circulation.BookCopy{}, err
		}

		ready, err := l.readyReservation(ctx, *selector.BookID, memberID)
		if err != nil {
			return circulation.BookCopy{}, err
		}

		copies, err := l.copies.ListByBook(ctx, *selector.BookID)
		if err != nil {
			return circulation.BookCopy{}, err
		}

		return PickCopy(copies, ready)

	default:
		return circulation.BookCopy{}, circulation.ErrCopySelectorMissing
	}
}

func (l Ledger) readyReservation(ctx context.Context, bookID, memberID uuid.UUID) (*circulation.Reservation, error) {
	ready, found, err := l.queue.ReadyFor(ctx, bookID, memberID)
	if err != nil || !found {
		return nil, err
	}

	return &ready, nil
}

// releaseHeldCopy hands on a copy that a closed reservation was holding.
func (l Ledger) releaseHeldCopy(ctx context.Context, copyID uuid.UUID, now time.Time) ([]shell.ReservationReady, error) {
	bookCopy, err := l.copies.Find(ctx, copyID)
	if err != nil {
		return nil, err
	}

	return l.handOff(ctx, bookCopy, now)
}

// handOff moves a copy that just became free to the head of its book's queue, or makes it
// AVAILABLE when nobody is waiting. The copy's status is compare-and-set from what was read.
func (l Ledger) handOff(ctx context.Context, bookCopy circulation.BookCopy, now time.Time) ([]shell.ReservationReady, error) {
	head, found, err := l.queue.FirstPending(ctx, bookCopy.BookID)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, l.copies.CompareAndSetStatus(ctx, bookCopy.ID, bookCopy.Status, circulation.CopyAvailable)
	}

	if err = l.copies.CompareAndSetStatus(ctx, bookCopy.ID, bookCopy.Status, circulation.CopyReserved); err != nil {
		return nil, err
	}

	promoted, err := l.queue.Promote(ctx, head, bookCopy.ID, now)
	if err != nil {
		return nil, err
	}

	notice, err := l.noticeFor(ctx, promoted)
	if err != nil {
		return nil, err
	}

	return []shell.ReservationReady{notice}, nil
}

func (l Ledger) noticeFor(ctx context.Context, reservation circulation.Reservation) (shell.ReservationReady, error) {
	member, err := l.tx.FindMember(ctx, reservation.MemberID)
	if err != nil {
		return shell.ReservationReady{}, err
	}

	book, err := l.tx.FindBook(ctx, reservation.BookID)
	if err != nil {
		return shell.ReservationReady{}, err
	}

	return shell.ReservationReady{
		ReservationID: reservation.ID,
		MemberID:      member.ID,
		MemberEmail:   member.Email,
		MemberName:    member.Name,
		BookID:        book.ID,
		BookTitle:     book.Title,
		CopyID:        *reservation.HeldCopyID,
		PickupBy:      *reservation.ExpiresAt,
	}, nil
}
