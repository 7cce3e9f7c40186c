package reservationqueue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// DefaultPickupWindow is how long a copy stays held for a READY reservation.
const DefaultPickupWindow = 72 * time.Hour

// Repository is what the queue needs from a unit of work.
type Repository interface {
	circulation.ReservationRepository
	ListCopiesByBook(ctx context.Context, bookID uuid.UUID) ([]circulation.BookCopy, error)
	FindBook(ctx context.Context, bookID uuid.UUID) (circulation.Book, error)
	FindMember(ctx context.Context, memberID uuid.UUID) (circulation.Member, error)
}

// Queue is a transaction-scoped view of all reservation queues.
type Queue struct {
	repo         Repository
	pickupWindow time.Duration
}

// New binds a Queue to a unit of work. A non-positive pickupWindow means DefaultPickupWindow.
func New(repo Repository, pickupWindow time.Duration) Queue {
	if pickupWindow <= 0 {
		pickupWindow = DefaultPickupWindow
	}

	return Queue{repo: repo, pickupWindow: pickupWindow}
}

// Find loads one reservation.
func (q Queue) Find(ctx context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	return q.repo.FindReservation(ctx, reservationID)
}

// Place appends a PENDING reservation for the member to the book's queue.
func (q Queue) Place(ctx context.Context, bookID, memberID uuid.UUID, now time.Time) (circulation.Reservation, error) {
	if _, err := q.repo.FindBook(ctx, bookID); err != nil {
		return circulation.Reservation{}, err
	}

	if _, err := q.repo.FindMember(ctx, memberID); err != nil {
		return circulation.Reservation{}, err
	}

	copies, err := q.repo.ListCopiesByBook(ctx, bookID)
	if err != nil {
		return circulation.Reservation{}, err
	}

	open, hasOpen, err := q.repo.FindOpenReservation(ctx, bookID, memberID)
	if err != nil {
		return circulation.Reservation{}, err
	}

	var existing *circulation.Reservation
	if hasOpen {
		existing = &open
	}

	if err = DecidePlacement(copies, existing); err != nil {
		return circulation.Reservation{}, err
	}

	return q.repo.InsertReservation(ctx, circulation.Reservation{
		ID:        uuid.New(),
		BookID:    bookID,
		MemberID:  memberID,
		Status:    circulation.ReservationPending,
		CreatedAt: circulation.ToTimestamp(now),
	})
}

// FirstPending returns the book's oldest PENDING reservation, if any.
func (q Queue) FirstPending(ctx context.Context, bookID uuid.UUID) (circulation.Reservation, bool, error) {
	pending, err := q.repo.ListPendingReservations(ctx, bookID)
	if err != nil || len(pending) == 0 {
		return circulation.Reservation{}, false, err
	}

	return pending[0], true, nil
}

// ReadyFor returns the member's READY_FOR_PICKUP reservation for the book, if any.
func (q Queue) ReadyFor(ctx context.Context, bookID, memberID uuid.UUID) (circulation.Reservation, bool, error) {
	open, found, err := q.repo.FindOpenReservation(ctx, bookID, memberID)
	if err != nil || !found || open.Status != circulation.ReservationReadyForPickup {
		return circulation.Reservation{}, false, err
	}

	return open, true, nil
}

// Promote moves a PENDING reservation to READY_FOR_PICKUP, holding heldCopyID until now + pickup window.
// The caller is responsible for flipping the copy to RESERVED.
func (q Queue) Promote(ctx context.Context, reservation circulation.Reservation, heldCopyID uuid.UUID, now time.Time) (circulation.Reservation, error) {
	expiresAt := circulation.ToTimestamp(now.Add(q.pickupWindow))

	promoted := reservation
	promoted.Status = circulation.ReservationReadyForPickup
	promoted.HeldCopyID = &heldCopyID
	promoted.ExpiresAt = &expiresAt

	if err := q.repo.UpdateReservation(ctx, promoted, circulation.ReservationPending); err != nil {
		return circulation.Reservation{}, err
	}

	return promoted, nil
}

// Fulfill marks an open reservation as FULFILLED and releases its hold.
func (q Queue) Fulfill(ctx context.Context, reservation circulation.Reservation) (circulation.Reservation, error) {
	return q.close(ctx, reservation, circulation.ReservationFulfilled)
}

// Expire marks a READY_FOR_PICKUP reservation as EXPIRED and releases its hold.
// The caller decides what happens to the held copy.
func (q Queue) Expire(ctx context.Context, reservation circulation.Reservation) (circulation.Reservation, error) {
	if reservation.Status != circulation.ReservationReadyForPickup {
		return circulation.Reservation{}, circulation.ErrInvalidStatusTransition
	}

	return q.close(ctx, reservation, circulation.ReservationExpired)
}

// close moves an open reservation to a terminal status. ExpiresAt is kept for history.
func (q Queue) close(ctx context.Context, reservation circulation.Reservation, to circulation.ReservationStatus) (circulation.Reservation, error) {
	if !reservation.Status.IsOpen() {
		return circulation.Reservation{}, circulation.ErrReservationNotOpen
	}

	closed := reservation
	closed.Status = to
	closed.HeldCopyID = nil

	if err := q.repo.UpdateReservation(ctx, closed, reservation.Status); err != nil {
		return circulation.Reservation{}, err
	}

	return closed, nil
}

// Cancel deletes an open reservation and returns it as it was, so the caller can release a held copy.
func (q Queue) Cancel(ctx context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	reservation, err := q.repo.FindReservation(ctx, reservationID)
	if err != nil {
		return circulation.Reservation{}, err
	}

	if !reservation.Status.IsOpen() {
		return circulation.Reservation{}, circulation.ErrReservationNotOpen
	}

	if err = q.repo.DeleteReservation(ctx, reservationID); err != nil {
		return circulation.Reservation{}, err
	}

	return reservation, nil
}

// QueuePosition returns the member's 1-based rank among the book's PENDING reservations, or 0.
func (q Queue) QueuePosition(ctx context.Context, bookID, memberID uuid.UUID) (int, error) {
	pending, err := q.repo.ListPendingReservations(ctx, bookID)
	if err != nil {
		return 0, err
	}

	return RankOf(pending, memberID), nil
}

// ListExpiredReady returns READY_FOR_PICKUP reservations whose pickup window closed before now.
func (q Queue) ListExpiredReady(ctx context.Context, now time.Time) ([]circulation.Reservation, error) {
	return q.repo.ListReadyReservationsExpiredBy(ctx, circulation.ToTimestamp(now))
}
