package memoryengine

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// memTx implements circulation.Tx on a private working copy of the state.
// Units of work are serialized, so the locking reads are plain reads.
type memTx struct {
	state *state
}

// === Copies ===

func (t *memTx) FindCopy(_ context.Context, copyID uuid.UUID) (circulation.BookCopy, error) {
	bookCopy, ok := t.state.copies[copyID]
	if !ok {
		return circulation.BookCopy{}, circulation.ErrCopyNotFound
	}

	return bookCopy, nil
}

func (t *memTx) FindCopyByBarcode(_ context.Context, barcode string) (circulation.BookCopy, error) {
	for _, bookCopy := range t.state.copies {
		if bookCopy.Barcode == barcode {
			return bookCopy, nil
		}
	}

	return circulation.BookCopy{}, circulation.ErrCopyNotFound
}

func (t *memTx) ListCopiesByBook(_ context.Context, bookID uuid.UUID) ([]circulation.BookCopy, error) {
	result := make([]circulation.BookCopy, 0)
	for _, bookCopy := range t.state.copies {
		if bookCopy.BookID == bookID {
			result = append(result, bookCopy)
		}
	}

	slices.SortFunc(result, func(a, b circulation.BookCopy) int {
		return cmp.Compare(a.Barcode, b.Barcode)
	})

	return result, nil
}

func (t *memTx) InsertCopy(_ context.Context, bookCopy circulation.BookCopy) error {
	if _, exists := t.state.copies[bookCopy.ID]; exists {
		return circulation.ErrConcurrencyConflict
	}

	for _, other := range t.state.copies {
		if other.Barcode == bookCopy.Barcode {
			return circulation.ErrConcurrencyConflict
		}
	}

	bookCopy.CreatedAt = circulation.ToTimestamp(bookCopy.CreatedAt)
	t.state.copies[bookCopy.ID] = bookCopy

	return nil
}

func (t *memTx) DeleteCopy(_ context.Context, copyID uuid.UUID) error {
	bookCopy, ok := t.state.copies[copyID]
	if !ok || bookCopy.Status != circulation.CopyAvailable {
		return circulation.ErrConcurrencyConflict
	}

	delete(t.state.copies, copyID)

	return nil
}

func (t *memTx) SetCopyStatus(_ context.Context, copyID uuid.UUID, status circulation.CopyStatus) error {
	bookCopy, ok := t.state.copies[copyID]
	if !ok {
		return circulation.ErrCopyNotFound
	}

	bookCopy.Status = status
	t.state.copies[copyID] = bookCopy

	return nil
}

func (t *memTx) CompareAndSetCopyStatus(_ context.Context, copyID uuid.UUID, from, to circulation.CopyStatus) error {
	bookCopy, ok := t.state.copies[copyID]
	if !ok || bookCopy.Status != from {
		return circulation.ErrConcurrencyConflict
	}

	bookCopy.Status = to
	t.state.copies[copyID] = bookCopy

	return nil
}

// === Reservations ===

func (t *memTx) InsertReservation(
	_ context.Context,
	reservation circulation.Reservation,
) (circulation.Reservation, error) {

	if _, exists := t.state.reservations[reservation.ID]; exists {
		return circulation.Reservation{}, circulation.ErrConcurrencyConflict
	}

	if reservation.Status.IsOpen() {
		for _, other := range t.state.reservations {
			if other.Status.IsOpen() && other.BookID == reservation.BookID && other.MemberID == reservation.MemberID {
				return circulation.Reservation{}, circulation.ErrConcurrencyConflict
			}
		}
	}

	t.state.nextPosition++
	reservation.Position = t.state.nextPosition
	reservation = storedReservation(reservation)
	t.state.reservations[reservation.ID] = reservation

	return storedReservation(reservation), nil
}

func (t *memTx) FindReservation(_ context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	reservation, ok := t.state.reservations[reservationID]
	if !ok {
		return circulation.Reservation{}, circulation.ErrReservationNotFound
	}

	return storedReservation(reservation), nil
}

func (t *memTx) ListPendingReservations(_ context.Context, bookID uuid.UUID) ([]circulation.Reservation, error) {
	result := make([]circulation.Reservation, 0)
	for _, reservation := range t.state.reservations {
		if reservation.BookID == bookID && reservation.Status == circulation.ReservationPending {
			result = append(result, storedReservation(reservation))
		}
	}

	slices.SortFunc(result, func(a, b circulation.Reservation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.Position, b.Position)
	})

	return result, nil
}

func (t *memTx) FindOpenReservation(
	_ context.Context,
	bookID, memberID uuid.UUID,
) (circulation.Reservation, bool, error) {

	for _, reservation := range t.state.reservations {
		if reservation.BookID == bookID && reservation.MemberID == memberID && reservation.Status.IsOpen() {
			return storedReservation(reservation), true, nil
		}
	}

	return circulation.Reservation{}, false, nil
}

func (t *memTx) ListReadyReservationsExpiredBy(_ context.Context, at time.Time) ([]circulation.Reservation, error) {
	result := make([]circulation.Reservation, 0)
	for _, reservation := range t.state.reservations {
		if reservation.Status == circulation.ReservationReadyForPickup &&
			reservation.ExpiresAt != nil &&
			reservation.ExpiresAt.Before(at) {

			result = append(result, storedReservation(reservation))
		}
	}

	slices.SortFunc(result, func(a, b circulation.Reservation) int {
		if c := a.ExpiresAt.Compare(*b.ExpiresAt); c != 0 {
			return c
		}

		return cmp.Compare(a.Position, b.Position)
	})

	return result, nil
}

func (t *memTx) UpdateReservation(
	_ context.Context,
	reservation circulation.Reservation,
	from circulation.ReservationStatus,
) error {

	stored, ok := t.state.reservations[reservation.ID]
	if !ok || stored.Status != from {
		return circulation.ErrConcurrencyConflict
	}

	if reservation.Status == circulation.ReservationReadyForPickup && reservation.HeldCopyID != nil {
		for id, other := range t.state.reservations {
			if id != reservation.ID && other.HoldsCopy(*reservation.HeldCopyID) {
				return circulation.ErrConcurrencyConflict
			}
		}
	}

	stored.Status = reservation.Status
	stored.HeldCopyID = reservation.HeldCopyID
	stored.ExpiresAt = reservation.ExpiresAt
	t.state.reservations[reservation.ID] = storedReservation(stored)

	return nil
}

func (t *memTx) DeleteReservation(_ context.Context, reservationID uuid.UUID) error {
	if _, ok := t.state.reservations[reservationID]; !ok {
		return circulation.ErrReservationNotFound
	}

	delete(t.state.reservations, reservationID)

	return nil
}

func storedReservation(r circulation.Reservation) circulation.Reservation {
	r.CreatedAt = circulation.ToTimestamp(r.CreatedAt)
	r.HeldCopyID = cloneUUID(r.HeldCopyID)
	r.ExpiresAt = cloneTime(r.ExpiresAt)

	return r
}

// === Loans ===

func (t *memTx) InsertLoan(_ context.Context, loan circulation.Loan) error {
	if _, exists := t.state.loans[loan.ID]; exists {
		return circulation.ErrConcurrencyConflict
	}

	if loan.Status == circulation.LoanActive {
		for _, other := range t.state.loans {
			if other.Status == circulation.LoanActive && other.CopyID == loan.CopyID {
				return circulation.ErrConcurrencyConflict
			}
		}
	}

	t.state.loans[loan.ID] = storedLoan(loan)

	return nil
}

func (t *memTx) FindLoan(_ context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	loan, ok := t.state.loans[loanID]
	if !ok {
		return circulation.Loan{}, circulation.ErrLoanNotFound
	}

	return storedLoan(loan), nil
}

func (t *memTx) CountActiveLoans(_ context.Context, memberID uuid.UUID) (int, error) {
	count := 0
	for _, loan := range t.state.loans {
		if loan.MemberID == memberID && loan.Status == circulation.LoanActive {
			count++
		}
	}

	return count, nil
}

func (t *memTx) ListLoans(_ context.Context, filter circulation.LoanFilter) ([]circulation.Loan, error) {
	result := make([]circulation.Loan, 0)
	for _, loan := range t.state.loans {
		if filter.MemberID != nil && loan.MemberID != *filter.MemberID {
			continue
		}

		if filter.Status != nil && loan.Status != *filter.Status {
			continue
		}

		if filter.DueBefore != nil && !loan.DueDate.Before(*filter.DueBefore) {
			continue
		}

		result = append(result, storedLoan(loan))
	}

	slices.SortFunc(result, func(a, b circulation.Loan) int {
		if c := a.LoanDate.Compare(b.LoanDate); c != 0 {
			return c
		}

		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	return result, nil
}

func (t *memTx) CloseLoan(_ context.Context, loanID uuid.UUID, returnDate time.Time) error {
	loan, ok := t.state.loans[loanID]
	if !ok || loan.Status != circulation.LoanActive {
		return circulation.ErrConcurrencyConflict
	}

	loan.Status = circulation.LoanReturned
	loan.ReturnDate = &returnDate
	t.state.loans[loanID] = storedLoan(loan)

	return nil
}

func storedLoan(l circulation.Loan) circulation.Loan {
	l.LoanDate = circulation.ToTimestamp(l.LoanDate)
	l.DueDate = circulation.ToTimestamp(l.DueDate)
	l.ReturnDate = cloneTime(l.ReturnDate)

	return l
}

// === Fines ===

func (t *memTx) FindFine(_ context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	fine, ok := t.state.fines[fineID]
	if !ok {
		return circulation.Fine{}, circulation.ErrFineNotFound
	}

	return fine, nil
}

func (t *memTx) LockFine(ctx context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	return t.FindFine(ctx, fineID)
}

func (t *memTx) LockFineByLoan(_ context.Context, loanID uuid.UUID) (circulation.Fine, bool, error) {
	for _, fine := range t.state.fines {
		if fine.LoanID == loanID {
			return fine, true, nil
		}
	}

	return circulation.Fine{}, false, nil
}

func (t *memTx) InsertFine(_ context.Context, fine circulation.Fine) error {
	if _, exists := t.state.fines[fine.ID]; exists {
		return circulation.ErrConcurrencyConflict
	}

	for _, other := range t.state.fines {
		if other.LoanID == fine.LoanID {
			return circulation.ErrConcurrencyConflict
		}
	}

	t.state.fines[fine.ID] = storedFine(fine)

	return nil
}

func (t *memTx) UpdateUnpaidFine(_ context.Context, fine circulation.Fine) error {
	stored, ok := t.state.fines[fine.ID]
	if !ok || stored.Status != circulation.FineUnpaid {
		return circulation.ErrConcurrencyConflict
	}

	stored.Amount = fine.Amount
	stored.Status = fine.Status
	stored.LastUpdated = fine.LastUpdated
	t.state.fines[fine.ID] = storedFine(stored)

	return nil
}

func (t *memTx) ListFines(_ context.Context, filter circulation.FineFilter) ([]circulation.Fine, error) {
	result := make([]circulation.Fine, 0)
	for _, fine := range t.state.fines {
		if filter.MemberID != nil && fine.MemberID != *filter.MemberID {
			continue
		}

		if filter.Status != nil && fine.Status != *filter.Status {
			continue
		}

		result = append(result, fine)
	}

	slices.SortFunc(result, func(a, b circulation.Fine) int {
		if c := a.FineDate.Compare(b.FineDate); c != 0 {
			return c
		}

		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	return result, nil
}

func storedFine(f circulation.Fine) circulation.Fine {
	f.Amount = circulation.ToMoney(f.Amount)
	f.FineDate = circulation.ToTimestamp(f.FineDate)
	f.LastUpdated = circulation.ToTimestamp(f.LastUpdated)

	return f
}

// === Members and catalog ===

func (t *memTx) FindMember(_ context.Context, memberID uuid.UUID) (circulation.Member, error) {
	member, ok := t.state.members[memberID]
	if !ok {
		return circulation.Member{}, circulation.ErrMemberNotFound
	}

	member.MembershipTypeID = cloneUUID(member.MembershipTypeID)

	return member, nil
}

func (t *memTx) LockMember(ctx context.Context, memberID uuid.UUID) (circulation.Member, error) {
	return t.FindMember(ctx, memberID)
}

func (t *memTx) FindMemberByEmail(ctx context.Context, email string) (circulation.Member, error) {
	for id, member := range t.state.members {
		if member.Email == email {
			return t.FindMember(ctx, id)
		}
	}

	return circulation.Member{}, circulation.ErrMemberNotFound
}

func (t *memTx) SaveMember(_ context.Context, member circulation.Member) error {
	for id, other := range t.state.members {
		if id != member.ID && other.Email == member.Email {
			return circulation.ErrConcurrencyConflict
		}
	}

	member.Balance = circulation.ToMoney(member.Balance)
	member.MembershipTypeID = cloneUUID(member.MembershipTypeID)
	t.state.members[member.ID] = member

	return nil
}

func (t *memTx) AdjustMemberBalance(_ context.Context, memberID uuid.UUID, delta decimal.Decimal) error {
	member, ok := t.state.members[memberID]
	if !ok {
		return circulation.ErrMemberNotFound
	}

	member.Balance = circulation.ToMoney(member.Balance.Add(delta))
	t.state.members[memberID] = member

	return nil
}

func (t *memTx) FindBook(_ context.Context, bookID uuid.UUID) (circulation.Book, error) {
	book, ok := t.state.books[bookID]
	if !ok {
		return circulation.Book{}, circulation.ErrBookNotFound
	}

	return book, nil
}

func (t *memTx) SaveBook(_ context.Context, book circulation.Book) error {
	t.state.books[book.ID] = book

	return nil
}

func (t *memTx) FindMembershipType(
	_ context.Context,
	membershipTypeID uuid.UUID,
) (circulation.MembershipType, error) {

	membershipType, ok := t.state.membershipTypes[membershipTypeID]
	if !ok {
		return circulation.MembershipType{}, circulation.ErrMembershipTypeNotFound
	}

	return membershipType, nil
}

func (t *memTx) SaveMembershipType(_ context.Context, membershipType circulation.MembershipType) error {
	t.state.membershipTypes[membershipType.ID] = membershipType

	return nil
}
