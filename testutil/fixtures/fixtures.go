package fixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// FakeClock is the reference instant for engine tests.
var FakeClock = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

// Days returns d whole days.
func Days(d int) time.Duration {
	return time.Duration(d) * 24 * time.Hour
}

// Write runs fn in its own transaction and fails the test on error.
func Write(t *testing.T, store circulation.Store, fn circulation.TxFunc) {
	t.Helper()

	require.NoError(t, store.WithinTx(context.Background(), fn))
}

// Read runs fn in its own transaction and returns its result, failing the test on error.
func Read[T any](t *testing.T, store circulation.Store, fn func(ctx context.Context, tx circulation.Tx) (T, error)) T {
	t.Helper()

	var result T

	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		var err error
		result, err = fn(ctx, tx)

		return err
	}))

	return result
}

// GivenMember stores a member without a membership type and a zero balance.
func GivenMember(t *testing.T, store circulation.Store, name string) circulation.Member {
	t.Helper()

	member := circulation.Member{
		ID:      uuid.New(),
		Email:   fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Name:    name,
		Balance: decimal.Zero,
	}

	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		return tx.SaveMember(ctx, member)
	})

	return member
}

// GivenMemberWithType stores a member bound to a new membership type.
func GivenMemberWithType(t *testing.T, store circulation.Store, name string, maxBooks, loanDays int) circulation.Member {
	t.Helper()

	membershipType := circulation.MembershipType{ID: uuid.New(), Name: name + "-plan", MaxBooks: maxBooks, LoanDays: loanDays}
	member := GivenMember(t, store, name)
	member.MembershipTypeID = &membershipType.ID

	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		if err := tx.SaveMembershipType(ctx, membershipType); err != nil {
			return err
		}

		return tx.SaveMember(ctx, member)
	})

	return member
}

// GivenBook stores a book with the given number of AVAILABLE copies.
// Barcodes are "<title>-1", "<title>-2", ... so they sort in creation order.
func GivenBook(t *testing.T, store circulation.Store, title string, copies int) (circulation.Book, []circulation.BookCopy) {
	t.Helper()

	book := circulation.Book{ID: uuid.New(), Title: title}
	bookCopies := make([]circulation.BookCopy, 0, copies)

	for i := 1; i <= copies; i++ {
		bookCopies = append(bookCopies, circulation.BookCopy{
			ID:        uuid.New(),
			BookID:    book.ID,
			Barcode:   fmt.Sprintf("%s-%s-%d", title, book.ID.String()[:4], i),
			Status:    circulation.CopyAvailable,
			CreatedAt: FakeClock,
		})
	}

	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		if err := tx.SaveBook(ctx, book); err != nil {
			return err
		}

		for _, bookCopy := range bookCopies {
			if err := tx.InsertCopy(ctx, bookCopy); err != nil {
				return err
			}
		}

		return nil
	})

	return book, bookCopies
}

// Copy reloads a copy.
func Copy(t *testing.T, store circulation.Store, copyID uuid.UUID) circulation.BookCopy {
	t.Helper()

	return Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.BookCopy, error) {
		return tx.FindCopy(ctx, copyID)
	})
}

// Member reloads a member.
func Member(t *testing.T, store circulation.Store, memberID uuid.UUID) circulation.Member {
	t.Helper()

	return Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Member, error) {
		return tx.FindMember(ctx, memberID)
	})
}

// Loan reloads a loan.
func Loan(t *testing.T, store circulation.Store, loanID uuid.UUID) circulation.Loan {
	t.Helper()

	return Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Loan, error) {
		return tx.FindLoan(ctx, loanID)
	})
}

// Reservation reloads a reservation.
func Reservation(t *testing.T, store circulation.Store, reservationID uuid.UUID) circulation.Reservation {
	t.Helper()

	return Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Reservation, error) {
		return tx.FindReservation(ctx, reservationID)
	})
}

// FineForLoan reloads the fine of a loan, if any.
func FineForLoan(t *testing.T, store circulation.Store, loanID uuid.UUID) (circulation.Fine, bool) {
	t.Helper()

	var (
		fine  circulation.Fine
		found bool
	)

	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		var err error
		fine, found, err = tx.LockFineByLoan(ctx, loanID)

		return err
	})

	return fine, found
}

// UnpaidTotal sums the member's UNPAID fines.
func UnpaidTotal(t *testing.T, store circulation.Store, memberID uuid.UUID) decimal.Decimal {
	t.Helper()

	unpaid := circulation.FineUnpaid
	fines := Read(t, store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Fine, error) {
		return tx.ListFines(ctx, circulation.FineFilter{MemberID: &memberID, Status: &unpaid})
	})

	total := decimal.Zero
	for _, fine := range fines {
		total = total.Add(fine.Amount)
	}

	return total
}

// GivenActiveLoan stores an ACTIVE loan of bookCopy to member, loaned at loanDate for loanDays,
// and flips the copy to LOANED.
func GivenActiveLoan(
	t *testing.T,
	store circulation.Store,
	member circulation.Member,
	bookCopy circulation.BookCopy,
	loanDate time.Time,
	loanDays int,
) circulation.Loan {
	t.Helper()

	loan := circulation.Loan{
		ID:       uuid.New(),
		CopyID:   bookCopy.ID,
		BookID:   bookCopy.BookID,
		MemberID: member.ID,
		Status:   circulation.LoanActive,
		LoanDate: circulation.ToTimestamp(loanDate),
		DueDate:  circulation.ToTimestamp(loanDate.Add(Days(loanDays))),
	}

	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		if err := tx.CompareAndSetCopyStatus(ctx, bookCopy.ID, circulation.CopyAvailable, circulation.CopyLoaned); err != nil {
			return err
		}

		return tx.InsertLoan(ctx, loan)
	})

	return loan
}
