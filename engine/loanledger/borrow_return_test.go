package loanledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/copyregistry"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	. "github.com/AntonStoeckl/library-circulation/testutil/fixtures" //nolint:revive
	"github.com/AntonStoeckl/library-circulation/testutil/spies"
)

func Test_BorrowHandler_Handle_Success_ByCopyID(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	book, copies := GivenBook(t, store, "Dune", 1)
	handler := loanledger.NewBorrowHandler(store)

	// act
	loan, result, err := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(member.ID, byCopy(copies[0].ID), FakeClock))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.RetryAttempts)
	assert.False(t, result.Idempotent)
	assert.Equal(t, circulation.LoanActive, loan.Status)
	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, FakeClock, loan.LoanDate)
	assert.Equal(t, FakeClock.Add(Days(14)), loan.DueDate)
	assert.Nil(t, loan.ReturnDate)
	assert.Equal(t, loan, Loan(t, store, loan.ID))
	assert.Equal(t, circulation.CopyLoaned, Copy(t, store, copies[0].ID).Status)
}

func Test_BorrowHandler_Handle_Success_ByBarcode(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 2)
	handler := loanledger.NewBorrowHandler(store)

	// act
	loan, _, err := handler.Handle(context.Background(),
		loanledger.BuildBorrowCommand(member.ID, loanledger.Selector{Barcode: copies[1].Barcode}, FakeClock))

	// assert
	require.NoError(t, err)
	assert.Equal(t, copies[1].ID, loan.CopyID)
}

func Test_BorrowHandler_Handle_Success_ByBook_PicksFirstAvailableCopy(t *testing.T) {
	// arrange
	store := newStore(t)
	ada := GivenMember(t, store, "ada")
	bob := GivenMember(t, store, "bob")
	book, copies := GivenBook(t, store, "Dune", 3)
	borrow(t, store, bob.ID, byCopy(copies[0].ID), FakeClock)

	// act
	loan := borrow(t, store, ada.ID, byBook(book.ID), FakeClock)

	// assert
	assert.Equal(t, copies[1].ID, loan.CopyID)
}

func Test_BorrowHandler_Handle_UsesMembershipTypeLoanPeriod(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMemberWithType(t, store, "ada", 2, 21)
	_, copies := GivenBook(t, store, "Dune", 1)

	// act
	loan := borrow(t, store, member.ID, byCopy(copies[0].ID), FakeClock)

	// assert
	assert.Equal(t, FakeClock.Add(Days(21)), loan.DueDate)
}

func Test_BorrowHandler_Handle_UsesPolicyDefaults(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	policy := loanledger.DefaultPolicy()
	policy.LoanDays = 7

	// act
	loan := borrow(t, store, member.ID, byCopy(copies[0].ID), FakeClock, loanledger.WithPolicy(policy))

	// assert
	assert.Equal(t, FakeClock.Add(Days(7)), loan.DueDate)
}

func Test_BorrowHandler_Handle_Error_WhenMemberHasOutstandingFines(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		return tx.AdjustMemberBalance(ctx, member.ID, decimal.RequireFromString("0.50"))
	})
	handler := loanledger.NewBorrowHandler(store)

	// act
	_, _, err := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(member.ID, byCopy(copies[0].ID), FakeClock))

	// assert
	assert.ErrorIs(t, err, circulation.ErrOutstandingFines)
	assert.Equal(t, circulation.CopyAvailable, Copy(t, store, copies[0].ID).Status)
}

func Test_BorrowHandler_Handle_Error_WhenBorrowLimitIsReached(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMemberWithType(t, store, "ada", 1, 14)
	book, _ := GivenBook(t, store, "Dune", 2)
	borrow(t, store, member.ID, byBook(book.ID), FakeClock)
	handler := loanledger.NewBorrowHandler(store)

	// act
	_, _, err := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(member.ID, byBook(book.ID), FakeClock))

	// assert
	assert.ErrorIs(t, err, circulation.ErrBorrowLimitReached)
}

func Test_BorrowHandler_Handle_Errors(t *testing.T) {
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	other := GivenMember(t, store, "bob")
	book, copies := GivenBook(t, store, "Dune", 1)
	borrow(t, store, other.ID, byCopy(copies[0].ID), FakeClock)
	unknown := uuid.New()
	handler := loanledger.NewBorrowHandler(store)

	testCases := []struct {
		name     string
		memberID uuid.UUID
		selector loanledger.Selector
		wantErr  error
		wantKind circulation.Kind
	}{
		{name: "unknown member", memberID: unknown, selector: byCopy(copies[0].ID), wantErr: circulation.ErrMemberNotFound, wantKind: circulation.KindNotFound},
		{name: "unknown copy", memberID: member.ID, selector: byCopy(unknown), wantErr: circulation.ErrCopyNotFound, wantKind: circulation.KindNotFound},
		{name: "unknown barcode", memberID: member.ID, selector: loanledger.Selector{Barcode: "NOPE"}, wantErr: circulation.ErrCopyNotFound, wantKind: circulation.KindNotFound},
		{name: "unknown book", memberID: member.ID, selector: byBook(unknown), wantErr: circulation.ErrBookNotFound, wantKind: circulation.KindNotFound},
		{name: "no selector", memberID: member.ID, selector: loanledger.Selector{Barcode: "  "}, wantErr: circulation.ErrCopySelectorMissing, wantKind: circulation.KindBusiness},
		{name: "copy is loaned", memberID: member.ID, selector: byCopy(copies[0].ID), wantErr: circulation.ErrCopyNotAvailable, wantKind: circulation.KindBusiness},
		{name: "no copy left", memberID: member.ID, selector: byBook(book.ID), wantErr: circulation.ErrNoAvailableCopies, wantKind: circulation.KindBusiness},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, result, err := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(tc.memberID, tc.selector, FakeClock))

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantKind, circulation.KindOf(err))
			assert.Equal(t, 1, result.RetryAttempts)
		})
	}
}

func Test_BorrowHandler_Handle_Error_WhenMembershipTypeIsMissing(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	missingType := uuid.New()
	member.MembershipTypeID = &missingType
	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		return tx.SaveMember(ctx, member)
	})
	_, copies := GivenBook(t, store, "Dune", 1)

	// act
	_, _, err := loanledger.NewBorrowHandler(store).
		Handle(context.Background(), loanledger.BuildBorrowCommand(member.ID, byCopy(copies[0].ID), FakeClock))

	// assert
	assert.ErrorIs(t, err, circulation.ErrMembershipTypeNotFound)
}

func Test_BorrowHandler_Handle_AtMostOneActiveLoanPerCopy_UnderConcurrentBorrows(t *testing.T) {
	// arrange
	store := newStore(t)
	_, copies := GivenBook(t, store, "Dune", 1)
	handler := loanledger.NewBorrowHandler(store)

	const borrowers = 10

	members := make([]circulation.Member, 0, borrowers)
	for i := 0; i < borrowers; i++ {
		members = append(members, GivenMember(t, store, "m"))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)

	// act
	for _, member := range members {
		wg.Add(1)

		go func(memberID uuid.UUID) {
			defer wg.Done()

			_, _, err := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(memberID, byCopy(copies[0].ID), FakeClock))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.Is(err, circulation.ErrCopyNotAvailable):
				rejected++
			}
		}(member.ID)
	}

	wg.Wait()

	// assert
	assert.Equal(t, 1, successes)
	assert.Equal(t, borrowers-1, rejected)

	active := circulation.LoanActive
	loans := Read(t, store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Loan, error) {
		return tx.ListLoans(ctx, circulation.LoanFilter{Status: &active})
	})
	assert.Len(t, loans, 1)
}

func Test_ReturnHandler_Handle_Success_MakesCopyAvailable_WhenNobodyWaits(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	loan := borrow(t, store, member.ID, byCopy(copies[0].ID), FakeClock)
	returnedAt := FakeClock.Add(Days(3))

	// act
	returned, _, err := loanledger.NewReturnHandler(store).
		Handle(context.Background(), loanledger.BuildReturnCommand(loan.ID, returnedAt))

	// assert
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, returnedAt, *returned.ReturnDate)
	assert.Equal(t, returned, Loan(t, store, loan.ID))
	assert.Equal(t, circulation.CopyAvailable, Copy(t, store, copies[0].ID).Status)
	_, found := FineForLoan(t, store, loan.ID)
	assert.False(t, found)
}

func Test_ReturnHandler_Handle_ChargesFine_WhenReturnedLate(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	loan := borrow(t, store, member.ID, byCopy(copies[0].ID), FakeClock)

	// act
	returnLoan(t, store, loan.ID, FakeClock.Add(Days(17)+5*time.Hour))

	// assert
	fine, found := FineForLoan(t, store, loan.ID)
	require.True(t, found)
	assert.True(t, decimal.RequireFromString("3.00").Equal(fine.Amount))
	assert.Equal(t, circulation.FineUnpaid, fine.Status)
	assert.True(t, fine.Amount.Equal(Member(t, store, member.ID).Balance))
}

func Test_ReturnHandler_Handle_Error_WhenAlreadyReturned(t *testing.T) {
	// arrange
	store := newStore(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	loan := borrow(t, store, member.ID, byCopy(copies[0].ID), FakeClock)
	returnLoan(t, store, loan.ID, FakeClock.Add(Days(1)))

	// act
	_, _, err := loanledger.NewReturnHandler(store).
		Handle(context.Background(), loanledger.BuildReturnCommand(loan.ID, FakeClock.Add(Days(2))))

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanAlreadyReturned)
	assert.Equal(t, circulation.KindBusiness, circulation.KindOf(err))
}

func Test_ReturnHandler_Handle_Error_WhenLoanIsUnknown(t *testing.T) {
	// arrange
	store := newStore(t)

	// act
	_, _, err := loanledger.NewReturnHandler(store).
		Handle(context.Background(), loanledger.BuildReturnCommand(uuid.New(), FakeClock))

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanNotFound)
}

func Test_ReturnHandler_Handle_Succeeds_WhenNotifierFails(t *testing.T) {
	// arrange
	store := newStore(t)
	ada := GivenMember(t, store, "ada")
	bob := GivenMember(t, store, "bob")
	book, copies := GivenBook(t, store, "Dune", 1)
	loan := borrow(t, store, ada.ID, byCopy(copies[0].ID), FakeClock)
	reservation := reserve(t, store, book.ID, bob.ID, FakeClock)
	notifier := spies.NewNotifierSpy(errors.New("mail server down"))
	logger := spies.NewLoggerSpy()

	// act
	_, _, err := loanledger.NewReturnHandler(store, loanledger.WithNotifier(notifier), loanledger.WithLogger(logger)).
		Handle(context.Background(), loanledger.BuildReturnCommand(loan.ID, FakeClock.Add(Days(2))))

	// assert
	require.NoError(t, err)
	assert.Len(t, notifier.Notices(), 1)
	assert.True(t, logger.HasWarnLog("reservation ready notification failed"))
	assert.Equal(t, circulation.ReservationReadyForPickup, Reservation(t, store, reservation.ID).Status)
	assert.Equal(t, circulation.CopyReserved, Copy(t, store, copies[0].ID).Status)
}

func Test_ListLoansHandler_Handle_FiltersByMember(t *testing.T) {
	// arrange
	store := newStore(t)
	ada := GivenMember(t, store, "ada")
	bob := GivenMember(t, store, "bob")
	_, copies := GivenBook(t, store, "Dune", 3)
	first := borrow(t, store, ada.ID, byCopy(copies[0].ID), FakeClock)
	borrow(t, store, bob.ID, byCopy(copies[1].ID), FakeClock.Add(Days(1)))
	second := borrow(t, store, ada.ID, byCopy(copies[2].ID), FakeClock.Add(Days(2)))
	handler := loanledger.NewListLoansHandler(store)

	// act
	all, allErr := handler.Handle(context.Background(), loanledger.ListLoansQuery{})
	adas, adaErr := handler.Handle(context.Background(), loanledger.ListLoansQuery{MemberID: &ada.ID})

	// assert
	require.NoError(t, allErr)
	require.NoError(t, adaErr)
	assert.Len(t, all, 3)
	require.Len(t, adas, 2)
	assert.Equal(t, first.ID, adas[0].ID)
	assert.Equal(t, second.ID, adas[1].ID)
}

func Test_BorrowHandler_Handle_FreeCopyAddedLater_IsServedToTheHeadOfTheQueueOnly(t *testing.T) {
	// arrange
	store := newStore(t)
	holder := GivenMember(t, store, "holder")
	head := GivenMember(t, store, "head")
	second := GivenMember(t, store, "second")
	outsider := GivenMember(t, store, "outsider")
	book, copies := GivenBook(t, store, "Dune", 1)
	borrow(t, store, holder.ID, byCopy(copies[0].ID), FakeClock)
	headReservation := reserve(t, store, book.ID, head.ID, FakeClock)
	reserve(t, store, book.ID, second.ID, FakeClock.Add(time.Microsecond))
	added, _, err := copyregistry.NewAddCopyHandler(store).
		Handle(context.Background(), copyregistry.BuildAddCopyCommand(book.ID, "", FakeClock))
	require.NoError(t, err)
	handler := loanledger.NewBorrowHandler(store)

	// act
	_, _, secondErr := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(second.ID, byCopy(added.ID), FakeClock))
	_, _, outsiderErr := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(outsider.ID, byBook(book.ID), FakeClock))
	loan, _, headErr := handler.Handle(context.Background(), loanledger.BuildBorrowCommand(head.ID, byBook(book.ID), FakeClock))

	// assert
	assert.ErrorIs(t, secondErr, circulation.ErrReservationQueueExists)
	assert.ErrorIs(t, outsiderErr, circulation.ErrReservationQueueExists)
	require.NoError(t, headErr)
	assert.Equal(t, added.ID, loan.CopyID)
	assert.Equal(t, circulation.ReservationFulfilled, Reservation(t, store, headReservation.ID).Status)
	assert.Equal(t, 1, queuePosition(t, store, book.ID, second.ID))
}
