package loanledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/memoryengine"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
)

func newStore(t *testing.T) *memoryengine.Store {
	t.Helper()

	store, err := memoryengine.NewStore()
	require.NoError(t, err)

	return store
}

func byCopy(copyID uuid.UUID) loanledger.Selector {
	return loanledger.Selector{CopyID: &copyID}
}

func byBook(bookID uuid.UUID) loanledger.Selector {
	return loanledger.Selector{BookID: &bookID}
}

func borrow(t *testing.T, store circulation.Store, memberID uuid.UUID, selector loanledger.Selector, at time.Time, opts ...loanledger.Option) circulation.Loan {
	t.Helper()

	loan, _, err := loanledger.NewBorrowHandler(store, opts...).
		Handle(context.Background(), loanledger.BuildBorrowCommand(memberID, selector, at))
	require.NoError(t, err)

	return loan
}

func returnLoan(t *testing.T, store circulation.Store, loanID uuid.UUID, at time.Time, opts ...loanledger.Option) circulation.Loan {
	t.Helper()

	loan, _, err := loanledger.NewReturnHandler(store, opts...).
		Handle(context.Background(), loanledger.BuildReturnCommand(loanID, at))
	require.NoError(t, err)

	return loan
}

func reserve(t *testing.T, store circulation.Store, bookID, memberID uuid.UUID, at time.Time) circulation.Reservation {
	t.Helper()

	reservation, _, err := loanledger.NewPlaceReservationHandler(store).
		Handle(context.Background(), loanledger.BuildPlaceReservationCommand(bookID, memberID, at))
	require.NoError(t, err)

	return reservation
}

func queuePosition(t *testing.T, store circulation.Store, bookID, memberID uuid.UUID) int {
	t.Helper()

	position, err := loanledger.NewQueuePositionHandler(store).
		Handle(context.Background(), loanledger.QueuePositionQuery{BookID: bookID, MemberID: memberID})
	require.NoError(t, err)

	return position
}
