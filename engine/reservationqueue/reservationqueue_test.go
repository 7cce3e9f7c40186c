package reservationqueue_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/memoryengine"
	"github.com/AntonStoeckl/library-circulation/engine/reservationqueue"
	. "github.com/AntonStoeckl/library-circulation/testutil/fixtures" //nolint:revive
)

func newStore(t *testing.T) *memoryengine.Store {
	t.Helper()

	store, err := memoryengine.NewStore()
	require.NoError(t, err)

	return store
}

func givenAllCopiesLoaned(t *testing.T, store circulation.Store, copies []circulation.BookCopy) {
	t.Helper()

	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		for _, bookCopy := range copies {
			if err := tx.SetCopyStatus(ctx, bookCopy.ID, circulation.CopyLoaned); err != nil {
				return err
			}
		}

		return nil
	})
}

func place(ctx context.Context, tx circulation.Tx, bookID, memberID uuid.UUID) (circulation.Reservation, error) {
	return reservationqueue.New(tx, 0).Place(ctx, bookID, memberID, FakeClock)
}

func Test_DecidePlacement(t *testing.T) {
	pending := circulation.Reservation{Status: circulation.ReservationPending}
	expired := circulation.Reservation{Status: circulation.ReservationExpired}

	testCases := []struct {
		name     string
		copies   []circulation.BookCopy
		existing *circulation.Reservation
		wantErr  error
	}{
		{name: "all copies loaned", copies: []circulation.BookCopy{{Status: circulation.CopyLoaned}}},
		{name: "no copies at all"},
		{name: "copy held for someone", copies: []circulation.BookCopy{{Status: circulation.CopyReserved}}},
		{name: "closed reservation does not count", copies: []circulation.BookCopy{{Status: circulation.CopyLoaned}}, existing: &expired},
		{
			name:    "a copy is available",
			copies:  []circulation.BookCopy{{Status: circulation.CopyLoaned}, {Status: circulation.CopyAvailable}},
			wantErr: circulation.ErrBookIsAvailable,
		},
		{
			name:     "already queued",
			copies:   []circulation.BookCopy{{Status: circulation.CopyLoaned}},
			existing: &pending,
			wantErr:  circulation.ErrDuplicateReservation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := reservationqueue.DecidePlacement(tc.copies, tc.existing)

			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func Test_Queue_Place_Success_ServesInFIFOOrder(t *testing.T) {
	// arrange
	store := newStore(t)
	book, copies := GivenBook(t, store, "Dune", 1)
	givenAllCopiesLoaned(t, store, copies)
	first, second := GivenMember(t, store, "ada"), GivenMember(t, store, "bob")

	// act
	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		if _, err := place(ctx, tx, book.ID, first.ID); err != nil {
			return err
		}

		_, err := place(ctx, tx, book.ID, second.ID)

		return err
	})

	// assert
	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		queue := reservationqueue.New(tx, 0)

		head, found, err := queue.FirstPending(ctx, book.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, first.ID, head.MemberID)

		firstRank, err := queue.QueuePosition(ctx, book.ID, first.ID)
		require.NoError(t, err)
		secondRank, err := queue.QueuePosition(ctx, book.ID, second.ID)
		require.NoError(t, err)
		strangerRank, err := queue.QueuePosition(ctx, book.ID, uuid.New())
		require.NoError(t, err)

		assert.Equal(t, 1, firstRank)
		assert.Equal(t, 2, secondRank)
		assert.Equal(t, 0, strangerRank)

		return nil
	})
}

func Test_Queue_Place_Error_WhenReferencesAreUnknown(t *testing.T) {
	// arrange
	store := newStore(t)
	book, copies := GivenBook(t, store, "Dune", 1)
	givenAllCopiesLoaned(t, store, copies)
	member := GivenMember(t, store, "ada")

	// act
	unknownBookErr := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		_, err := place(ctx, tx, uuid.New(), member.ID)
		return err
	})
	unknownMemberErr := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		_, err := place(ctx, tx, book.ID, uuid.New())
		return err
	})

	// assert
	assert.ErrorIs(t, unknownBookErr, circulation.ErrBookNotFound)
	assert.ErrorIs(t, unknownMemberErr, circulation.ErrMemberNotFound)
}

func Test_Queue_Place_Error_WhenAlreadyQueued(t *testing.T) {
	// arrange
	store := newStore(t)
	book, copies := GivenBook(t, store, "Dune", 1)
	givenAllCopiesLoaned(t, store, copies)
	member := GivenMember(t, store, "ada")
	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		_, err := place(ctx, tx, book.ID, member.ID)
		return err
	})

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		_, placeErr := place(ctx, tx, book.ID, member.ID)
		return placeErr
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrDuplicateReservation)
}

func Test_Queue_Promote_Fulfill_Lifecycle(t *testing.T) {
	// arrange
	store := newStore(t)
	book, copies := GivenBook(t, store, "Dune", 1)
	givenAllCopiesLoaned(t, store, copies)
	member := GivenMember(t, store, "ada")
	reservation := Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Reservation, error) {
		return place(ctx, tx, book.ID, member.ID)
	})

	// act
	promoted := Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Reservation, error) {
		return reservationqueue.New(tx, 0).Promote(ctx, reservation, copies[0].ID, FakeClock)
	})

	// assert
	assert.Equal(t, circulation.ReservationReadyForPickup, promoted.Status)
	require.NotNil(t, promoted.ExpiresAt)
	assert.Equal(t, FakeClock.Add(Days(3)), *promoted.ExpiresAt)
	assert.True(t, promoted.HoldsCopy(copies[0].ID))

	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		queue := reservationqueue.New(tx, 0)

		ready, found, err := queue.ReadyFor(ctx, book.ID, member.ID)
		require.NoError(t, err)
		require.True(t, found)

		rank, err := queue.QueuePosition(ctx, book.ID, member.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, rank)

		fulfilled, err := queue.Fulfill(ctx, ready)
		require.NoError(t, err)
		assert.Equal(t, circulation.ReservationFulfilled, fulfilled.Status)
		assert.Nil(t, fulfilled.HeldCopyID)

		return nil
	})

	stored := Reservation(t, store, reservation.ID)
	assert.Equal(t, circulation.ReservationFulfilled, stored.Status)
	assert.NotNil(t, stored.ExpiresAt)
}

func Test_Queue_Expire_Error_WhenNotReady(t *testing.T) {
	// arrange
	store := newStore(t)
	book, copies := GivenBook(t, store, "Dune", 1)
	givenAllCopiesLoaned(t, store, copies)
	member := GivenMember(t, store, "ada")
	reservation := Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Reservation, error) {
		return place(ctx, tx, book.ID, member.ID)
	})

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		_, expireErr := reservationqueue.New(tx, 0).Expire(ctx, reservation)
		return expireErr
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrInvalidStatusTransition)
}

func Test_Queue_Cancel_DeletesOpenReservation_AndRefusesClosedOnes(t *testing.T) {
	// arrange
	store := newStore(t)
	book, copies := GivenBook(t, store, "Dune", 1)
	givenAllCopiesLoaned(t, store, copies)
	member := GivenMember(t, store, "ada")
	reservation := Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Reservation, error) {
		return place(ctx, tx, book.ID, member.ID)
	})

	// act
	cancelled := Read(t, store, func(ctx context.Context, tx circulation.Tx) (circulation.Reservation, error) {
		return reservationqueue.New(tx, 0).Cancel(ctx, reservation.ID)
	})
	secondErr := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		_, err := reservationqueue.New(tx, 0).Cancel(ctx, reservation.ID)
		return err
	})

	// assert
	assert.Equal(t, reservation.ID, cancelled.ID)
	assert.ErrorIs(t, secondErr, circulation.ErrReservationNotFound)
}
