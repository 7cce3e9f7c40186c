package postgresengine_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	"github.com/AntonStoeckl/library-circulation/testutil/fixtures"
	"github.com/AntonStoeckl/library-circulation/testutil/postgreswrapper"
	"github.com/AntonStoeckl/library-circulation/testutil/spies"
)

func Test_NewStore_Fails_WhenDatabaseIsNil(t *testing.T) {
	_, pgxErr := postgresengine.NewStoreFromPGXPool(nil)
	_, sqlErr := postgresengine.NewStoreFromSQLDB(nil)
	_, sqlxErr := postgresengine.NewStoreFromSQLX(nil)

	assert.ErrorIs(t, pgxErr, circulation.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, circulation.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, circulation.ErrNilDatabaseConnection)
}

func Test_NewStore_Fails_WhenSchemaIsEmpty(t *testing.T) {
	// arrange
	db, err := sql.Open("postgres", postgreswrapper.DatabaseURL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// act
	_, err = postgresengine.NewStoreFromSQLDB(db, postgresengine.WithSchema(""))

	// assert
	assert.ErrorIs(t, err, circulation.ErrEmptySchemaName)
}

func Test_Migrate_IsIdempotent(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)

	// act
	err := store.Migrate(context.Background())

	// assert
	assert.NoError(t, err)
}

func Test_WithinTx_RollsBack_WhenBodyFails(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	_, copies := fixtures.GivenBook(t, store, "Dune", 1)
	bodyErr := errors.New("body failed")

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		require.NoError(t, tx.CompareAndSetCopyStatus(ctx, copies[0].ID, circulation.CopyAvailable, circulation.CopyLoaned))

		return bodyErr
	})

	// assert
	assert.ErrorIs(t, err, bodyErr)
	assert.Equal(t, circulation.CopyAvailable, fixtures.Copy(t, store, copies[0].ID).Status)
}

func Test_CompareAndSetCopyStatus_Conflicts_WhenStatusDiffers(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	_, copies := fixtures.GivenBook(t, store, "Dune", 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		return tx.CompareAndSetCopyStatus(ctx, copies[0].ID, circulation.CopyLoaned, circulation.CopyAvailable)
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
}

func Test_InsertCopy_Conflicts_WhenBarcodeExists(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	book, copies := fixtures.GivenBook(t, store, "Dune", 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		return tx.InsertCopy(ctx, circulation.BookCopy{
			ID:        uuid.New(),
			BookID:    book.ID,
			Barcode:   copies[0].Barcode,
			Status:    circulation.CopyAvailable,
			CreatedAt: fixtures.FakeClock,
		})
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
}

func Test_InsertLoan_Conflicts_WhenCopyHasActiveLoan(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	member := fixtures.GivenMember(t, store, "ada")
	book, copies := fixtures.GivenBook(t, store, "Dune", 1)
	fixtures.GivenActiveLoan(t, store, member, copies[0], fixtures.FakeClock, 14)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		return tx.InsertLoan(ctx, circulation.Loan{
			ID:       uuid.New(),
			CopyID:   copies[0].ID,
			BookID:   book.ID,
			MemberID: member.ID,
			Status:   circulation.LoanActive,
			LoanDate: fixtures.FakeClock,
			DueDate:  fixtures.FakeClock.Add(fixtures.Days(14)),
		})
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
}

func Test_InsertReservation_AssignsIncreasingPositions_AndRejectsSecondOpenEntry(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	book, _ := fixtures.GivenBook(t, store, "Dune", 1)
	memberA := fixtures.GivenMember(t, store, "ada")
	memberB := fixtures.GivenMember(t, store, "bob")
	reservation := func(memberID uuid.UUID) circulation.Reservation {
		return circulation.Reservation{
			ID:        uuid.New(),
			BookID:    book.ID,
			MemberID:  memberID,
			Status:    circulation.ReservationPending,
			CreatedAt: fixtures.FakeClock,
		}
	}

	var first, second circulation.Reservation

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		var insertErr error
		if first, insertErr = tx.InsertReservation(ctx, reservation(memberA.ID)); insertErr != nil {
			return insertErr
		}

		second, insertErr = tx.InsertReservation(ctx, reservation(memberB.ID))

		return insertErr
	})
	duplicateErr := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		_, insertErr := tx.InsertReservation(ctx, reservation(memberA.ID))
		return insertErr
	})

	// assert
	require.NoError(t, err)
	assert.Less(t, first.Position, second.Position)
	assert.ErrorIs(t, duplicateErr, circulation.ErrConcurrencyConflict)

	pending := fixtures.Read(t, store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Reservation, error) {
		return tx.ListPendingReservations(ctx, book.ID)
	})
	require.Len(t, pending, 2)
	assert.Equal(t, memberA.ID, pending[0].MemberID)
	assert.Equal(t, memberB.ID, pending[1].MemberID)
}

func Test_UpdateUnpaidFine_Conflicts_WhenFineIsPaid(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	member := fixtures.GivenMember(t, store, "ada")
	_, copies := fixtures.GivenBook(t, store, "Dune", 1)
	loan := fixtures.GivenActiveLoan(t, store, member, copies[0], fixtures.FakeClock, 14)
	fine := circulation.Fine{
		ID:          uuid.New(),
		LoanID:      loan.ID,
		MemberID:    member.ID,
		Amount:      decimal.NewFromInt(2),
		Status:      circulation.FineUnpaid,
		FineDate:    fixtures.FakeClock,
		LastUpdated: fixtures.FakeClock,
	}
	fixtures.Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		if err := tx.InsertFine(ctx, fine); err != nil {
			return err
		}

		paid := fine
		paid.Status = circulation.FinePaid

		return tx.UpdateUnpaidFine(ctx, paid)
	})

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		changed := fine
		changed.Amount = decimal.NewFromInt(5)

		return tx.UpdateUnpaidFine(ctx, changed)
	})

	// assert
	assert.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
	stored, found := fixtures.FineForLoan(t, store, loan.ID)
	require.True(t, found)
	assert.Equal(t, circulation.FinePaid, stored.Status)
	assert.True(t, decimal.NewFromInt(2).Equal(stored.Amount))
}

func Test_AdjustMemberBalance_AddsDelta(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	member := fixtures.GivenMember(t, store, "ada")
	fixtures.Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		return tx.AdjustMemberBalance(ctx, member.ID, decimal.NewFromInt(3))
	})

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		return tx.AdjustMemberBalance(ctx, member.ID, decimal.RequireFromString("-1.50"))
	})

	// assert
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.50").Equal(fixtures.Member(t, store, member.ID).Balance))
}

func Test_LookupsReturnNotFound_WhenRecordIsMissing(t *testing.T) {
	store := postgreswrapper.New(t)

	fixtures.Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		_, err := tx.FindMember(ctx, uuid.New())
		assert.ErrorIs(t, err, circulation.ErrMemberNotFound)

		_, err = tx.FindLoan(ctx, uuid.New())
		assert.ErrorIs(t, err, circulation.ErrLoanNotFound)

		_, err = tx.LockFine(ctx, uuid.New())
		assert.ErrorIs(t, err, circulation.ErrFineNotFound)

		_, err = tx.FindCopyByBarcode(ctx, "nope")
		assert.ErrorIs(t, err, circulation.ErrCopyNotFound)

		_, found, err := tx.FindOpenReservation(ctx, uuid.New(), uuid.New())
		assert.NoError(t, err)
		assert.False(t, found)

		return nil
	})
}

func Test_ConcurrentBorrows_OfTheLastCopy_LendItExactlyOnce(t *testing.T) {
	// arrange
	store := postgreswrapper.New(t)
	book, copies := fixtures.GivenBook(t, store, "Dune", 1)
	handler := loanledger.NewBorrowHandler(store)

	const borrowers = 6

	members := make([]circulation.Member, 0, borrowers)
	for range borrowers {
		members = append(members, fixtures.GivenMember(t, store, "reader"))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)

	// act
	for _, member := range members {
		wg.Add(1)

		go func() {
			defer wg.Done()

			command := loanledger.BuildBorrowCommand(member.ID, loanledger.Selector{BookID: &book.ID}, fixtures.FakeClock)
			_, _, err := handler.Handle(context.Background(), command)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failures = append(failures, err)
				return
			}

			successes++
		}()
	}

	wg.Wait()

	// assert
	assert.Equal(t, 1, successes)
	assert.Len(t, failures, borrowers-1)

	for _, err := range failures {
		kind := circulation.KindOf(err)
		assert.True(t, kind == circulation.KindBusiness || kind == circulation.KindConflict, "unexpected error: %v", err)
	}

	assert.Equal(t, circulation.CopyLoaned, fixtures.Copy(t, store, copies[0].ID).Status)

	active := circulation.LoanActive
	loans := fixtures.Read(t, store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Loan, error) {
		return tx.ListLoans(ctx, circulation.LoanFilter{Status: &active})
	})
	assert.Len(t, loans, 1)
}

func Test_WithinTx_RecordsMetricsAndSpans(t *testing.T) {
	// arrange
	metrics := spies.NewMetricsCollectorSpy()
	tracing := spies.NewTracingCollectorSpy()
	store := postgreswrapper.New(t, postgresengine.WithMetrics(metrics), postgresengine.WithTracing(tracing))
	_, copies := fixtures.GivenBook(t, store, "Dune", 1)

	// act
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		return tx.CompareAndSetCopyStatus(ctx, copies[0].ID, circulation.CopyLoaned, circulation.CopyAvailable)
	})

	// assert
	require.ErrorIs(t, err, circulation.ErrConcurrencyConflict)
	assert.True(t, metrics.HasDurationRecordForMetric("circulation_store_tx_duration_seconds").WithStatus("success").Assert())
	assert.True(t, metrics.HasDurationRecordForMetric("circulation_store_tx_duration_seconds").WithStatus("conflict").Assert())
	assert.True(t, metrics.HasCounterRecordForMetric("circulation_store_concurrency_conflicts_total").Assert())
	assert.True(t, tracing.HasFinishedSpan("circulation.store.tx", "success"))
	assert.True(t, tracing.HasFinishedSpan("circulation.store.tx", "error"))
}

func Test_WithinTx_LogsCommits(t *testing.T) {
	// arrange
	logger := spies.NewLoggerSpy()
	store := postgreswrapper.New(t, postgresengine.WithLogger(logger))

	// act
	fixtures.GivenMember(t, store, "ada")

	// assert
	assert.True(t, logger.HasInfoLog("circulation store operation: transaction committed"))
	assert.True(t, logger.HasLog(spies.LevelDebug, "executed sql for: save_member"))
}
