package sweep_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/memoryengine"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
	"github.com/AntonStoeckl/library-circulation/engine/sweep"
	. "github.com/AntonStoeckl/library-circulation/testutil/fixtures" //nolint:revive
	"github.com/AntonStoeckl/library-circulation/testutil/spies"
)

func Test_ParseTimeOfDay(t *testing.T) {
	testCases := []struct {
		input   string
		want    sweep.TimeOfDay
		wantErr bool
	}{
		{input: "02:00", want: sweep.TimeOfDay{Hour: 2}},
		{input: " 23:59 ", want: sweep.TimeOfDay{Hour: 23, Minute: 59}},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "noon", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := sweep.ParseTimeOfDay(tc.input)

			if tc.wantErr {
				assert.ErrorIs(t, err, sweep.ErrInvalidTimeOfDay)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func Test_NextRun(t *testing.T) {
	at := sweep.TimeOfDay{Hour: 2, Minute: 30}
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, day.Add(2*time.Hour+30*time.Minute), sweep.NextRun(day.Add(time.Hour), at))
	assert.Equal(t, day.AddDate(0, 0, 1).Add(2*time.Hour+30*time.Minute), sweep.NextRun(day.Add(2*time.Hour+30*time.Minute), at))
	assert.Equal(t, day.AddDate(0, 0, 1).Add(2*time.Hour+30*time.Minute), sweep.NextRun(day.Add(20*time.Hour), at))
}

func Test_Runner_RunOnce_ChargesFines_ThenExpiresHolds(t *testing.T) {
	// arrange
	store, err := memoryengine.NewStore()
	require.NoError(t, err)
	holder := GivenMember(t, store, "holder")
	waiting := GivenMember(t, store, "waiting")
	book, copies := GivenBook(t, store, "Dune", 2)
	GivenActiveLoan(t, store, holder, copies[0], FakeClock, 14)
	second := GivenActiveLoan(t, store, holder, copies[1], FakeClock, 30)
	Write(t, store, func(ctx context.Context, tx circulation.Tx) error {
		_, placeErr := loanledger.New(tx, loanledger.DefaultPolicy()).PlaceReservation(ctx, book.ID, waiting.ID, FakeClock)
		return placeErr
	})
	_, _, err = loanledger.NewReturnHandler(store).Handle(context.Background(), loanledger.BuildReturnCommand(second.ID, FakeClock.Add(Days(1))))
	require.NoError(t, err)
	logger := spies.NewLoggerSpy()
	runner, err := sweep.NewRunner(
		fineledger.NewCalculateOverdueFinesHandler(store),
		loanledger.NewExpireReadyReservationsHandler(store),
		sweep.WithClock(func() time.Time { return FakeClock.Add(Days(16)) }),
		sweep.WithLogger(logger),
	)
	require.NoError(t, err)

	// act
	report, err := runner.RunOnce(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, FakeClock.Add(Days(16)), report.At)
	assert.Equal(t, 1, report.Fines.Charged)
	assert.Equal(t, 1, report.Holds.Expired)
	assert.Equal(t, circulation.CopyAvailable, Copy(t, store, copies[1].ID).Status)
	assert.True(t, logger.HasInfoLog("daily sweep finished"))
}

func Test_Runner_RunOnce_RunsHolds_WhenFinesFail(t *testing.T) {
	// arrange
	finesErr := errors.New("database gone")
	holds := &holdSweeperStub{}
	runner, err := sweep.NewRunner(fineSweeperStub{err: finesErr}, holds, sweep.WithClock(func() time.Time { return FakeClock }))
	require.NoError(t, err)

	// act
	_, err = runner.RunOnce(context.Background())

	// assert
	assert.ErrorIs(t, err, finesErr)
	assert.Equal(t, 1, holds.calls)
}

func Test_Runner_RunOnce_RunsOnlySelectedSteps(t *testing.T) {
	// arrange
	holds := &holdSweeperStub{}
	runner, err := sweep.NewRunner(fineSweeperStub{}, holds, sweep.WithSteps(true, false))
	require.NoError(t, err)

	// act
	_, err = runner.RunOnce(context.Background())

	// assert
	require.NoError(t, err)
	assert.Zero(t, holds.calls)
}

func Test_Runner_Run_ReturnsWhenContextIsCanceled(t *testing.T) {
	// arrange
	holds := &holdSweeperStub{}
	runner, err := sweep.NewRunner(fineSweeperStub{}, holds, sweep.WithTimeOfDay(sweep.TimeOfDay{Hour: 3}))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// act
	err = runner.Run(ctx)

	// assert
	assert.NoError(t, err)
	assert.Zero(t, holds.calls)
}

func Test_NewRunner_Error_WhenTimeOfDayIsInvalid(t *testing.T) {
	_, err := sweep.NewRunner(fineSweeperStub{}, &holdSweeperStub{}, sweep.WithTimeOfDay(sweep.TimeOfDay{Hour: 25}))

	assert.ErrorIs(t, err, sweep.ErrInvalidTimeOfDay)
}

type fineSweeperStub struct {
	err error
}

func (s fineSweeperStub) Handle(
	_ context.Context,
	_ fineledger.CalculateOverdueFinesCommand,
) (fineledger.OverdueSummary, shell.HandlerResult, error) {
	return fineledger.OverdueSummary{}, shell.HandlerResult{}, s.err
}

type holdSweeperStub struct {
	calls int
}

func (s *holdSweeperStub) Handle(
	_ context.Context,
	_ loanledger.ExpireReadyReservationsCommand,
) (loanledger.HoldSweepSummary, shell.HandlerResult, error) {
	s.calls++
	return loanledger.HoldSweepSummary{}, shell.HandlerResult{}, nil
}
