// Package sweep runs the daily circulation housekeeping: the overdue fine scan followed
// by the expiry of uncollected holds. It is triggered once by the sweep CLI command or
// every day at a fixed UTC time of day by the serve command.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	logMsgSweepScheduled = "daily sweep scheduled"
	logMsgSweepFinished  = "daily sweep finished"
	logMsgSweepFailed    = "daily sweep failed"
	logAttrNextRun       = "next_run"
	logAttrFinesCharged  = "fines_charged"
	logAttrFinesFailed   = "fines_failed"
	logAttrHoldsExpired  = "holds_expired"
	logAttrHoldsFailed   = "holds_failed"
	logAttrError         = "error"
)

// ErrInvalidTimeOfDay is returned for a malformed HH:MM value.
var ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM in 24h format")

// FineSweeper runs the overdue fine scan.
type FineSweeper = shell.CoreCommandHandler[fineledger.CalculateOverdueFinesCommand, fineledger.OverdueSummary]

// HoldSweeper runs the hold expiry.
type HoldSweeper = shell.CoreCommandHandler[loanledger.ExpireReadyReservationsCommand, loanledger.HoldSweepSummary]

// TimeOfDay is a wall clock time in UTC.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	hh, mm, found := strings.Cut(strings.TrimSpace(value), ":")
	if !found {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}

	hour, hourErr := strconv.Atoi(hh)
	minute, minuteErr := strconv.Atoi(mm)

	if hourErr != nil || minuteErr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextRun returns the first instant strictly after now that falls on at (UTC).
func NextRun(now time.Time, at TimeOfDay) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, time.UTC)

	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// Report is the outcome of one sweep.
type Report struct {
	At    time.Time
	Fines fineledger.OverdueSummary
	Holds loanledger.HoldSweepSummary
}

// Runner runs sweeps.
type Runner struct {
	fines     FineSweeper
	holds     HoldSweeper
	clock     func() time.Time
	logger    circulation.Logger
	timeOfDay TimeOfDay
	runFines  bool
	runHolds  bool
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner) error

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) error {
		r.clock = clock
		return nil
	}
}

// WithLogger sets the logger for schedule and outcome reports.
func WithLogger(logger circulation.Logger) Option {
	return func(r *Runner) error {
		r.logger = logger
		return nil
	}
}

// WithTimeOfDay sets when Run fires every day. The default is 02:00 UTC.
func WithTimeOfDay(timeOfDay TimeOfDay) Option {
	return func(r *Runner) error {
		if timeOfDay.Hour < 0 || timeOfDay.Hour > 23 || timeOfDay.Minute < 0 || timeOfDay.Minute > 59 {
			return fmt.Errorf("%w: %s", ErrInvalidTimeOfDay, timeOfDay)
		}

		r.timeOfDay = timeOfDay

		return nil
	}
}

// WithSteps selects which parts of the sweep run. Both run by default.
func WithSteps(fines, holds bool) Option {
	return func(r *Runner) error {
		r.runFines = fines
		r.runHolds = holds

		return nil
	}
}

// NewRunner creates a Runner.
func NewRunner(fines FineSweeper, holds HoldSweeper, options ...Option) (*Runner, error) {
	r := &Runner{
		fines:     fines,
		holds:     holds,
		clock:     time.Now,
		timeOfDay: TimeOfDay{Hour: 2},
		runFines:  true,
		runHolds:  true,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// RunOnce runs the fine scan, then the hold expiry. A failing step does not keep the other
// from running; their errors are joined.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	report := Report{At: circulation.ToTimestamp(r.clock())}

	var finesErr, holdsErr error

	if r.runFines {
		report.Fines, _, finesErr = r.fines.Handle(ctx, fineledger.BuildCalculateOverdueFinesCommand(report.At))
	}

	if r.runHolds && ctx.Err() == nil {
		report.Holds, _, holdsErr = r.holds.Handle(ctx, loanledger.BuildExpireReadyReservationsCommand(report.At))
	}

	err := errors.Join(finesErr, holdsErr)

	if r.logger != nil {
		if err != nil {
			r.logger.Error(logMsgSweepFailed, logAttrError, err.Error())
		} else {
			r.logger.Info(logMsgSweepFinished,
				logAttrFinesCharged, report.Fines.Charged,
				logAttrFinesFailed, report.Fines.Failed,
				logAttrHoldsExpired, report.Holds.Expired,
				logAttrHoldsFailed, report.Holds.Failed,
			)
		}
	}

	return report, err
}

// Run sweeps every day at the configured time of day until ctx is done.
// Failed sweeps are logged and retried the next day.
func (r *Runner) Run(ctx context.Context) error {
	for {
		next := NextRun(r.clock(), r.timeOfDay)

		if r.logger != nil {
			r.logger.Info(logMsgSweepScheduled, logAttrNextRun, next.Format(time.RFC3339))
		}

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		_, _ = r.RunOnce(ctx)
	}
}
