package fineledger

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	calculateOverdueFinesCommandType = "CalculateOverdueFines"

	logMsgOverdueLoanFailed = "overdue fine recompute failed, continuing with next loan"
	logMsgOverdueSweepDone  = "overdue fine sweep finished"
	logAttrLoanID           = "loan_id"
	logAttrScanned          = "scanned"
	logAttrCharged          = "charged"
	logAttrFailed           = "failed"
	logAttrError            = "error"
)

// CalculateOverdueFinesCommand triggers the daily overdue scan.
type CalculateOverdueFinesCommand struct {
	At time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c CalculateOverdueFinesCommand) CommandType() string {
	return calculateOverdueFinesCommandType
}

// BuildCalculateOverdueFinesCommand creates a new CalculateOverdueFinesCommand.
func BuildCalculateOverdueFinesCommand(at time.Time) CalculateOverdueFinesCommand {
	return CalculateOverdueFinesCommand{At: circulation.ToTimestamp(at)}
}

// OverdueSummary reports what one overdue scan did.
type OverdueSummary struct {
	Scanned   int
	Charged   int
	Unchanged int
	Failed    int
}

// CalculateOverdueFinesHandler runs the overdue scan.
type CalculateOverdueFinesHandler struct {
	store circulation.Store
	handlerOptions
}

// NewCalculateOverdueFinesHandler creates a CalculateOverdueFinesHandler.
func NewCalculateOverdueFinesHandler(store circulation.Store, opts ...Option) CalculateOverdueFinesHandler {
	return CalculateOverdueFinesHandler{store: store, handlerOptions: buildOptions(opts)}
}

// Handle recomputes the fine of every ACTIVE loan due before command.At, each loan in its own
// transaction with conflict retry. A failing loan is logged and counted, and the scan moves on.
// Only listing the loans or a canceled context fails the whole scan.
func (h CalculateOverdueFinesHandler) Handle(ctx context.Context, command CalculateOverdueFinesCommand) (OverdueSummary, shell.HandlerResult, error) {
	active := circulation.LoanActive
	dueBefore := command.At

	overdue, err := shell.ExecuteQuery(ctx, h.store, func(ctx context.Context, tx circulation.Tx) ([]circulation.Loan, error) {
		return tx.ListLoans(ctx, circulation.LoanFilter{Status: &active, DueBefore: &dueBefore})
	})
	if err != nil {
		return OverdueSummary{}, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1}), err
	}

	summary := OverdueSummary{Scanned: len(overdue)}

	for _, loan := range overdue {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1}), ctxErr
		}

		_, result, recomputeErr := shell.ExecuteCommand(ctx, h.store,
			func(ctx context.Context, tx circulation.Tx) (circulation.Fine, bool, error) {
				current, findErr := tx.FindLoan(ctx, loan.ID)
				if findErr != nil {
					return circulation.Fine{}, false, findErr
				}

				if current.Status != circulation.LoanActive {
					return circulation.Fine{}, true, nil
				}

				fine, changed, recomputeErr := New(tx, h.policy).Recompute(ctx, current, command.At)

				return fine, !changed, recomputeErr
			},
			h.retryOptions...,
		)

		switch {
		case recomputeErr != nil:
			summary.Failed++

			if h.logger != nil {
				h.logger.Warn(logMsgOverdueLoanFailed, logAttrLoanID, loan.ID.String(), logAttrError, recomputeErr.Error())
			}
		case result.Idempotent:
			summary.Unchanged++
		default:
			summary.Charged++
		}
	}

	if h.logger != nil {
		h.logger.Info(logMsgOverdueSweepDone,
			logAttrScanned, summary.Scanned, logAttrCharged, summary.Charged, logAttrFailed, summary.Failed)
	}

	metrics := shell.RetryMetrics{Attempts: 1, LastErrorType: "none"}
	if summary.Charged == 0 {
		return summary, shell.NewIdempotentResult(metrics), nil
	}

	return summary, shell.NewSuccessResult(metrics), nil
}
