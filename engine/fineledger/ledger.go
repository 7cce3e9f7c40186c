package fineledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// DefaultRatePerDay is the flat fine per overdue day.
var DefaultRatePerDay = decimal.NewFromInt(1)

// Policy holds the fine configuration.
type Policy struct {
	RatePerDay decimal.Decimal
}

// DefaultPolicy returns the policy with DefaultRatePerDay.
func DefaultPolicy() Policy {
	return Policy{RatePerDay: DefaultRatePerDay}
}

// Repository is what the ledger needs from a unit of work.
type Repository interface {
	circulation.FineRepository
	AdjustMemberBalance(ctx context.Context, memberID uuid.UUID, delta decimal.Decimal) error
}

// Ledger is a transaction-scoped view of the fines.
type Ledger struct {
	repo   Repository
	policy Policy
}

// New binds a Ledger to a unit of work. A non-positive rate falls back to DefaultRatePerDay.
func New(repo Repository, policy Policy) Ledger {
	if !policy.RatePerDay.IsPositive() {
		policy.RatePerDay = DefaultRatePerDay
	}

	return Ledger{repo: repo, policy: policy}
}

// Recompute brings the loan's fine in line with how late the loan is at now, or at its
// return date once returned. It reports whether anything was written. The returned fine
// is the zero value when the loan has none.
func (l Ledger) Recompute(ctx context.Context, loan circulation.Loan, now time.Time) (circulation.Fine, bool, error) {
	end := now
	if loan.ReturnDate != nil {
		end = *loan.ReturnDate
	}

	existing, found, err := l.repo.LockFineByLoan(ctx, loan.ID)
	if err != nil {
		return circulation.Fine{}, false, err
	}

	var current *circulation.Fine
	if found {
		current = &existing
	}

	decision := DecideRecompute(current, OverdueDays(loan.DueDate, end), l.policy.RatePerDay)
	now = circulation.ToTimestamp(now)

	switch decision.Action {
	case ActionCreate:
		fine := circulation.Fine{
			ID:          uuid.New(),
			LoanID:      loan.ID,
			MemberID:    loan.MemberID,
			Amount:      decision.Amount,
			Status:      circulation.FineUnpaid,
			FineDate:    now,
			LastUpdated: now,
		}

		if err = l.repo.InsertFine(ctx, fine); err != nil {
			return circulation.Fine{}, false, err
		}

		if err = l.repo.AdjustMemberBalance(ctx, loan.MemberID, decision.Delta); err != nil {
			return circulation.Fine{}, false, err
		}

		return fine, true, nil

	case ActionUpdate:
		fine := existing
		fine.Amount = decision.Amount
		fine.LastUpdated = now

		if err = l.repo.UpdateUnpaidFine(ctx, fine); err != nil {
			return circulation.Fine{}, false, err
		}

		if err = l.repo.AdjustMemberBalance(ctx, loan.MemberID, decision.Delta); err != nil {
			return circulation.Fine{}, false, err
		}

		return fine, true, nil

	default:
		return existing, false, nil
	}
}

// Pay settles an UNPAID fine and lowers the member's balance by its amount.
func (l Ledger) Pay(ctx context.Context, fineID uuid.UUID, now time.Time) (circulation.Fine, error) {
	fine, err := l.repo.LockFine(ctx, fineID)
	if err != nil {
		return circulation.Fine{}, err
	}

	if err = DecidePayment(fine); err != nil {
		return circulation.Fine{}, err
	}

	paid := fine
	paid.Status = circulation.FinePaid
	paid.LastUpdated = circulation.ToTimestamp(now)

	if err = l.repo.UpdateUnpaidFine(ctx, paid); err != nil {
		return circulation.Fine{}, err
	}

	if err = l.repo.AdjustMemberBalance(ctx, fine.MemberID, fine.Amount.Neg()); err != nil {
		return circulation.Fine{}, err
	}

	return paid, nil
}
