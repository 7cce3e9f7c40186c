package fineledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

const day = 24 * time.Hour

// Action is what a recomputation does to the stored fine.
type Action int

const (
	// ActionNone leaves everything as it is.
	ActionNone Action = iota

	// ActionCreate inserts a new UNPAID fine.
	ActionCreate

	// ActionUpdate changes the amount of the UNPAID fine.
	ActionUpdate
)

// Recomputation is the outcome of DecideRecompute.
type Recomputation struct {
	Action Action
	Amount decimal.Decimal
	Delta  decimal.Decimal
}

// OverdueDays counts the whole days between dueDate and end. Partial days do not count.
func OverdueDays(dueDate, end time.Time) int {
	if !end.After(dueDate) {
		return 0
	}

	return int(end.Sub(dueDate) / day)
}

// AmountFor returns rate × days at currency precision.
func AmountFor(overdueDays int, rate decimal.Decimal) decimal.Decimal {
	return circulation.ToMoney(rate.Mul(decimal.NewFromInt(int64(overdueDays))))
}

// DecideRecompute brings a loan's fine in line with its overdue days.
//
// Business Rules:
//
//	GIVEN: the loan's fine, if any, and the loan's overdue days
//	WHEN: the fine is recomputed
//	THEN: a missing fine is created UNPAID with rate × days
//	THEN: an UNPAID fine moves to rate × days, and the difference is the balance delta
//	IDEMPOTENCY: no overdue days, a PAID fine, or an unchanged amount change nothing
func DecideRecompute(existing *circulation.Fine, overdueDays int, rate decimal.Decimal) Recomputation {
	if overdueDays <= 0 {
		return Recomputation{Action: ActionNone}
	}

	amount := AmountFor(overdueDays, rate)

	if existing == nil {
		return Recomputation{Action: ActionCreate, Amount: amount, Delta: amount}
	}

	if existing.Status == circulation.FinePaid {
		return Recomputation{Action: ActionNone, Amount: existing.Amount}
	}

	delta := amount.Sub(existing.Amount)
	if delta.IsZero() {
		return Recomputation{Action: ActionNone, Amount: existing.Amount}
	}

	return Recomputation{Action: ActionUpdate, Amount: amount, Delta: delta}
}

// DecidePayment says whether a fine may be paid.
//
// Business Rules:
//
//	GIVEN: a fine
//	WHEN: the member pays it
//	THEN: it becomes PAID and the balance drops by its amount
//	ERROR: "fine is already paid" if it is PAID
func DecidePayment(fine circulation.Fine) error {
	if fine.Status == circulation.FinePaid {
		return circulation.ErrFineAlreadyPaid
	}

	return nil
}
