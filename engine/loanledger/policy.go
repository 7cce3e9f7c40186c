package loanledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/reservationqueue"
)

const (
	// DefaultMaxBooks is the borrowing cap of members without a membership type.
	DefaultMaxBooks = 5

	// DefaultLoanDays is the loan period of members without a membership type.
	DefaultLoanDays = 14
)

// Policy holds the circulation defaults. Membership types override MaxBooks and LoanDays.
type Policy struct {
	MaxBooks       int
	LoanDays       int
	PickupWindow   time.Duration
	FineRatePerDay decimal.Decimal
}

// DefaultPolicy returns 5 books, 14 days, a 72h pickup window and 1.00 per overdue day.
func DefaultPolicy() Policy {
	return Policy{
		MaxBooks:       DefaultMaxBooks,
		LoanDays:       DefaultLoanDays,
		PickupWindow:   reservationqueue.DefaultPickupWindow,
		FineRatePerDay: fineledger.DefaultRatePerDay,
	}
}

func (p Policy) normalized() Policy {
	defaults := DefaultPolicy()

	if p.MaxBooks <= 0 {
		p.MaxBooks = defaults.MaxBooks
	}

	if p.LoanDays <= 0 {
		p.LoanDays = defaults.LoanDays
	}

	if p.PickupWindow <= 0 {
		p.PickupWindow = defaults.PickupWindow
	}

	if !p.FineRatePerDay.IsPositive() {
		p.FineRatePerDay = defaults.FineRatePerDay
	}

	return p
}

func (p Policy) finePolicy() fineledger.Policy {
	return fineledger.Policy{RatePerDay: p.FineRatePerDay}
}
