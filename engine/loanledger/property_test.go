package loanledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/memoryengine"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	. "github.com/AntonStoeckl/library-circulation/testutil/fixtures" //nolint:revive
)

// circulationMachine drives random operations against one store and checks the
// ledger invariants after every step.
type circulationMachine struct {
	store   *memoryengine.Store
	now     time.Time
	members []circulation.Member
	books   []circulation.Book
}

func (m *circulationMachine) expectDomainOutcome(rt *rapid.T, err error) {
	if err == nil {
		return
	}

	switch circulation.KindOf(err) {
	case circulation.KindBusiness, circulation.KindNotFound:
	default:
		rt.Fatalf("unexpected error: %v", err)
	}
}

func (m *circulationMachine) read(rt *rapid.T, fn func(ctx context.Context, tx circulation.Tx) error) {
	if err := m.store.WithinTx(context.Background(), fn); err != nil {
		rt.Fatalf("read failed: %v", err)
	}
}

func (m *circulationMachine) borrow(rt *rapid.T) {
	member := rapid.SampledFrom(m.members).Draw(rt, "member")
	book := rapid.SampledFrom(m.books).Draw(rt, "book")

	_, _, err := loanledger.NewBorrowHandler(m.store).
		Handle(context.Background(), loanledger.BuildBorrowCommand(member.ID, byBook(book.ID), m.now))
	m.expectDomainOutcome(rt, err)
}

func (m *circulationMachine) reserve(rt *rapid.T) {
	member := rapid.SampledFrom(m.members).Draw(rt, "member")
	book := rapid.SampledFrom(m.books).Draw(rt, "book")

	_, _, err := loanledger.NewPlaceReservationHandler(m.store).
		Handle(context.Background(), loanledger.BuildPlaceReservationCommand(book.ID, member.ID, m.now))
	m.expectDomainOutcome(rt, err)
}

func (m *circulationMachine) returnLoan(rt *rapid.T) {
	active := circulation.LoanActive

	var loans []circulation.Loan
	m.read(rt, func(ctx context.Context, tx circulation.Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx, circulation.LoanFilter{Status: &active})

		return err
	})

	if len(loans) == 0 {
		rt.Skip("no active loan")
	}

	loan := rapid.SampledFrom(loans).Draw(rt, "loan")

	_, _, err := loanledger.NewReturnHandler(m.store).Handle(context.Background(), loanledger.BuildReturnCommand(loan.ID, m.now))
	m.expectDomainOutcome(rt, err)
}

func (m *circulationMachine) payFine(rt *rapid.T) {
	unpaid := circulation.FineUnpaid

	var fines []circulation.Fine
	m.read(rt, func(ctx context.Context, tx circulation.Tx) error {
		var err error
		fines, err = tx.ListFines(ctx, circulation.FineFilter{Status: &unpaid})

		return err
	})

	if len(fines) == 0 {
		rt.Skip("no unpaid fine")
	}

	fine := rapid.SampledFrom(fines).Draw(rt, "fine")

	_, _, err := fineledger.NewPayFineHandler(m.store).Handle(context.Background(), fineledger.BuildPayFineCommand(fine.ID, m.now))
	m.expectDomainOutcome(rt, err)
}

func (m *circulationMachine) advanceAndSweep(rt *rapid.T) {
	m.now = m.now.Add(Days(rapid.IntRange(0, 10).Draw(rt, "days")))

	if _, _, err := fineledger.NewCalculateOverdueFinesHandler(m.store).
		Handle(context.Background(), fineledger.BuildCalculateOverdueFinesCommand(m.now)); err != nil {
		rt.Fatalf("overdue sweep failed: %v", err)
	}

	if _, _, err := loanledger.NewExpireReadyReservationsHandler(m.store).
		Handle(context.Background(), loanledger.BuildExpireReadyReservationsCommand(m.now)); err != nil {
		rt.Fatalf("hold sweep failed: %v", err)
	}
}

func (m *circulationMachine) check(rt *rapid.T) {
	m.read(rt, func(ctx context.Context, tx circulation.Tx) error {
		unpaid := circulation.FineUnpaid

		for _, member := range m.members {
			stored, err := tx.FindMember(ctx, member.ID)
			if err != nil {
				return err
			}

			fines, err := tx.ListFines(ctx, circulation.FineFilter{MemberID: &member.ID, Status: &unpaid})
			if err != nil {
				return err
			}

			total := decimal.Zero
			for _, fine := range fines {
				total = total.Add(fine.Amount)
			}

			if !total.Equal(stored.Balance) {
				rt.Fatalf("member %s: balance %s, unpaid fines %s", member.Name, stored.Balance, total)
			}
		}

		active := circulation.LoanActive

		loans, err := tx.ListLoans(ctx, circulation.LoanFilter{Status: &active})
		if err != nil {
			return err
		}

		loanedCopies := make(map[uuid.UUID]bool, len(loans))
		for _, loan := range loans {
			if loanedCopies[loan.CopyID] {
				rt.Fatalf("copy %s has two active loans", loan.CopyID)
			}

			loanedCopies[loan.CopyID] = true
		}

		return nil
	})
}

func Test_Property_BalanceEqualsUnpaidFines_AndOneActiveLoanPerCopy(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store, err := memoryengine.NewStore()
		if err != nil {
			rt.Fatalf("new store: %v", err)
		}

		machine := &circulationMachine{store: store, now: FakeClock}

		for _, name := range []string{"ada", "bob", "cyd"} {
			machine.members = append(machine.members, GivenMemberWithType(t, store, name, 2, 7))
		}

		for _, title := range []string{"Dune", "Emma"} {
			book, _ := GivenBook(t, store, title, 2)
			machine.books = append(machine.books, book)
		}

		rt.Repeat(map[string]func(*rapid.T){
			"borrow":          machine.borrow,
			"reserve":         machine.reserve,
			"return":          machine.returnLoan,
			"payFine":         machine.payFine,
			"advanceAndSweep": machine.advanceAndSweep,
			"":                machine.check,
		})
	})
}
