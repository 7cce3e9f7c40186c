package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine/internal/adapters"
)

const (
	colCopyID     = "copy_id"
	colLoanDate   = "loan_date"
	colDueDate    = "due_date"
	colReturnDate = "return_date"

	actionInsertLoan       = "insert_loan"
	actionFindLoan         = "find_loan"
	actionCountActiveLoans = "count_active_loans"
	actionListLoans        = "list_loans"
	actionCloseLoan        = "close_loan"
)

func (t *pgTx) selectLoans() *goqu.SelectDataset {
	return t.store.dialect.
		From(t.store.table(tableLoans)).
		Select(
			goqu.Cast(goqu.C(colID), castText),
			goqu.Cast(goqu.C(colCopyID), castText),
			goqu.Cast(goqu.C(colBookID), castText),
			goqu.Cast(goqu.C(colMemberID), castText),
			goqu.C(colStatus),
			goqu.C(colLoanDate),
			goqu.C(colDueDate),
			goqu.C(colReturnDate),
		)
}

func scanLoan(rows adapters.DBRows) (circulation.Loan, error) {
	var (
		id, copyID, bookID, memberID, status string
		loanDate, dueDate                    time.Time
		returnDate                           *time.Time
	)

	if err := rows.Scan(&id, &copyID, &bookID, &memberID, &status, &loanDate, &dueDate, &returnDate); err != nil {
		return circulation.Loan{}, err
	}

	p := rowParser{}
	loan := circulation.Loan{
		ID:         p.uuid(id),
		CopyID:     p.uuid(copyID),
		BookID:     p.uuid(bookID),
		MemberID:   p.uuid(memberID),
		Status:     circulation.LoanStatus(status),
		LoanDate:   circulation.ToTimestamp(loanDate),
		DueDate:    circulation.ToTimestamp(dueDate),
		ReturnDate: optionalTimestamp(returnDate),
	}

	return loan, p.err
}

// InsertLoan stores a new loan. A second ACTIVE loan for the copy violates a partial unique index and is a conflict.
func (t *pgTx) InsertLoan(ctx context.Context, loan circulation.Loan) error {
	ds := t.store.dialect.
		Insert(t.store.table(tableLoans)).
		Rows(goqu.Record{
			colID:         loan.ID.String(),
			colCopyID:     loan.CopyID.String(),
			colBookID:     loan.BookID.String(),
			colMemberID:   loan.MemberID.String(),
			colStatus:     string(loan.Status),
			colLoanDate:   loan.LoanDate.UTC(),
			colDueDate:    loan.DueDate.UTC(),
			colReturnDate: nullableTime(loan.ReturnDate),
		})

	_, err := t.exec(ctx, actionInsertLoan, ds)

	return err
}

// FindLoan loads one loan.
func (t *pgTx) FindLoan(ctx context.Context, loanID uuid.UUID) (circulation.Loan, error) {
	ds := t.selectLoans().Where(goqu.C(colID).Eq(loanID.String()))

	return queryOne(ctx, t, actionFindLoan, ds, scanLoan, circulation.ErrLoanNotFound)
}

// CountActiveLoans counts the member's ACTIVE loans.
func (t *pgTx) CountActiveLoans(ctx context.Context, memberID uuid.UUID) (int, error) {
	ds := t.store.dialect.
		From(t.store.table(tableLoans)).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{
			colMemberID: memberID.String(),
			colStatus:   string(circulation.LoanActive),
		})

	count, _, err := queryFirst(ctx, t, actionCountActiveLoans, ds, func(rows adapters.DBRows) (int64, error) {
		var count int64
		err := rows.Scan(&count)

		return count, err
	})

	return int(count), err
}

// ListLoans returns the loans matching the filter in loan date order.
func (t *pgTx) ListLoans(ctx context.Context, filter circulation.LoanFilter) ([]circulation.Loan, error) {
	conditions := make([]exp.Expression, 0, 3)

	if filter.MemberID != nil {
		conditions = append(conditions, goqu.C(colMemberID).Eq(filter.MemberID.String()))
	}

	if filter.Status != nil {
		conditions = append(conditions, goqu.C(colStatus).Eq(string(*filter.Status)))
	}

	if filter.DueBefore != nil {
		conditions = append(conditions, goqu.C(colDueDate).Lt(filter.DueBefore.UTC()))
	}

	ds := t.selectLoans().
		Where(conditions...).
		Order(goqu.C(colLoanDate).Asc(), goqu.C(colID).Asc())

	return queryAll(ctx, t, actionListLoans, ds, scanLoan)
}

// CloseLoan flips an ACTIVE loan to RETURNED.
func (t *pgTx) CloseLoan(ctx context.Context, loanID uuid.UUID, returnDate time.Time) error {
	ds := t.store.dialect.
		Update(t.store.table(tableLoans)).
		Set(goqu.Record{
			colStatus:     string(circulation.LoanReturned),
			colReturnDate: returnDate.UTC(),
		}).
		Where(goqu.Ex{
			colID:     loanID.String(),
			colStatus: string(circulation.LoanActive),
		})

	return t.execCompareAndSet(ctx, actionCloseLoan, ds)
}
