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
	colLoanID      = "loan_id"
	colAmount      = "amount"
	colFineDate    = "fine_date"
	colLastUpdated = "last_updated"

	actionFindFine       = "find_fine"
	actionLockFine       = "lock_fine"
	actionLockFineByLoan = "lock_fine_by_loan"
	actionInsertFine     = "insert_fine"
	actionUpdateUnpaid   = "update_unpaid_fine"
	actionListFines      = "list_fines"
)

func (t *pgTx) selectFines() *goqu.SelectDataset {
	return t.store.dialect.
		From(t.store.table(tableFines)).
		Select(
			goqu.Cast(goqu.C(colID), castText),
			goqu.Cast(goqu.C(colLoanID), castText),
			goqu.Cast(goqu.C(colMemberID), castText),
			goqu.Cast(goqu.C(colAmount), castText),
			goqu.C(colStatus),
			goqu.C(colFineDate),
			goqu.C(colLastUpdated),
		)
}

func scanFine(rows adapters.DBRows) (circulation.Fine, error) {
	var (
		id, loanID, memberID, amount, status string
		fineDate, lastUpdated                time.Time
	)

	if err := rows.Scan(&id, &loanID, &memberID, &amount, &status, &fineDate, &lastUpdated); err != nil {
		return circulation.Fine{}, err
	}

	p := rowParser{}
	fine := circulation.Fine{
		ID:          p.uuid(id),
		LoanID:      p.uuid(loanID),
		MemberID:    p.uuid(memberID),
		Amount:      p.decimal(amount),
		Status:      circulation.FineStatus(status),
		FineDate:    circulation.ToTimestamp(fineDate),
		LastUpdated: circulation.ToTimestamp(lastUpdated),
	}

	return fine, p.err
}

// FindFine loads one fine.
func (t *pgTx) FindFine(ctx context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	ds := t.selectFines().Where(goqu.C(colID).Eq(fineID.String()))

	return queryOne(ctx, t, actionFindFine, ds, scanFine, circulation.ErrFineNotFound)
}

// LockFine loads one fine and locks its row until the transaction ends.
func (t *pgTx) LockFine(ctx context.Context, fineID uuid.UUID) (circulation.Fine, error) {
	ds := t.selectFines().
		Where(goqu.C(colID).Eq(fineID.String())).
		ForUpdate(exp.Wait)

	return queryOne(ctx, t, actionLockFine, ds, scanFine, circulation.ErrFineNotFound)
}

// LockFineByLoan loads the loan's fine, if any, and locks its row until the transaction ends.
func (t *pgTx) LockFineByLoan(ctx context.Context, loanID uuid.UUID) (circulation.Fine, bool, error) {
	ds := t.selectFines().
		Where(goqu.C(colLoanID).Eq(loanID.String())).
		ForUpdate(exp.Wait)

	return queryFirst(ctx, t, actionLockFineByLoan, ds, scanFine)
}

// InsertFine stores a new fine. A second fine for the loan violates a unique index and is a conflict.
func (t *pgTx) InsertFine(ctx context.Context, fine circulation.Fine) error {
	ds := t.store.dialect.
		Insert(t.store.table(tableFines)).
		Rows(goqu.Record{
			colID:          fine.ID.String(),
			colLoanID:      fine.LoanID.String(),
			colMemberID:    fine.MemberID.String(),
			colAmount:      circulation.ToMoney(fine.Amount).StringFixed(2),
			colStatus:      string(fine.Status),
			colFineDate:    fine.FineDate.UTC(),
			colLastUpdated: fine.LastUpdated.UTC(),
		})

	_, err := t.exec(ctx, actionInsertFine, ds)

	return err
}

// UpdateUnpaidFine writes amount, status and lastUpdated while the stored fine is still UNPAID.
func (t *pgTx) UpdateUnpaidFine(ctx context.Context, fine circulation.Fine) error {
	ds := t.store.dialect.
		Update(t.store.table(tableFines)).
		Set(goqu.Record{
			colAmount:      circulation.ToMoney(fine.Amount).StringFixed(2),
			colStatus:      string(fine.Status),
			colLastUpdated: fine.LastUpdated.UTC(),
		}).
		Where(goqu.Ex{
			colID:     fine.ID.String(),
			colStatus: string(circulation.FineUnpaid),
		})

	return t.execCompareAndSet(ctx, actionUpdateUnpaid, ds)
}

// ListFines returns the fines matching the filter in fine date order.
func (t *pgTx) ListFines(ctx context.Context, filter circulation.FineFilter) ([]circulation.Fine, error) {
	conditions := make([]exp.Expression, 0, 2)

	if filter.MemberID != nil {
		conditions = append(conditions, goqu.C(colMemberID).Eq(filter.MemberID.String()))
	}

	if filter.Status != nil {
		conditions = append(conditions, goqu.C(colStatus).Eq(string(*filter.Status)))
	}

	ds := t.selectFines().
		Where(conditions...).
		Order(goqu.C(colFineDate).Asc(), goqu.C(colID).Asc())

	return queryAll(ctx, t, actionListFines, ds, scanFine)
}
