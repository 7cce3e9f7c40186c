package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine/internal/adapters"
)

const (
	colEmail            = "email"
	colName             = "name"
	colBalance          = "balance"
	colMembershipTypeID = "membership_type_id"
	colTitle            = "title"
	colMaxBooks         = "max_books"
	colLoanDays         = "loan_days"

	actionFindMember         = "find_member"
	actionLockMember         = "lock_member"
	actionFindMemberByEmail  = "find_member_by_email"
	actionSaveMember         = "save_member"
	actionAdjustBalance      = "adjust_member_balance"
	actionFindBook           = "find_book"
	actionSaveBook           = "save_book"
	actionFindMembershipType = "find_membership_type"
	actionSaveMembershipType = "save_membership_type"
)

func (t *pgTx) selectMembers() *goqu.SelectDataset {
	return t.store.dialect.
		From(t.store.table(tableMembers)).
		Select(
			goqu.Cast(goqu.C(colID), castText),
			goqu.C(colEmail),
			goqu.C(colName),
			goqu.Cast(goqu.C(colBalance), castText),
			goqu.Cast(goqu.C(colMembershipTypeID), castText),
		)
}

func scanMember(rows adapters.DBRows) (circulation.Member, error) {
	var (
		id, balance      string
		membershipTypeID *string
		member           circulation.Member
	)

	if err := rows.Scan(&id, &member.Email, &member.Name, &balance, &membershipTypeID); err != nil {
		return circulation.Member{}, err
	}

	p := rowParser{}
	member.ID = p.uuid(id)
	member.Balance = p.decimal(balance)
	member.MembershipTypeID = p.optionalUUID(membershipTypeID)

	return member, p.err
}

// FindMember loads one member.
func (t *pgTx) FindMember(ctx context.Context, memberID uuid.UUID) (circulation.Member, error) {
	ds := t.selectMembers().Where(goqu.C(colID).Eq(memberID.String()))

	return queryOne(ctx, t, actionFindMember, ds, scanMember, circulation.ErrMemberNotFound)
}

// LockMember loads one member and locks its row until the transaction ends.
func (t *pgTx) LockMember(ctx context.Context, memberID uuid.UUID) (circulation.Member, error) {
	ds := t.selectMembers().
		Where(goqu.C(colID).Eq(memberID.String())).
		ForUpdate(exp.Wait)

	return queryOne(ctx, t, actionLockMember, ds, scanMember, circulation.ErrMemberNotFound)
}

// FindMemberByEmail loads one member by email address.
func (t *pgTx) FindMemberByEmail(ctx context.Context, email string) (circulation.Member, error) {
	ds := t.selectMembers().Where(goqu.C(colEmail).Eq(email))

	return queryOne(ctx, t, actionFindMemberByEmail, ds, scanMember, circulation.ErrMemberNotFound)
}

// SaveMember inserts or overwrites a member.
func (t *pgTx) SaveMember(ctx context.Context, member circulation.Member) error {
	ds := t.store.dialect.
		Insert(t.store.table(tableMembers)).
		Rows(goqu.Record{
			colID:               member.ID.String(),
			colEmail:            member.Email,
			colName:             member.Name,
			colBalance:          circulation.ToMoney(member.Balance).StringFixed(2),
			colMembershipTypeID: nullableUUID(member.MembershipTypeID),
		}).
		OnConflict(goqu.DoUpdate(colID, goqu.Record{
			colEmail:            goqu.L("EXCLUDED." + colEmail),
			colName:             goqu.L("EXCLUDED." + colName),
			colBalance:          goqu.L("EXCLUDED." + colBalance),
			colMembershipTypeID: goqu.L("EXCLUDED." + colMembershipTypeID),
		}))

	_, err := t.exec(ctx, actionSaveMember, ds)

	return err
}

// AdjustMemberBalance adds delta to the stored balance relative to its current value.
func (t *pgTx) AdjustMemberBalance(ctx context.Context, memberID uuid.UUID, delta decimal.Decimal) error {
	ds := t.store.dialect.
		Update(t.store.table(tableMembers)).
		Set(goqu.Record{
			colBalance: goqu.L("? + ?::numeric", goqu.C(colBalance), circulation.ToMoney(delta).StringFixed(2)),
		}).
		Where(goqu.C(colID).Eq(memberID.String()))

	return t.execExpectingRow(ctx, actionAdjustBalance, ds, circulation.ErrMemberNotFound)
}

func scanBook(rows adapters.DBRows) (circulation.Book, error) {
	var (
		id   string
		book circulation.Book
	)

	if err := rows.Scan(&id, &book.Title); err != nil {
		return circulation.Book{}, err
	}

	p := rowParser{}
	book.ID = p.uuid(id)

	return book, p.err
}

// FindBook loads one book.
func (t *pgTx) FindBook(ctx context.Context, bookID uuid.UUID) (circulation.Book, error) {
	ds := t.store.dialect.
		From(t.store.table(tableBooks)).
		Select(goqu.Cast(goqu.C(colID), castText), goqu.C(colTitle)).
		Where(goqu.C(colID).Eq(bookID.String()))

	return queryOne(ctx, t, actionFindBook, ds, scanBook, circulation.ErrBookNotFound)
}

// SaveBook inserts or overwrites a book.
func (t *pgTx) SaveBook(ctx context.Context, book circulation.Book) error {
	ds := t.store.dialect.
		Insert(t.store.table(tableBooks)).
		Rows(goqu.Record{
			colID:    book.ID.String(),
			colTitle: book.Title,
		}).
		OnConflict(goqu.DoUpdate(colID, goqu.Record{colTitle: goqu.L("EXCLUDED." + colTitle)}))

	_, err := t.exec(ctx, actionSaveBook, ds)

	return err
}

func scanMembershipType(rows adapters.DBRows) (circulation.MembershipType, error) {
	var (
		id                 string
		maxBooks, loanDays int64
		membershipType     circulation.MembershipType
	)

	if err := rows.Scan(&id, &membershipType.Name, &maxBooks, &loanDays); err != nil {
		return circulation.MembershipType{}, err
	}

	p := rowParser{}
	membershipType.ID = p.uuid(id)
	membershipType.MaxBooks = int(maxBooks)
	membershipType.LoanDays = int(loanDays)

	return membershipType, p.err
}

// FindMembershipType loads one membership type.
func (t *pgTx) FindMembershipType(ctx context.Context, membershipTypeID uuid.UUID) (circulation.MembershipType, error) {
	ds := t.store.dialect.
		From(t.store.table(tableMembershipTypes)).
		Select(goqu.Cast(goqu.C(colID), castText), goqu.C(colName), goqu.C(colMaxBooks), goqu.C(colLoanDays)).
		Where(goqu.C(colID).Eq(membershipTypeID.String()))

	return queryOne(ctx, t, actionFindMembershipType, ds, scanMembershipType, circulation.ErrMembershipTypeNotFound)
}

// SaveMembershipType inserts or overwrites a membership type.
func (t *pgTx) SaveMembershipType(ctx context.Context, membershipType circulation.MembershipType) error {
	ds := t.store.dialect.
		Insert(t.store.table(tableMembershipTypes)).
		Rows(goqu.Record{
			colID:       membershipType.ID.String(),
			colName:     membershipType.Name,
			colMaxBooks: membershipType.MaxBooks,
			colLoanDays: membershipType.LoanDays,
		}).
		OnConflict(goqu.DoUpdate(colID, goqu.Record{
			colName:     goqu.L("EXCLUDED." + colName),
			colMaxBooks: goqu.L("EXCLUDED." + colMaxBooks),
			colLoanDays: goqu.L("EXCLUDED." + colLoanDays),
		}))

	_, err := t.exec(ctx, actionSaveMembershipType, ds)

	return err
}
