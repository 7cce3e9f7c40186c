package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine/internal/adapters"
)

const (
	colID        = "id"
	colBookID    = "book_id"
	colBarcode   = "barcode"
	colStatus    = "status"
	colCreatedAt = "created_at"

	actionFindCopy          = "find_copy"
	actionFindCopyByBarcode = "find_copy_by_barcode"
	actionListCopiesByBook  = "list_copies_by_book"
	actionInsertCopy        = "insert_copy"
	actionDeleteCopy        = "delete_copy"
	actionSetCopyStatus     = "set_copy_status"
	actionCASCopyStatus     = "cas_copy_status"
)

func (t *pgTx) selectCopies() *goqu.SelectDataset {
	return t.store.dialect.
		From(t.store.table(tableBookCopies)).
		Select(
			goqu.Cast(goqu.C(colID), castText),
			goqu.Cast(goqu.C(colBookID), castText),
			goqu.C(colBarcode),
			goqu.C(colStatus),
			goqu.C(colCreatedAt),
		)
}

func scanCopy(rows adapters.DBRows) (circulation.BookCopy, error) {
	var (
		id, bookID, status string
		bookCopy           circulation.BookCopy
		createdAt          time.Time
	)

	if err := rows.Scan(&id, &bookID, &bookCopy.Barcode, &status, &createdAt); err != nil {
		return circulation.BookCopy{}, err
	}

	p := rowParser{}
	bookCopy.ID = p.uuid(id)
	bookCopy.BookID = p.uuid(bookID)
	bookCopy.Status = circulation.CopyStatus(status)
	bookCopy.CreatedAt = circulation.ToTimestamp(createdAt)

	return bookCopy, p.err
}

// FindCopy loads one copy.
func (t *pgTx) FindCopy(ctx context.Context, copyID uuid.UUID) (circulation.BookCopy, error) {
	ds := t.selectCopies().Where(goqu.C(colID).Eq(copyID.String()))

	return queryOne(ctx, t, actionFindCopy, ds, scanCopy, circulation.ErrCopyNotFound)
}

// FindCopyByBarcode loads one copy by its barcode.
func (t *pgTx) FindCopyByBarcode(ctx context.Context, barcode string) (circulation.BookCopy, error) {
	ds := t.selectCopies().Where(goqu.C(colBarcode).Eq(barcode))

	return queryOne(ctx, t, actionFindCopyByBarcode, ds, scanCopy, circulation.ErrCopyNotFound)
}

// ListCopiesByBook returns all copies of a book in barcode order.
func (t *pgTx) ListCopiesByBook(ctx context.Context, bookID uuid.UUID) ([]circulation.BookCopy, error) {
	ds := t.selectCopies().
		Where(goqu.C(colBookID).Eq(bookID.String())).
		Order(goqu.C(colBarcode).Asc())

	return queryAll(ctx, t, actionListCopiesByBook, ds, scanCopy)
}

// InsertCopy registers a new copy. A duplicate barcode is a conflict.
func (t *pgTx) InsertCopy(ctx context.Context, bookCopy circulation.BookCopy) error {
	ds := t.store.dialect.
		Insert(t.store.table(tableBookCopies)).
		Rows(goqu.Record{
			colID:        bookCopy.ID.String(),
			colBookID:    bookCopy.BookID.String(),
			colBarcode:   bookCopy.Barcode,
			colStatus:    string(bookCopy.Status),
			colCreatedAt: bookCopy.CreatedAt.UTC(),
		})

	_, err := t.exec(ctx, actionInsertCopy, ds)

	return err
}

// DeleteCopy removes a copy that is AVAILABLE. A copy that changed status concurrently is a conflict.
func (t *pgTx) DeleteCopy(ctx context.Context, copyID uuid.UUID) error {
	ds := t.store.dialect.
		Delete(t.store.table(tableBookCopies)).
		Where(
			goqu.C(colID).Eq(copyID.String()),
			goqu.C(colStatus).Eq(string(circulation.CopyAvailable)),
		)

	return t.execCompareAndSet(ctx, actionDeleteCopy, ds)
}

// SetCopyStatus writes the status unconditionally.
func (t *pgTx) SetCopyStatus(ctx context.Context, copyID uuid.UUID, status circulation.CopyStatus) error {
	ds := t.store.dialect.
		Update(t.store.table(tableBookCopies)).
		Set(goqu.Record{colStatus: string(status)}).
		Where(goqu.C(colID).Eq(copyID.String()))

	return t.execExpectingRow(ctx, actionSetCopyStatus, ds, circulation.ErrCopyNotFound)
}

// CompareAndSetCopyStatus writes the status only if the current one equals from.
func (t *pgTx) CompareAndSetCopyStatus(
	ctx context.Context,
	copyID uuid.UUID,
	from, to circulation.CopyStatus,
) error {

	ds := t.store.dialect.
		Update(t.store.table(tableBookCopies)).
		Set(goqu.Record{colStatus: string(to)}).
		Where(goqu.Ex{
			colID:     copyID.String(),
			colStatus: string(from),
		})

	return t.execCompareAndSet(ctx, actionCASCopyStatus, ds)
}

