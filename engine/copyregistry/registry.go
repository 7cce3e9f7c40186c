package copyregistry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

const generatedBarcodeLength = 8

// Repository is what the registry needs from a unit of work.
type Repository interface {
	circulation.CopyRepository
	FindBook(ctx context.Context, bookID uuid.UUID) (circulation.Book, error)
}

// Registry is a transaction-scoped view of the book copies.
type Registry struct {
	repo Repository
}

// New binds a Registry to a unit of work.
func New(repo Repository) Registry {
	return Registry{repo: repo}
}

// Find loads one copy.
func (r Registry) Find(ctx context.Context, copyID uuid.UUID) (circulation.BookCopy, error) {
	return r.repo.FindCopy(ctx, copyID)
}

// FindByBarcode loads one copy by its barcode.
func (r Registry) FindByBarcode(ctx context.Context, barcode string) (circulation.BookCopy, error) {
	return r.repo.FindCopyByBarcode(ctx, NormalizeBarcode(barcode))
}

// ListByBook returns all copies of a book in barcode order.
func (r Registry) ListByBook(ctx context.Context, bookID uuid.UUID) ([]circulation.BookCopy, error) {
	return r.repo.ListCopiesByBook(ctx, bookID)
}

// SetStatus writes a status without looking at the current one.
func (r Registry) SetStatus(ctx context.Context, copyID uuid.UUID, status circulation.CopyStatus) error {
	return r.repo.SetCopyStatus(ctx, copyID, status)
}

// CompareAndSetStatus moves a copy from one status to another, or fails with
// circulation.ErrConcurrencyConflict when somebody else moved it first.
func (r Registry) CompareAndSetStatus(ctx context.Context, copyID uuid.UUID, from, to circulation.CopyStatus) error {
	return r.repo.CompareAndSetCopyStatus(ctx, copyID, from, to)
}

// Add registers a new AVAILABLE copy of an existing book.
// An empty barcode gets a generated one.
func (r Registry) Add(ctx context.Context, bookID uuid.UUID, barcode string, now time.Time) (circulation.BookCopy, error) {
	if _, err := r.repo.FindBook(ctx, bookID); err != nil {
		return circulation.BookCopy{}, err
	}

	barcode = NormalizeBarcode(barcode)
	if barcode == "" {
		barcode = GenerateBarcode()
	}

	_, err := r.repo.FindCopyByBarcode(ctx, barcode)

	switch {
	case err == nil:
		return circulation.BookCopy{}, circulation.ErrBarcodeAlreadyExists
	case !errors.Is(err, circulation.ErrCopyNotFound):
		return circulation.BookCopy{}, err
	}

	bookCopy := circulation.BookCopy{
		ID:        uuid.New(),
		BookID:    bookID,
		Barcode:   barcode,
		Status:    circulation.CopyAvailable,
		CreatedAt: circulation.ToTimestamp(now),
	}

	if err = r.repo.InsertCopy(ctx, bookCopy); err != nil {
		return circulation.BookCopy{}, err
	}

	return bookCopy, nil
}

// Remove deletes a copy that is neither loaned nor held for pickup.
func (r Registry) Remove(ctx context.Context, copyID uuid.UUID) (circulation.BookCopy, error) {
	bookCopy, err := r.repo.FindCopy(ctx, copyID)
	if err != nil {
		return circulation.BookCopy{}, err
	}

	if err = DecideRemoval(bookCopy); err != nil {
		return circulation.BookCopy{}, err
	}

	if err = r.repo.DeleteCopy(ctx, copyID); err != nil {
		return circulation.BookCopy{}, err
	}

	return bookCopy, nil
}

// NormalizeBarcode trims surrounding blanks.
func NormalizeBarcode(barcode string) string {
	return strings.TrimSpace(barcode)
}

// GenerateBarcode returns a random upper-case barcode.
func GenerateBarcode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:generatedBarcodeLength])
}
