package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxFunc is the body of a unit of work. Returning an error rolls the unit back.
type TxFunc func(ctx context.Context, tx Tx) error

// Store hands out units of work. Everything fn writes through tx becomes visible
// atomically when fn returns nil, and nothing becomes visible otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// Tx is the transaction-scoped view of all records the engine touches.
type Tx interface {
	CopyRepository
	ReservationRepository
	LoanRepository
	FineRepository
	MemberRepository
	CatalogRepository
}

// CopyRepository persists book copies.
type CopyRepository interface {
	FindCopy(ctx context.Context, copyID uuid.UUID) (BookCopy, error)
	FindCopyByBarcode(ctx context.Context, barcode string) (BookCopy, error)
	ListCopiesByBook(ctx context.Context, bookID uuid.UUID) ([]BookCopy, error)
	InsertCopy(ctx context.Context, bookCopy BookCopy) error
	DeleteCopy(ctx context.Context, copyID uuid.UUID) error

	// SetCopyStatus writes the status unconditionally. Missing copy: ErrCopyNotFound.
	SetCopyStatus(ctx context.Context, copyID uuid.UUID, status CopyStatus) error

	// CompareAndSetCopyStatus writes the status only if the current one equals from.
	// Zero affected rows: ErrConcurrencyConflict.
	CompareAndSetCopyStatus(ctx context.Context, copyID uuid.UUID, from, to CopyStatus) error
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	// InsertReservation assigns Position. A second open reservation for the same
	// (book, member) is rejected with ErrConcurrencyConflict.
	InsertReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	FindReservation(ctx context.Context, reservationID uuid.UUID) (Reservation, error)

	// ListPendingReservations returns the book's PENDING entries oldest first.
	ListPendingReservations(ctx context.Context, bookID uuid.UUID) ([]Reservation, error)

	// FindOpenReservation returns the member's PENDING or READY_FOR_PICKUP entry for the book.
	FindOpenReservation(ctx context.Context, bookID, memberID uuid.UUID) (Reservation, bool, error)

	// ListReadyReservationsExpiredBy returns READY_FOR_PICKUP entries whose ExpiresAt is before t.
	ListReadyReservationsExpiredBy(ctx context.Context, t time.Time) ([]Reservation, error)

	// UpdateReservation writes status, held copy and expiry if the current status equals from.
	// Zero affected rows: ErrConcurrencyConflict.
	UpdateReservation(ctx context.Context, reservation Reservation, from ReservationStatus) error
	DeleteReservation(ctx context.Context, reservationID uuid.UUID) error
}

// LoanRepository persists loans.
type LoanRepository interface {
	// InsertLoan rejects a second ACTIVE loan for the same copy with ErrConcurrencyConflict.
	InsertLoan(ctx context.Context, loan Loan) error
	FindLoan(ctx context.Context, loanID uuid.UUID) (Loan, error)
	CountActiveLoans(ctx context.Context, memberID uuid.UUID) (int, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error)

	// CloseLoan flips ACTIVE to RETURNED. Zero affected rows: ErrConcurrencyConflict.
	CloseLoan(ctx context.Context, loanID uuid.UUID, returnDate time.Time) error
}

// FineRepository persists fines.
type FineRepository interface {
	FindFine(ctx context.Context, fineID uuid.UUID) (Fine, error)

	// LockFineByLoan returns the loan's fine, locked until the unit of work ends.
	LockFineByLoan(ctx context.Context, loanID uuid.UUID) (Fine, bool, error)

	// LockFine returns the fine, locked until the unit of work ends.
	LockFine(ctx context.Context, fineID uuid.UUID) (Fine, error)

	// InsertFine rejects a second fine for the same loan with ErrConcurrencyConflict.
	InsertFine(ctx context.Context, fine Fine) error

	// UpdateUnpaidFine writes amount, status and lastUpdated while the fine is UNPAID.
	// Zero affected rows: ErrConcurrencyConflict.
	UpdateUnpaidFine(ctx context.Context, fine Fine) error
	ListFines(ctx context.Context, filter FineFilter) ([]Fine, error)
}

// MemberRepository is the member store collaborator.
type MemberRepository interface {
	FindMember(ctx context.Context, memberID uuid.UUID) (Member, error)

	// LockMember returns the member, locked until the unit of work ends.
	LockMember(ctx context.Context, memberID uuid.UUID) (Member, error)
	FindMemberByEmail(ctx context.Context, email string) (Member, error)
	SaveMember(ctx context.Context, member Member) error

	// AdjustMemberBalance adds delta to the stored balance.
	AdjustMemberBalance(ctx context.Context, memberID uuid.UUID, delta decimal.Decimal) error
}

// CatalogRepository is the book and membership type collaborator.
type CatalogRepository interface {
	FindBook(ctx context.Context, bookID uuid.UUID) (Book, error)
	SaveBook(ctx context.Context, book Book) error
	FindMembershipType(ctx context.Context, membershipTypeID uuid.UUID) (MembershipType, error)
	SaveMembershipType(ctx context.Context, membershipType MembershipType) error
}
