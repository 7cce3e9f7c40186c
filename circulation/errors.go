package circulation

import (
	"errors"
)

// Kind classifies an error returned by an engine operation.
type Kind string

const (
	// KindUnknown is any error that is not part of the circulation taxonomy (infrastructure failures).
	KindUnknown Kind = "unknown"

	// KindNotFound means a referenced entity does not exist. Never retried.
	KindNotFound Kind = "not_found"

	// KindBusiness means a domain rule was violated. Never retried by the engine.
	KindBusiness Kind = "business"

	// KindConflict means a concurrent mutation won a race. Safe to retry.
	KindConflict Kind = "conflict"
)

// Kind sentinels. Every domain error wraps exactly one of them.
var (
	ErrNotFound            = errors.New("not found")
	ErrBusinessRule        = errors.New("business rule violated")
	ErrConcurrencyConflict = errors.New("concurrency error, no rows were affected")
)

// Infrastructure sentinels.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptySchemaName       = errors.New("empty schema name supplied")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryingFailed        = errors.New("querying failed")
	ErrExecutingFailed       = errors.New("executing statement failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrTransactionFailed     = errors.New("transaction failed")
)

// NotFound errors.
var (
	ErrMemberNotFound         = notFound("member not found")
	ErrMembershipTypeNotFound = notFound("membership type not found")
	ErrBookNotFound           = notFound("book not found")
	ErrCopyNotFound           = notFound("book copy not found")
	ErrLoanNotFound           = notFound("loan not found")
	ErrFineNotFound           = notFound("fine not found")
	ErrReservationNotFound    = notFound("reservation not found")
)

// Business errors.
var (
	ErrOutstandingFines        = business("member has outstanding fines, please pay before borrowing")
	ErrBorrowLimitReached      = business("member has reached the borrowing limit of the membership type")
	ErrNoAvailableCopies       = business("no available copies for this book")
	ErrCopyReservedForOther    = business("book copy is reserved for another member")
	ErrReservationQueueExists  = business("there is a reservation queue for this book, please join the queue")
	ErrCopyNotAvailable        = business("book copy is not available")
	ErrCopySelectorMissing     = business("a copy id, a barcode or a book id is required")
	ErrLoanAlreadyReturned     = business("book already returned")
	ErrFineAlreadyPaid         = business("fine is already paid")
	ErrBookIsAvailable         = business("book is available, no need to reserve, please borrow it directly")
	ErrDuplicateReservation    = business("member already has an open reservation for this book")
	ErrReservationNotOpen      = business("reservation is not open")
	ErrBarcodeAlreadyExists    = business("barcode already exists")
	ErrCopyInCirculation       = business("cannot remove a copy that is loaned or held for pickup")
	ErrInvalidStatusTransition = business("invalid status transition")
)

// domainError carries a human-readable message and unwraps to its kind sentinel.
type domainError struct {
	msg  string
	kind error
}

func (e *domainError) Error() string {
	return e.msg
}

func (e *domainError) Unwrap() error {
	return e.kind
}

func notFound(msg string) error {
	return &domainError{msg: msg, kind: ErrNotFound}
}

func business(msg string) error {
	return &domainError{msg: msg, kind: ErrBusinessRule}
}

// KindOf reports which taxonomy kind an error belongs to.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBusinessRule):
		return KindBusiness
	default:
		return KindUnknown
	}
}

// IsConflict reports whether err is a lost concurrency race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
