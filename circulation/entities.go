package circulation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CopyStatus is the physical availability of a book copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyLoaned    CopyStatus = "LOANED"
	CopyReserved  CopyStatus = "RESERVED"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending        ReservationStatus = "PENDING"
	ReservationReadyForPickup ReservationStatus = "READY_FOR_PICKUP"
	ReservationFulfilled      ReservationStatus = "FULFILLED"
	ReservationExpired        ReservationStatus = "EXPIRED"
)

// IsOpen reports whether the reservation still holds a place in the queue or a copy.
func (s ReservationStatus) IsOpen() bool {
	return s == ReservationPending || s == ReservationReadyForPickup
}

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanReturned LoanStatus = "RETURNED"
)

// FineStatus is the lifecycle state of a fine.
type FineStatus string

const (
	FineUnpaid FineStatus = "UNPAID"
	FinePaid   FineStatus = "PAID"
)

// BookCopy is one physical, barcoded instance of a book.
type BookCopy struct {
	ID        uuid.UUID
	BookID    uuid.UUID
	Barcode   string
	Status    CopyStatus
	CreatedAt time.Time
}

// Reservation is a member's queued claim on a title.
// HeldCopyID is set only while the reservation is READY_FOR_PICKUP. ExpiresAt is set on
// promotion and kept once the reservation is closed.
type Reservation struct {
	ID         uuid.UUID
	Position   int64
	BookID     uuid.UUID
	MemberID   uuid.UUID
	Status     ReservationStatus
	HeldCopyID *uuid.UUID
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// HoldsCopy reports whether this reservation is ready for pickup on the given copy.
func (r Reservation) HoldsCopy(copyID uuid.UUID) bool {
	return r.Status == ReservationReadyForPickup && r.HeldCopyID != nil && *r.HeldCopyID == copyID
}

// Loan binds a member to a specific copy for one borrow-to-return cycle.
type Loan struct {
	ID         uuid.UUID
	CopyID     uuid.UUID
	BookID     uuid.UUID
	MemberID   uuid.UUID
	Status     LoanStatus
	LoanDate   time.Time
	DueDate    time.Time
	ReturnDate *time.Time
}

// Fine is the charge for one loan's lateness.
type Fine struct {
	ID          uuid.UUID
	LoanID      uuid.UUID
	MemberID    uuid.UUID
	Amount      decimal.Decimal
	Status      FineStatus
	FineDate    time.Time
	LastUpdated time.Time
}

// Member is owned by the membership context; the engine only mutates Balance.
type Member struct {
	ID               uuid.UUID
	Email            string
	Name             string
	Balance          decimal.Decimal
	MembershipTypeID *uuid.UUID
}

// MembershipType defines borrowing limits.
type MembershipType struct {
	ID       uuid.UUID
	Name     string
	MaxBooks int
	LoanDays int
}

// Book is owned by the catalog context.
type Book struct {
	ID    uuid.UUID
	Title string
}

// LoanFilter narrows loan listings. A nil field does not filter.
type LoanFilter struct {
	MemberID  *uuid.UUID
	Status    *LoanStatus
	DueBefore *time.Time
}

// FineFilter narrows fine listings. A nil field does not filter.
type FineFilter struct {
	MemberID *uuid.UUID
	Status   *FineStatus
}

// ToTimestamp normalizes a time to what the stores persist: UTC with microsecond precision.
func ToTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ToMoney rounds an amount to currency precision.
func ToMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
