package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

type borrowRequest struct {
	MemberID uuid.UUID  `json:"member_id"`
	CopyID   *uuid.UUID `json:"copy_id,omitempty"`
	Barcode  string     `json:"barcode,omitempty"`
	BookID   *uuid.UUID `json:"book_id,omitempty"`
}

type placeReservationRequest struct {
	MemberID uuid.UUID `json:"member_id"`
	BookID   uuid.UUID `json:"book_id"`
}

type addCopyRequest struct {
	Barcode string `json:"barcode,omitempty"`
}

type loanResponse struct {
	ID         uuid.UUID  `json:"id"`
	CopyID     uuid.UUID  `json:"copy_id"`
	BookID     uuid.UUID  `json:"book_id"`
	MemberID   uuid.UUID  `json:"member_id"`
	Status     string     `json:"status"`
	LoanDate   time.Time  `json:"loan_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
}

func toLoanResponse(loan circulation.Loan) loanResponse {
	return loanResponse{
		ID:         loan.ID,
		CopyID:     loan.CopyID,
		BookID:     loan.BookID,
		MemberID:   loan.MemberID,
		Status:     string(loan.Status),
		LoanDate:   loan.LoanDate,
		DueDate:    loan.DueDate,
		ReturnDate: loan.ReturnDate,
	}
}

type reservationResponse struct {
	ID         uuid.UUID  `json:"id"`
	Position   int64      `json:"position"`
	BookID     uuid.UUID  `json:"book_id"`
	MemberID   uuid.UUID  `json:"member_id"`
	Status     string     `json:"status"`
	HeldCopyID *uuid.UUID `json:"held_copy_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func toReservationResponse(reservation circulation.Reservation) reservationResponse {
	return reservationResponse{
		ID:         reservation.ID,
		Position:   reservation.Position,
		BookID:     reservation.BookID,
		MemberID:   reservation.MemberID,
		Status:     string(reservation.Status),
		HeldCopyID: reservation.HeldCopyID,
		CreatedAt:  reservation.CreatedAt,
		ExpiresAt:  reservation.ExpiresAt,
	}
}

type copyResponse struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"book_id"`
	Barcode   string    `json:"barcode"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toCopyResponse(bookCopy circulation.BookCopy) copyResponse {
	return copyResponse{
		ID:        bookCopy.ID,
		BookID:    bookCopy.BookID,
		Barcode:   bookCopy.Barcode,
		Status:    string(bookCopy.Status),
		CreatedAt: bookCopy.CreatedAt,
	}
}

type fineResponse struct {
	ID          uuid.UUID `json:"id"`
	LoanID      uuid.UUID `json:"loan_id"`
	MemberID    uuid.UUID `json:"member_id"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	FineDate    time.Time `json:"fine_date"`
	LastUpdated time.Time `json:"last_updated"`
}

func toFineResponse(fine circulation.Fine) fineResponse {
	return fineResponse{
		ID:          fine.ID,
		LoanID:      fine.LoanID,
		MemberID:    fine.MemberID,
		Amount:      circulation.ToMoney(fine.Amount).StringFixed(2),
		Status:      string(fine.Status),
		FineDate:    fine.FineDate,
		LastUpdated: fine.LastUpdated,
	}
}

type queuePositionResponse struct {
	Position int `json:"position"`
}

func mapAll[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}

	return out
}
