package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/engine/copyregistry"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
)

var errMissingMemberID = errors.New("member_id is required")

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest(errors.New("invalid " + name))
	}

	return id, nil
}

func optionalQueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, badRequest(errors.New("invalid " + name))
	}

	return &id, nil
}

func (s *server) borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.MemberID == uuid.Nil {
		s.writeError(w, r, badRequest(errMissingMemberID))
		return
	}

	selector := loanledger.Selector{CopyID: req.CopyID, Barcode: req.Barcode, BookID: req.BookID}

	loan, _, err := s.Borrow.Handle(r.Context(), loanledger.BuildBorrowCommand(req.MemberID, selector, s.now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLoanResponse(loan))
}

func (s *server) returnLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathUUID(r, "loanID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	loan, _, err := s.Return.Handle(r.Context(), loanledger.BuildReturnCommand(loanID, s.now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

func (s *server) listLoans(w http.ResponseWriter, r *http.Request) {
	memberID, err := optionalQueryUUID(r, "member_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	loans, err := s.ListLoans.Handle(r.Context(), loanledger.ListLoansQuery{MemberID: memberID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapAll(loans, toLoanResponse))
}

func (s *server) placeReservation(w http.ResponseWriter, r *http.Request) {
	var req placeReservationRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.MemberID == uuid.Nil || req.BookID == uuid.Nil {
		s.writeError(w, r, badRequest(errors.New("member_id and book_id are required")))
		return
	}

	reservation, _, err := s.PlaceReservation.Handle(
		r.Context(),
		loanledger.BuildPlaceReservationCommand(req.BookID, req.MemberID, s.now()),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReservationResponse(reservation))
}

func (s *server) cancelReservation(w http.ResponseWriter, r *http.Request) {
	reservationID, err := pathUUID(r, "reservationID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, _, err = s.CancelReservation.Handle(
		r.Context(),
		loanledger.BuildCancelReservationCommand(reservationID, s.now()),
	); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) queuePosition(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathUUID(r, "bookID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	memberID, err := pathUUID(r, "memberID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	position, err := s.QueuePosition.Handle(r.Context(), loanledger.QueuePositionQuery{BookID: bookID, MemberID: memberID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, queuePositionResponse{Position: position})
}

func (s *server) listCopies(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathUUID(r, "bookID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	copies, err := s.ListCopies.Handle(r.Context(), copyregistry.ListCopiesQuery{BookID: bookID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapAll(copies, toCopyResponse))
}

func (s *server) addCopy(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathUUID(r, "bookID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req addCopyRequest
	if r.ContentLength != 0 {
		if err = decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	bookCopy, _, err := s.AddCopy.Handle(r.Context(), copyregistry.BuildAddCopyCommand(bookID, req.Barcode, s.now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCopyResponse(bookCopy))
}

func (s *server) removeCopy(w http.ResponseWriter, r *http.Request) {
	copyID, err := pathUUID(r, "copyID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, _, err = s.RemoveCopy.Handle(r.Context(), copyregistry.BuildRemoveCopyCommand(copyID)); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) payFine(w http.ResponseWriter, r *http.Request) {
	fineID, err := pathUUID(r, "fineID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, _, err = s.PayFine.Handle(r.Context(), fineledger.BuildPayFineCommand(fineID, s.now())); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) recomputeFine(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathUUID(r, "loanID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fine, _, err := s.RecomputeFine.Handle(r.Context(), fineledger.BuildRecomputeFineCommand(loanID, s.now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if fine.ID == uuid.Nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, toFineResponse(fine))
}

func (s *server) listFines(w http.ResponseWriter, r *http.Request) {
	memberID, err := optionalQueryUUID(r, "member_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fines, err := s.ListFines.Handle(r.Context(), fineledger.ListFinesQuery{MemberID: memberID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapAll(fines, toFineResponse))
}
