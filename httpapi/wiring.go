package httpapi

import (
	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/copyregistry"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
)

// HandlerOptions carries the per-package options for NewCoreHandlers.
type HandlerOptions struct {
	Loans  []loanledger.Option
	Fines  []fineledger.Option
	Copies []copyregistry.Option
}

// NewCoreHandlers builds the uninstrumented handlers over store.
func NewCoreHandlers(store circulation.Store, opts HandlerOptions) Handlers {
	return Handlers{
		Borrow:            loanledger.NewBorrowHandler(store, opts.Loans...),
		Return:            loanledger.NewReturnHandler(store, opts.Loans...),
		ListLoans:         loanledger.NewListLoansHandler(store),
		PlaceReservation:  loanledger.NewPlaceReservationHandler(store, opts.Loans...),
		CancelReservation: loanledger.NewCancelReservationHandler(store, opts.Loans...),
		QueuePosition:     loanledger.NewQueuePositionHandler(store, opts.Loans...),
		ListCopies:        copyregistry.NewListCopiesHandler(store),
		AddCopy:           copyregistry.NewAddCopyHandler(store, opts.Copies...),
		RemoveCopy:        copyregistry.NewRemoveCopyHandler(store, opts.Copies...),
		PayFine:           fineledger.NewPayFineHandler(store, opts.Fines...),
		RecomputeFine:     fineledger.NewRecomputeFineHandler(store, opts.Fines...),
		ListFines:         fineledger.NewListFinesHandler(store),
	}
}
