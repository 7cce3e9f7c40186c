package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/cors"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/engine/copyregistry"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
)

const (
	logMsgRequestFailed = "http request failed"
	logAttrMethod       = "method"
	logAttrPath         = "path"
	logAttrError        = "error"
)

// Handlers are the command and query handlers the API dispatches to.
// Plain core handlers and their observable wrappers both fit.
type Handlers struct {
	Borrow            shell.CoreCommandHandler[loanledger.BorrowCommand, circulation.Loan]
	Return            shell.CoreCommandHandler[loanledger.ReturnCommand, circulation.Loan]
	ListLoans         shell.CoreQueryHandler[loanledger.ListLoansQuery, []circulation.Loan]
	PlaceReservation  shell.CoreCommandHandler[loanledger.PlaceReservationCommand, circulation.Reservation]
	CancelReservation shell.CoreCommandHandler[loanledger.CancelReservationCommand, circulation.Reservation]
	QueuePosition     shell.CoreQueryHandler[loanledger.QueuePositionQuery, int]
	ListCopies        shell.CoreQueryHandler[copyregistry.ListCopiesQuery, []circulation.BookCopy]
	AddCopy           shell.CoreCommandHandler[copyregistry.AddCopyCommand, circulation.BookCopy]
	RemoveCopy        shell.CoreCommandHandler[copyregistry.RemoveCopyCommand, circulation.BookCopy]
	PayFine           shell.CoreCommandHandler[fineledger.PayFineCommand, circulation.Fine]
	RecomputeFine     shell.CoreCommandHandler[fineledger.RecomputeFineCommand, circulation.Fine]
	ListFines         shell.CoreQueryHandler[fineledger.ListFinesQuery, []circulation.Fine]
}

type server struct {
	Handlers
	serverOptions
}

// NewRouter builds the HTTP handler serving every route.
func NewRouter(handlers Handlers, opts ...Option) (http.Handler, error) {
	options := serverOptions{
		idempotencyCacheSize: defaultIdempotencyCacheSize,
		clock:                time.Now,
	}

	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}

	cache, err := lru.New[string, cachedResponse](options.idempotencyCacheSize)
	if err != nil {
		return nil, err
	}

	s := &server{Handlers: handlers, serverOptions: options}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if options.requestTimeout > 0 {
		r.Use(middleware.Timeout(options.requestTimeout))
	}

	if len(options.allowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: options.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", IdempotencyKeyHeader},
		}).Handler)
	}

	r.Use(idempotency(cache))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", s.borrow)
		r.Get("/", s.listLoans)
		r.Post("/{loanID}/return", s.returnLoan)
		r.Post("/{loanID}/fine", s.recomputeFine)
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", s.placeReservation)
		r.Delete("/{reservationID}", s.cancelReservation)
	})

	r.Route("/books/{bookID}", func(r chi.Router) {
		r.Get("/queue/{memberID}", s.queuePosition)
		r.Get("/copies", s.listCopies)
		r.Post("/copies", s.addCopy)
	})

	r.Delete("/copies/{copyID}", s.removeCopy)

	r.Route("/fines", func(r chi.Router) {
		r.Get("/", s.listFines)
		r.Post("/{fineID}/pay", s.payFine)
	})

	return r, nil
}

func (s *server) now() time.Time {
	return s.clock()
}
