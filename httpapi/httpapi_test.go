package httpapi_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/memoryengine"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
	"github.com/AntonStoeckl/library-circulation/httpapi"
	. "github.com/AntonStoeckl/library-circulation/testutil/fixtures" //nolint:revive
)

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type apiLoan struct {
	ID     uuid.UUID `json:"id"`
	CopyID uuid.UUID `json:"copy_id"`
	Status string    `json:"status"`
}

type apiCopy struct {
	ID      uuid.UUID `json:"id"`
	Barcode string    `json:"barcode"`
	Status  string    `json:"status"`
}

type apiFine struct {
	ID     uuid.UUID `json:"id"`
	Amount string    `json:"amount"`
	Status string    `json:"status"`
}

func newAPI(t *testing.T, opts ...httpapi.Option) (http.Handler, *memoryengine.Store) {
	t.Helper()

	store, err := memoryengine.NewStore()
	require.NoError(t, err)

	opts = append([]httpapi.Option{httpapi.WithClock(func() time.Time { return FakeClock })}, opts...)
	router, err := httpapi.NewRouter(httpapi.NewCoreHandlers(store, httpapi.HandlerOptions{}), opts...)
	require.NoError(t, err)

	return router, store
}

func call(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := jsoniter.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}

func Test_Healthz(t *testing.T) {
	router, _ := newAPI(t)

	rec := call(t, router, http.MethodGet, "/healthz", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_Borrow_Success_ByBook(t *testing.T) {
	// arrange
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	book, copies := GivenBook(t, store, "Dune", 1)

	// act
	rec := call(t, router, http.MethodPost, "/loans", map[string]any{
		"member_id": member.ID,
		"book_id":   book.ID,
	}, nil)

	// assert
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decodeBody[apiLoan](t, rec)
	assert.Equal(t, copies[0].ID, loan.CopyID)
	assert.Equal(t, string(circulation.LoanActive), loan.Status)
	assert.Equal(t, circulation.CopyLoaned, Copy(t, store, copies[0].ID).Status)
}

func Test_Borrow_MapsErrorKindsToStatusCodes(t *testing.T) {
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	other := GivenMember(t, store, "bob")
	book, copies := GivenBook(t, store, "Dune", 1)
	GivenActiveLoan(t, store, other, copies[0], FakeClock, 14)

	testCases := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{
			name:   "no copy left",
			body:   map[string]any{"member_id": member.ID, "book_id": book.ID},
			status: http.StatusUnprocessableEntity,
			kind:   "business",
		},
		{
			name:   "unknown member",
			body:   map[string]any{"member_id": uuid.New(), "book_id": book.ID},
			status: http.StatusNotFound,
			kind:   "not_found",
		},
		{
			name:   "malformed json",
			body:   `{"member_id":`,
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
		{
			name:   "missing member",
			body:   map[string]any{"book_id": book.ID},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			rec := call(t, router, http.MethodPost, "/loans", tc.body, nil)

			// assert
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			body := decodeBody[apiError](t, rec)
			assert.Equal(t, tc.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func Test_Return_IsRejected_WhenAlreadyReturned(t *testing.T) {
	// arrange
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	loan := GivenActiveLoan(t, store, member, copies[0], FakeClock.Add(-Days(2)), 14)

	// act
	first := call(t, router, http.MethodPost, "/loans/"+loan.ID.String()+"/return", nil, nil)
	second := call(t, router, http.MethodPost, "/loans/"+loan.ID.String()+"/return", nil, nil)

	// assert
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, string(circulation.LoanReturned), decodeBody[apiLoan](t, first).Status)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
}

func Test_Return_BadRequest_WhenLoanIDIsMalformed(t *testing.T) {
	router, _ := newAPI(t)

	rec := call(t, router, http.MethodPost, "/loans/not-a-uuid/return", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Borrow_ReplaysResponse_ForRepeatedIdempotencyKey(t *testing.T) {
	// arrange
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	book, _ := GivenBook(t, store, "Dune", 2)
	body := map[string]any{"member_id": member.ID, "book_id": book.ID}
	headers := map[string]string{httpapi.IdempotencyKeyHeader: "borrow-1"}

	// act
	first := call(t, router, http.MethodPost, "/loans", body, headers)
	second := call(t, router, http.MethodPost, "/loans", body, headers)

	// assert
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	list := call(t, router, http.MethodGet, "/loans?member_id="+member.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decodeBody[[]apiLoan](t, list), 1)
}

// conflictOnceBorrowHandler loses the first race and succeeds afterwards.
type conflictOnceBorrowHandler struct {
	calls int
}

func (h *conflictOnceBorrowHandler) Handle(
	_ context.Context,
	command loanledger.BorrowCommand,
) (circulation.Loan, shell.HandlerResult, error) {

	h.calls++
	if h.calls == 1 {
		return circulation.Loan{}, shell.HandlerResult{}, circulation.ErrConcurrencyConflict
	}

	return circulation.Loan{ID: uuid.New(), MemberID: command.MemberID, Status: circulation.LoanActive}, shell.HandlerResult{}, nil
}

func Test_Borrow_ExecutesAgain_WhenKeyedRequestConflicted(t *testing.T) {
	// arrange
	handler := &conflictOnceBorrowHandler{}
	router, err := httpapi.NewRouter(httpapi.Handlers{Borrow: handler})
	require.NoError(t, err)
	body := map[string]any{"member_id": uuid.New(), "book_id": uuid.New()}
	headers := map[string]string{httpapi.IdempotencyKeyHeader: "borrow-conflict"}

	// act
	first := call(t, router, http.MethodPost, "/loans", body, headers)
	second := call(t, router, http.MethodPost, "/loans", body, headers)

	// assert
	assert.Equal(t, http.StatusConflict, first.Code)
	assert.Equal(t, "conflict", decodeBody[apiError](t, first).Kind)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, handler.calls)
}

func Test_Reservations_PlaceQueryAndCancel(t *testing.T) {
	// arrange
	router, store := newAPI(t)
	holder := GivenMember(t, store, "ada")
	waiter := GivenMember(t, store, "bob")
	book, copies := GivenBook(t, store, "Dune", 1)
	GivenActiveLoan(t, store, holder, copies[0], FakeClock, 14)

	// act
	placed := call(t, router, http.MethodPost, "/reservations", map[string]any{
		"member_id": waiter.ID,
		"book_id":   book.ID,
	}, nil)
	position := call(t, router, http.MethodGet, "/books/"+book.ID.String()+"/queue/"+waiter.ID.String(), nil, nil)

	reservation := decodeBody[struct {
		ID uuid.UUID `json:"id"`
	}](t, placed)
	cancelled := call(t, router, http.MethodDelete, "/reservations/"+reservation.ID.String(), nil, nil)
	positionAfter := call(t, router, http.MethodGet, "/books/"+book.ID.String()+"/queue/"+waiter.ID.String(), nil, nil)

	// assert
	require.Equal(t, http.StatusCreated, placed.Code, placed.Body.String())
	require.Equal(t, http.StatusOK, position.Code)
	assert.Equal(t, 1, decodeBody[struct {
		Position int `json:"position"`
	}](t, position).Position)
	assert.Equal(t, http.StatusNoContent, cancelled.Code)
	assert.JSONEq(t, `{"position":0}`, positionAfter.Body.String())
}

func Test_Reservations_IsRejected_WhenBookIsAvailable(t *testing.T) {
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	book, _ := GivenBook(t, store, "Dune", 1)

	rec := call(t, router, http.MethodPost, "/reservations", map[string]any{"member_id": member.ID, "book_id": book.ID}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func Test_Copies_AddListAndRemove(t *testing.T) {
	// arrange
	router, store := newAPI(t)
	book, _ := GivenBook(t, store, "Dune", 1)
	copiesPath := "/books/" + book.ID.String() + "/copies"

	// act
	added := call(t, router, http.MethodPost, copiesPath, map[string]any{"barcode": "DUNE-0002"}, nil)
	generated := call(t, router, http.MethodPost, copiesPath, nil, nil)
	duplicate := call(t, router, http.MethodPost, copiesPath, map[string]any{"barcode": "DUNE-0002"}, nil)
	listed := call(t, router, http.MethodGet, copiesPath, nil, nil)

	newCopy := decodeBody[apiCopy](t, added)
	removed := call(t, router, http.MethodDelete, "/copies/"+newCopy.ID.String(), nil, nil)
	listedAfter := call(t, router, http.MethodGet, copiesPath, nil, nil)

	// assert
	require.Equal(t, http.StatusCreated, added.Code, added.Body.String())
	assert.Equal(t, "DUNE-0002", newCopy.Barcode)
	require.Equal(t, http.StatusCreated, generated.Code, generated.Body.String())
	assert.Equal(t, http.StatusUnprocessableEntity, duplicate.Code)
	assert.Len(t, decodeBody[[]apiCopy](t, listed), 3)
	assert.Equal(t, http.StatusNoContent, removed.Code)
	assert.Len(t, decodeBody[[]apiCopy](t, listedAfter), 2)
}

func Test_Copies_RemoveIsRejected_WhenCopyIsLoaned(t *testing.T) {
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	GivenActiveLoan(t, store, member, copies[0], FakeClock, 14)

	rec := call(t, router, http.MethodDelete, "/copies/"+copies[0].ID.String(), nil, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func Test_Fines_RecomputePayAndList(t *testing.T) {
	// arrange
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	loan := GivenActiveLoan(t, store, member, copies[0], FakeClock.Add(-Days(17)), 14)

	// act
	recomputed := call(t, router, http.MethodPost, "/loans/"+loan.ID.String()+"/fine", nil, nil)
	fine := decodeBody[apiFine](t, recomputed)
	paid := call(t, router, http.MethodPost, "/fines/"+fine.ID.String()+"/pay", nil, nil)
	paidAgain := call(t, router, http.MethodPost, "/fines/"+fine.ID.String()+"/pay", nil, nil)
	listed := call(t, router, http.MethodGet, "/fines?member_id="+member.ID.String(), nil, nil)

	// assert
	require.Equal(t, http.StatusOK, recomputed.Code, recomputed.Body.String())
	assert.Equal(t, "3.00", fine.Amount)
	assert.Equal(t, http.StatusNoContent, paid.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, paidAgain.Code)

	fines := decodeBody[[]apiFine](t, listed)
	require.Len(t, fines, 1)
	assert.Equal(t, string(circulation.FinePaid), fines[0].Status)
	assert.True(t, Member(t, store, member.ID).Balance.IsZero())
}

func Test_Fines_Recompute_NoContent_WhenLoanIsNotLate(t *testing.T) {
	router, store := newAPI(t)
	member := GivenMember(t, store, "ada")
	_, copies := GivenBook(t, store, "Dune", 1)
	loan := GivenActiveLoan(t, store, member, copies[0], FakeClock, 14)

	rec := call(t, router, http.MethodPost, "/loans/"+loan.ID.String()+"/fine", nil, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_CORS_AnswersPreflight_ForAllowedOrigin(t *testing.T) {
	// arrange
	router, _ := newAPI(t, httpapi.WithAllowedOrigins("https://desk.example.com"))

	// act
	rec := call(t, router, http.MethodOptions, "/loans", nil, map[string]string{
		"Origin":                        "https://desk.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})

	// assert
	assert.Equal(t, "https://desk.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
