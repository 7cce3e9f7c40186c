package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

func Test_statusFor(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "not found", err: circulation.ErrLoanNotFound, status: http.StatusNotFound, kind: "not_found"},
		{name: "business", err: circulation.ErrOutstandingFines, status: http.StatusUnprocessableEntity, kind: "business"},
		{
			name:   "conflict",
			err:    fmt.Errorf("borrow: %w", circulation.ErrConcurrencyConflict),
			status: http.StatusConflict,
			kind:   "conflict",
		},
		{name: "bad request", err: badRequest(errors.New("invalid loanID")), status: http.StatusBadRequest, kind: "bad_request"},
		{name: "timeout", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout, kind: "unknown"},
		{name: "infrastructure", err: circulation.ErrQueryingFailed, status: http.StatusInternalServerError, kind: "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, kind := statusFor(tc.err)

			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, kind)
		})
	}
}
