package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

const maxBodyBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errBadRequest marks malformed input such as broken JSON or an invalid id.
var errBadRequest = errors.New("bad request")

type badRequestError struct {
	cause error
}

func (e badRequestError) Error() string { return e.cause.Error() }

func (e badRequestError) Unwrap() error { return errBadRequest }

func badRequest(cause error) error {
	return badRequestError{cause: cause}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func decode(r *http.Request, into any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest(err)
	}

	if err = json.Unmarshal(body, into); err != nil {
		return badRequest(err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) (int, string) {
	switch kind := circulation.KindOf(err); {
	case kind == circulation.KindNotFound:
		return http.StatusNotFound, string(kind)
	case kind == circulation.KindBusiness:
		return http.StatusUnprocessableEntity, string(kind)
	case kind == circulation.KindConflict:
		return http.StatusConflict, string(kind)
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(circulation.KindUnknown)
	default:
		return http.StatusInternalServerError, string(circulation.KindUnknown)
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		if s.logger != nil {
			s.logger.Error(logMsgRequestFailed, logAttrMethod, r.Method, logAttrPath, r.URL.Path, logAttrError, err.Error())
		}

		message = http.StatusText(status)
	}

	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}
