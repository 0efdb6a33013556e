package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/model"
)

// Error codes returned in the "error" field of error responses.
const (
	codeNotFound            = "not_found"
	codeNoCopiesAvailable   = "no_copies_available"
	codeInvalidDueDate      = "invalid_due_date"
	codeDuplicateActiveLoan = "duplicate_active_loan"
	codeAlreadyReturned     = "already_returned"
	codeConflict            = "conflict"
	codeInUse               = "in_use"
	codeInvalidRequest      = "invalid_request"
	codeUnauthorized        = "unauthorized"
	codeForbidden           = "forbidden"
	codeInternal            = "internal"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, errorResponse{Error: code, Message: message})
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{model.ErrNotFound, http.StatusNotFound, codeNotFound},
	{model.ErrNoCopiesAvailable, http.StatusConflict, codeNoCopiesAvailable},
	{model.ErrInvalidDueDate, http.StatusBadRequest, codeInvalidDueDate},
	{model.ErrDuplicateActiveLoan, http.StatusConflict, codeDuplicateActiveLoan},
	{model.ErrAlreadyReturned, http.StatusConflict, codeAlreadyReturned},
	{model.ErrConflict, http.StatusConflict, codeConflict},
	{model.ErrInUse, http.StatusConflict, codeInUse},
	{model.ErrInvalidInput, http.StatusBadRequest, codeInvalidRequest},
}

// writeError maps an error from the store or ledger to a response. Anything
// that is not a known business error, invariant violations included, is
// logged and reported as an internal failure without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, model.ErrInvariantViolation) {
		for _, e := range errorStatus {
			if errors.Is(err, e.err) {
				jsonError(w, e.status, e.code, err.Error())
				return
			}
		}
	}

	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestID(r.Context()),
		"error", err,
	)
	jsonError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func badRequest(w http.ResponseWriter, message string) {
	jsonError(w, http.StatusBadRequest, codeInvalidRequest, message)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryID parses an optional positive integer query parameter. A missing
// parameter yields 0.
func queryID(r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	return id, err == nil && id > 0
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (*bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, false
	}
	return &b, true
}
