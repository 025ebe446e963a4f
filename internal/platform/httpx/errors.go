// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/renattofarid/fertiriego/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrPrecondition = errors.New("precondition required")
)

// Mapping pairs a domain error with the response it produces.
type Mapping struct {
	Err    error
	Status int
	Title  string
}

var defaultMappings = []Mapping{
	{shared.ErrNotFound, http.StatusNotFound, "Not Found"},
	{shared.ErrInvalidArgument, http.StatusBadRequest, "Invalid Argument"},
	{shared.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized"},
	{shared.ErrIdempotencyConflict, http.StatusConflict, "Duplicate Request"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrPrecondition, http.StatusPreconditionRequired, "Precondition Required"},
}

// RespondError maps domain errors to HTTP responses using RFC7807. extra is
// consulted before the defaults. Unknown errors become a 500 without detail.
func RespondError(w http.ResponseWriter, err error, extra ...Mapping) {
	for _, set := range [][]Mapping{extra, defaultMappings} {
		for _, m := range set {
			if errors.Is(err, m.Err) {
				Problem(w, m.Status, m.Title, err.Error())
				return
			}
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
