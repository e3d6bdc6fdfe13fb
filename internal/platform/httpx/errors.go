// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/freightdesk/freightdesk/internal/reporting"
	"github.com/freightdesk/freightdesk/internal/reporting/export"
)

// RespondError maps engine errors to HTTP responses using RFC7807. The four
// request-correctable conditions carry enough detail for the caller to fix
// the request; everything else collapses to a bare 500.
func RespondError(w http.ResponseWriter, err error) {
	var uerr *reporting.UnsupportedOptionError
	switch {
	case errors.Is(err, reporting.ErrInvalidFilter):
		Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
	case errors.As(err, &uerr):
		FieldProblem(w, http.StatusBadRequest, "Unsupported Option", uerr.Error(), uerr.Field)
	case errors.Is(err, reporting.ErrSourceUnavailable):
		Problem(w, http.StatusBadGateway, "Source Unavailable", err.Error())
	case errors.Is(err, export.ErrExportTooLarge):
		Problem(w, http.StatusRequestEntityTooLarge, "Export Too Large", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
