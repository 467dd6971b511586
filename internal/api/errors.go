package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/printforge/labelcore/pkg/labelcore"
)

// ErrorResponse is the JSON body for every error status.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`

	// CurrentVersion is set on version conflicts so clients can re-fetch
	// and retry.
	CurrentVersion int `json:"current_version,omitempty"`
}

// writeError maps domain errors onto HTTP statuses. Unexpected errors are
// reported opaquely; their details stay in the server log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *labelcore.ValidationError
	var conflict *labelcore.VersionConflictError

	switch {
	case errors.As(err, &verr):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: verr.Error(), Field: verr.Field})

	case errors.As(err, &conflict):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, ErrorResponse{
			Error:          "version conflict",
			CurrentVersion: conflict.Current,
		})

	case errors.Is(err, labelcore.ErrNameTaken):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, ErrorResponse{Error: "label name already in use"})

	case errors.Is(err, labelcore.ErrLabelNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: "label not found"})

	case errors.Is(err, labelcore.ErrProjectNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: "project not found"})

	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "internal error"})
	}
}
