package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/logger"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response: %v", err)
	}
}

// decodeJSON reads a JSON request body into dst. An empty body is allowed when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, io.EOF) && optional:
		return nil
	case stderrors.Is(err, io.EOF):
		return errors.NewBadRequestError("request body required")
	default:
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.NewBadRequestError("request body too large")
		}
		return errors.NewBadRequestError("malformed JSON body")
	}
}

func matchIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}
