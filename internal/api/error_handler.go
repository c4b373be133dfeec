package api

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/vytor/chessduel/internal/errors"
	"github.com/vytor/chessduel/internal/logger"
)

var (
	errNoRoute          = &errors.AppError{Code: errors.ErrCodeNotFound, Message: "no such route", Status: http.StatusNotFound}
	errMethodNotAllowed = &errors.AppError{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed", Status: http.StatusMethodNotAllowed}
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   string         `json:"cause,omitempty"`
}

// handleError centralizes error handling for HTTP responses
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError(err)
	}
	if appErr.Status >= 500 && stderrors.Is(err, context.DeadlineExceeded) {
		appErr = errors.NewTimeoutError(err)
	}

	if appErr.Status >= 500 {
		log.Error("server error: %v", appErr)
	} else {
		log.Warn("client error: %v", appErr)
	}

	body := errorBody{Error: errorPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}}
	if s.DevMode && appErr.Err != nil {
		body.Error.Cause = appErr.Err.Error()
	}
	writeJSON(w, r, appErr.Status, body)
}
