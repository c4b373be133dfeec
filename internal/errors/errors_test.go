package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessduel/internal/errors"
)

func TestConstructors_Status(t *testing.T) {
	cause := stderrors.New("boom")
	tests := []struct {
		name   string
		err    *errors.AppError
		code   string
		status int
	}{
		{"not found", errors.NewNotFoundError("match", "m1"), errors.ErrCodeNotFound, http.StatusNotFound},
		{"validation", errors.NewValidationError("from", "bad square"), errors.ErrCodeValidation, http.StatusBadRequest},
		{"unauthorized", errors.NewUnauthorizedError(cause), errors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", errors.NewForbiddenError("nope"), errors.ErrCodeForbidden, http.StatusForbidden},
		{"turn", errors.NewTurnError(), errors.ErrCodeNotYourTurn, http.StatusForbidden},
		{"conflict", errors.NewConflictError("busy", cause), errors.ErrCodeConflict, http.StatusConflict},
		{"state", errors.NewStateError("draw"), errors.ErrCodeFinished, http.StatusConflict},
		{"illegal", errors.NewIllegalMoveError("e2", "e5", cause), errors.ErrCodeIllegalMove, http.StatusBadRequest},
		{"upstream default", errors.NewUpstreamError("analysis", 0, cause), errors.ErrCodeUpstream, http.StatusBadGateway},
		{"timeout", errors.NewTimeoutError(cause), errors.ErrCodeTimeout, http.StatusServiceUnavailable},
		{"internal", errors.NewInternalError(cause), errors.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}

func TestUnauthorized_DoesNotLeakCause(t *testing.T) {
	err := errors.NewUnauthorizedError(stderrors.New("bad signature"))
	assert.Equal(t, "authentication required", err.Message)
}

func TestAs_FindsWrappedAppError(t *testing.T) {
	inner := errors.NewNotFoundError("match", "abc")
	wrapped := fmt.Errorf("loading: %w", inner)

	appErr, ok := errors.As(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, appErr)
	assert.True(t, errors.HasCode(wrapped, errors.ErrCodeNotFound))
	assert.False(t, errors.HasCode(stderrors.New("plain"), errors.ErrCodeNotFound))
}

func TestWithDetail_CopiesError(t *testing.T) {
	base := errors.NewConflictError("ongoing match exists", nil)
	withID := base.WithDetail("match_id", "m1")

	assert.Nil(t, base.Details)
	assert.Equal(t, "m1", withID.Details["match_id"])
	assert.Equal(t, base.Code, withID.Code)
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
