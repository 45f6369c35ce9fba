package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code apperrors.Code
		want int
	}{
		{apperrors.CodeNotFound, http.StatusNotFound},
		{apperrors.CodeForbidden, http.StatusForbidden},
		{apperrors.CodeConflict, http.StatusConflict},
		{apperrors.CodeValidation, http.StatusBadRequest},
		{apperrors.CodeUnavailable, http.StatusServiceUnavailable},
		{apperrors.CodeInternal, http.StatusInternalServerError},
		{apperrors.Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := apperrors.Conflictf("user %s is already a friend", "u1")

	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
	assert.False(t, stderrors.Is(err, apperrors.ErrNotFound))

	wrapped := fmt.Errorf("accepting request: %w", err)
	assert.True(t, apperrors.Is(wrapped, apperrors.ErrConflict))
}

func TestError_CauseIsPreserved(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := apperrors.Unavailable(cause, "channel registry unavailable")

	assert.Equal(t, "channel registry unavailable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())

	var target *apperrors.Error
	assert.True(t, apperrors.As(fmt.Errorf("outer: %w", err), &target))
	assert.Equal(t, apperrors.CodeUnavailable, target.Code)
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := apperrors.Wrap(cause, apperrors.CodeInternal, "saving profile")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apperrors.CodeInternal, err.Code)

	again := err.WithCause(stderrors.New("other"))
	assert.NotErrorIs(t, again, cause)
	assert.Equal(t, err.Message, again.Message)
}
