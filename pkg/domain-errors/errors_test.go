package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "accounting point not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches code behind fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeConflict, "stale version"))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("matches inner code of nested domain errors", func(t *testing.T) {
		inner := New(CodeInvariantViolation, "process is not pending")
		err := Wrap(inner, CodeInternal, "effectuate failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeInvariantViolation))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "save accounting point")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save accounting point: connection refused", err.Error())
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeInvariantViolation))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeOf(errors.New("x"))))
}
