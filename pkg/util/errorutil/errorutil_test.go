package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, CodeValidation},
		{http.StatusUnprocessableEntity, CodeValidation},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeForbidden},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusConflict, CodeConflict},
		{http.StatusInternalServerError, CodeUpstream},
		{http.StatusTeapot, CodeUpstream},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "")
			de := ToDomainError(err)
			require.NotNil(t, de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.Equal(t, http.StatusText(tt.status), de.Message)
		})
	}
}

func TestFromStatus_KeepsMessage(t *testing.T) {
	err := FromStatus(http.StatusConflict, "already applied")
	assert.Equal(t, "already applied", err.Error())
}

func TestToDomainError_Wrapped(t *testing.T) {
	inner := NewNotFound("job", nil)
	wrapped := fmt.Errorf("load job: %w", inner)

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeNotFound))
}

func TestToDomainError_ContextErrors(t *testing.T) {
	assert.Equal(t, CodeNetwork, CodeOf(context.Canceled))
	assert.Equal(t, CodeNetwork, CodeOf(fmt.Errorf("x: %w", context.DeadlineExceeded)))
}

func TestToDomainError_Generic(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
	assert.Nil(t, ToDomainError(nil))
	assert.Equal(t, "", CodeOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNetworkError("down", errors.New("dial"))))
	assert.True(t, IsRetryable(FromStatus(http.StatusBadGateway, "")))
	assert.True(t, IsRetryable(NewConflict("dup", nil)))
	assert.False(t, IsRetryable(NewNotFound("job", nil)))
	assert.False(t, IsRetryable(NewValidationError("bad", nil)))
	assert.False(t, IsRetryable(nil))
}

func TestNetworkError_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError("backend unreachable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "backend unreachable: connection refused", err.Error())
}
