package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NewConflictError("submission already in flight")

	assert.True(t, Is(err, ErrConflict))
	assert.True(t, stderrors.Is(err, ErrConflict))
	assert.False(t, Is(err, ErrValidation))
}

func TestIsSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewNotFoundError("conversation c-1 not found"))

	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Equal(t, http.StatusNotFound, GetStatusCode(wrapped))
	assert.Equal(t, CodeNotFound, GetErrorCode(wrapped))
}

func TestTransportErrorUnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewTransportError("send message", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, http.StatusBadGateway, err.StatusCode)
}

func TestHTTPStatusErrorCarriesStatusAndBody(t *testing.T) {
	err := NewHTTPStatusError(http.MethodPost, "/api/conversations/1/messages", 500, "boom")

	assert.True(t, Is(err, ErrTransport))
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")

	details, ok := err.Details.(TransportDetails)
	assert.True(t, ok)
	assert.Equal(t, 500, details.StatusCode)
}

func TestFromErrorWrapsPlainErrors(t *testing.T) {
	appErr := FromError(stderrors.New("disk full"))

	assert.Equal(t, CodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	assert.Nil(t, FromError(nil))
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(stderrors.New("x")))
}
